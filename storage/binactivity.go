package storage

import (
	"crypto/sha256"
	"sort"
	"sync/atomic"

	"placementd/pkg/placement"
)

// binFor hashes key the same way cluster.Manager.Owners does (SHA-256,
// first two bytes) so a backend's idea of "which bin does this key
// belong to" lines up with the placement engine's.
func binFor(key string) uint32 {
	sum := sha256.Sum256([]byte(key))
	return placement.BinIndex(sum[:2])
}

// binActivity tracks per-bin touch counts for a backend, embeddable by
// both BadgerStorage and MemoryKV so each Get/Set/Delete nudges the
// count for the bin the key falls into.
type binActivity struct {
	hits [placement.BinCount]uint64
}

func (b *binActivity) touch(key string) {
	atomic.AddUint64(&b.hits[binFor(key)], 1)
}

// hotBins returns the n bins with the highest hit counts, most active
// first, skipping bins that have never been touched.
func (b *binActivity) hotBins(n int) []BinHeat {
	if n <= 0 {
		return nil
	}
	out := make([]BinHeat, 0, placement.BinCount)
	for bin := range b.hits {
		if h := atomic.LoadUint64(&b.hits[bin]); h > 0 {
			out = append(out, BinHeat{Bin: uint32(bin), Hits: h})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hits != out[j].Hits {
			return out[i].Hits > out[j].Hits
		}
		return out[i].Bin < out[j].Bin
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
