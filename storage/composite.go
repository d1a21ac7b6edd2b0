package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"placementd/pkg/placement"
)

const placementBinCap = placement.BinCount

// CompositeStorage routes KV operations to an in-memory backend by
// default, or to Badger if kvBackend is set to "badger". Backup/Restore
// always goes through the Badger instance, since that needs a single
// durable source of truth; HotBins merges both backends' counts.
type CompositeStorage struct {
	badger *BadgerStorage
	memKV  *MemoryKV // non-nil when KV is in-memory
}

// NewCompositeStorage creates a storage that can switch KV backend.
// kvBackend: "memory" (default) or "badger".
func NewCompositeStorage(dataDir, kvBackend string) (Storage, error) {
	badger, err := NewBadgerStorage(dataDir)
	if err != nil {
		return nil, err
	}
	cs := &CompositeStorage{badger: badger}
	if kvBackend == "" || kvBackend == "memory" {
		cs.memKV = NewMemoryKV()
	}
	return cs, nil
}

// Close closes all underlying resources.
func (c *CompositeStorage) Close() error {
	if c.memKV != nil {
		_ = c.memKV.Close()
	}
	return c.badger.Close()
}

// Backup delegates to Badger (KV memory is ephemeral; document-only).
func (c *CompositeStorage) Backup(ctx context.Context, path string) error {
	return c.badger.Backup(ctx, path)
}

// Restore delegates to Badger (KV memory is empty after restore).
func (c *CompositeStorage) Restore(ctx context.Context, path string) error {
	return c.badger.Restore(ctx, path)
}

// ------- KV operations -------

func (c *CompositeStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
    if c.memKV != nil { return c.memKV.Set(ctx, key, value, ttl) }
    return c.badger.Set(ctx, key, value, ttl)
}

func (c *CompositeStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
    if c.memKV != nil { return c.memKV.Get(ctx, key) }
    return c.badger.Get(ctx, key)
}

func (c *CompositeStorage) Delete(ctx context.Context, keys ...string) (int, error) {
    if c.memKV != nil { return c.memKV.Delete(ctx, keys...) }
    return c.badger.Delete(ctx, keys...)
}

func (c *CompositeStorage) Exists(ctx context.Context, key string) (bool, error) {
    if c.memKV != nil { return c.memKV.Exists(ctx, key) }
    return c.badger.Exists(ctx, key)
}

func (c *CompositeStorage) Keys(ctx context.Context, pattern string, limit int) ([]string, error) {
    if c.memKV != nil { return c.memKV.Keys(ctx, pattern, limit) }
    return c.badger.Keys(ctx, pattern, limit)
}

func (c *CompositeStorage) Expire(ctx context.Context, key string, ttl time.Duration) error {
    if c.memKV != nil { return c.memKV.Expire(ctx, key, ttl) }
    return c.badger.Expire(ctx, key, ttl)
}

func (c *CompositeStorage) TTL(ctx context.Context, key string) (time.Duration, error) {
    if c.memKV != nil { return c.memKV.TTL(ctx, key) }
    return c.badger.TTL(ctx, key)
}

func (c *CompositeStorage) Increment(ctx context.Context, key string, delta int64) (int64, error) {
    if c.memKV != nil { return c.memKV.Increment(ctx, key, delta) }
    return c.badger.Increment(ctx, key, delta)
}

func (c *CompositeStorage) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
    if c.memKV != nil { return c.memKV.Decrement(ctx, key, delta) }
    return c.badger.Decrement(ctx, key, delta)
}

func (c *CompositeStorage) MSet(ctx context.Context, pairs map[string][]byte) error {
    if c.memKV != nil { return c.memKV.MSet(ctx, pairs) }
    return c.badger.MSet(ctx, pairs)
}

func (c *CompositeStorage) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
    if c.memKV != nil { return c.memKV.MGet(ctx, keys) }
    return c.badger.MGet(ctx, keys)
}

// HotBins merges both backends' bin-activity counts when KV is split
// across memory and Badger, since either one may have touched a given
// bin's keys.
func (c *CompositeStorage) HotBins(n int) []BinHeat {
	merged := make(map[uint32]uint64)
	for _, h := range c.badger.HotBins(placementBinCap) {
		merged[h.Bin] += h.Hits
	}
	if c.memKV != nil {
		for _, h := range c.memKV.HotBins(placementBinCap) {
			merged[h.Bin] += h.Hits
		}
	}
	out := make([]BinHeat, 0, len(merged))
	for bin, hits := range merged {
		out = append(out, BinHeat{Bin: bin, Hits: hits})
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

// Helpers to expose Badger-only capabilities where needed.
func (c *CompositeStorage) SetNodeProviderIfSupported(p NodeProvider) {
    if c.badger != nil {
        c.badger.SetNodeProvider(p)
    }
}

func (c *CompositeStorage) SetReplicationFactorIfSupported(n int) {
    if c.badger != nil {
        c.badger.SetReplicationFactor(n)
    }
}

// String implements fmt.Stringer for debugging
func (c *CompositeStorage) String() string {
	mode := "badger"
	if c.memKV != nil {
		mode = "memory+badger"
	}
	return fmt.Sprintf("CompositeStorage{%s}", mode)
}
