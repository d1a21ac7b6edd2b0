package placement

import (
	"encoding/binary"
	"io"
	"time"
)

// Snapshot is the decoded, self-contained form of a bin table: every
// assignment (active and tombstoned) the table held, indexed by bin.
// It carries no k — spec.md §6.3's wire format doesn't encode one;
// NewFromSnapshot infers the prior k from the first bin's active count.
type Snapshot struct {
	Bins [BinCount][]Assignment
}

// Snapshot copies out every assignment currently held by the engine,
// active and tombstoned, with their expiries. Pure read; the result
// shares no memory with the engine.
func (e *Engine) Snapshot() Snapshot {
	var s Snapshot
	for i, b := range e.bins {
		if len(b.assignments) == 0 {
			continue
		}
		s.Bins[i] = make([]Assignment, len(b.assignments))
		for j, a := range b.assignments {
			s.Bins[i][j] = *a
		}
	}
	return s
}

// epoch is the fixed point ExpiryTicks counts 100-nanosecond units from.
// Unix epoch, chosen for simplicity; must match bit-exactly on every
// implementation that reads this wire format (spec.md §6.3).
var epoch = time.Unix(0, 0).UTC()

func toTicks(t time.Time) int64 {
	return t.UTC().Sub(epoch).Nanoseconds() / 100
}

func fromTicks(ticks int64) time.Time {
	return epoch.Add(time.Duration(ticks) * 100 * time.Nanosecond).UTC()
}

const (
	maxLocationIDLen   = 1 << 20 // 1MiB; anything larger is corrupt, not a real ID
	prealloAssignments = 1024    // cap on eager slice preallocation per bin
)

// EncodeSnapshot writes s in the wire format from spec.md §6.3.
func EncodeSnapshot(w io.Writer, s Snapshot) error {
	if err := writeUint32(w, BinCount); err != nil {
		return err
	}
	for i := 0; i < BinCount; i++ {
		assignments := s.Bins[i]
		if err := writeUint32(w, uint32(len(assignments))); err != nil {
			return err
		}
		for _, a := range assignments {
			if err := writeAssignment(w, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeAssignment(w io.Writer, a Assignment) error {
	id := []byte(a.Location)
	if err := writeUint32(w, uint32(len(id))); err != nil {
		return err
	}
	if _, err := w.Write(id); err != nil {
		return err
	}
	if a.Expiry.IsZero() {
		return writeByte(w, 0)
	}
	if err := writeByte(w, 1); err != nil {
		return err
	}
	return writeInt64(w, toTicks(a.Expiry))
}

// DecodeSnapshot reads the wire format from spec.md §6.3. A BinCount
// mismatch or truncated/malformed stream is reported as a *DecodeError
// rather than propagated as a raw io error or a panic — corrupt input is
// the caller's to recover from (e.g. by bootstrapping fresh), not a
// programmer error.
func DecodeSnapshot(r io.Reader) (Snapshot, error) {
	binCount, err := readUint32(r)
	if err != nil {
		return Snapshot{}, decodeErrorf("reading bin count: %v", err)
	}
	if binCount != BinCount {
		return Snapshot{}, decodeErrorf("bin count mismatch: want %d, got %d", BinCount, binCount)
	}

	var s Snapshot
	for i := 0; i < BinCount; i++ {
		count, err := readUint32(r)
		if err != nil {
			return Snapshot{}, decodeErrorf("reading assignment count for bin %d: %v", i, err)
		}
		cap := int(count)
		if cap > prealloAssignments {
			cap = prealloAssignments
		}
		assignments := make([]Assignment, 0, cap)
		for j := uint32(0); j < count; j++ {
			a, err := readAssignment(r, uint32(i))
			if err != nil {
				return Snapshot{}, decodeErrorf("reading assignment %d of bin %d: %v", j, i, err)
			}
			assignments = append(assignments, a)
		}
		if len(assignments) > 0 {
			s.Bins[i] = assignments
		}
	}
	return s, nil
}

func readAssignment(r io.Reader, binIdx uint32) (Assignment, error) {
	idLen, err := readUint32(r)
	if err != nil {
		return Assignment{}, err
	}
	if idLen > maxLocationIDLen {
		return Assignment{}, decodeErrorf("impossible location id length %d", idLen)
	}
	idBytes := make([]byte, idLen)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return Assignment{}, err
	}

	hasExpiry, err := readByte(r)
	if err != nil {
		return Assignment{}, err
	}
	if hasExpiry != 0 && hasExpiry != 1 {
		return Assignment{}, decodeErrorf("invalid expiry flag %d", hasExpiry)
	}

	a := Assignment{Location: LocationID(idBytes), Bin: binIdx}
	if hasExpiry == 1 {
		ticks, err := readInt64(r)
		if err != nil {
			return Assignment{}, err
		}
		a.Expiry = fromTicks(ticks)
	}
	return a, nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}
