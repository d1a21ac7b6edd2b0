package placement

// BinIndex computes the bin a content hash maps to: the low 16 bits of
// the hash, little-endian, per spec.md §4.4. hash must have length >= 2.
func BinIndex(hash []byte) uint32 {
	if len(hash) < 2 {
		precondition("BinIndex: hash must be at least 2 bytes, got %d", len(hash))
	}
	idx := uint32(hash[0]) | uint32(hash[1])<<8
	return idx & (BinCount - 1)
}

// Lookup returns the locations currently active for hash's bin, in
// implementation-defined but stable order. The result is a copy; it
// shares no memory with the engine's internal state.
func (e *Engine) Lookup(hash []byte) []LocationID {
	return e.bins[BinIndex(hash)].activeLocations()
}

// LookupBin is Lookup for a caller that already has the bin index — e.g.
// one reporting activity per bin rather than per key. binIdx must be <
// BinCount.
func (e *Engine) LookupBin(binIdx uint32) []LocationID {
	return e.bins[binIdx].activeLocations()
}

// AssignmentsForBin returns every assignment — active and tombstoned —
// currently recorded against bin, in no particular order. This is what
// Snapshot relies on; most callers want Lookup instead.
func (e *Engine) AssignmentsForBin(binIdx uint32) []Assignment {
	b := e.bins[binIdx]
	out := make([]Assignment, len(b.assignments))
	for i, a := range b.assignments {
		out[i] = *a
	}
	return out
}
