package placement

// NewFromSnapshot rebuilds an engine from a previously captured Snapshot,
// per spec.md §4.6. The prior replication factor is inferred from the
// first bin's active assignment count — the wire format itself carries
// no k.
//
// Three cases, by how the new k compares to the inferred prior one:
//
//   - Equal: every assignment replays exactly as serialized.
//   - Smaller prior k (k grew): replay, then top up bins that now have
//     room, preferring locations the ordering says are furthest behind.
//   - Larger prior k (k shrank): each bin keeps only its first k active
//     assignments from the snapshot; the rest of each bin's locations
//     are still known to be active (so they still enter the ordering)
//     but start out owning nothing, then Prune runs and a final pass
//     rebalances until every two locations differ by at most one bin.
func NewFromSnapshot(k uint32, snap Snapshot, clock Clock, opts ...Option) *Engine {
	e := newEmptyEngine(k, clock, opts...)
	kPrev := countActive(snap.Bins[0])

	switch {
	case kPrev == k:
		e.replaySnapshot(snap)
	case kPrev < k:
		e.replaySnapshot(snap)
		e.topUpAfterKIncrease(kPrev)
	default:
		e.replaySnapshotCapped(snap, kPrev)
		e.Prune(e.clock.UTCNow())
		e.rebalanceToDiffOne()
	}
	return e
}

func countActive(assignments []Assignment) uint32 {
	var n uint32
	for _, a := range assignments {
		if a.Active() {
			n++
		}
	}
	return n
}

// replaySnapshot recreates every assignment exactly as serialized, then
// inserts every location that ended up with at least one active
// assignment into the ordering.
func (e *Engine) replaySnapshot(snap Snapshot) {
	for binIdx, assignments := range snap.Bins {
		b := e.bins[binIdx]
		for _, a := range assignments {
			loc := e.getOrCreateLocation(a.Location)
			rec := &Assignment{Location: a.Location, Bin: uint32(binIdx), Expiry: a.Expiry}
			loc.adoptSnapshotAssignment(rec)
			b.adoptSnapshotAssignment(rec)
		}
	}
	e.insertActiveLocationsIntoOrdering()
}

// replaySnapshotCapped handles the k-shrank case: tombstones replay
// directly, but each bin accepts only its first k active assignments
// encountered in the serialized order. Locations cut off from a bin this
// way are still recorded as known-active — the caller runs Prune and a
// rebalance afterward to bring them back into the fold.
func (e *Engine) replaySnapshotCapped(snap Snapshot, kPrev uint32) {
	var cutOff []*locationRecord
	for binIdx, assignments := range snap.Bins {
		b := e.bins[binIdx]
		var activeSeen uint32
		for _, a := range assignments {
			loc := e.getOrCreateLocation(a.Location)
			if !a.Active() {
				rec := &Assignment{Location: a.Location, Bin: uint32(binIdx), Expiry: a.Expiry}
				loc.adoptSnapshotAssignment(rec)
				b.adoptSnapshotAssignment(rec)
				continue
			}
			if activeSeen < e.k {
				rec := &Assignment{Location: a.Location, Bin: uint32(binIdx)}
				loc.adoptSnapshotAssignment(rec)
				b.adoptSnapshotAssignment(rec)
			} else {
				cutOff = append(cutOff, loc)
			}
			activeSeen++
		}
	}
	e.insertActiveLocationsIntoOrdering()
	for _, r := range cutOff {
		if !r.inOrdering() {
			e.order.insert(r)
		}
	}
}

func (e *Engine) insertActiveLocationsIntoOrdering() {
	for _, r := range e.locations {
		if r.activeCount > 0 && !r.inOrdering() {
			e.order.insert(r)
		}
	}
}

// topUpAfterKIncrease fills the extra room k's growth opened up. If there
// are at least k known locations, every bin tops up to exactly k by
// repeatedly drawing the ordering's current minimum. Otherwise every bin
// ends up holding every known location, same as initial construction's
// n<=k case. If there was no room to begin with (n<=kPrev), every bin
// already held every location and there is nothing to do.
func (e *Engine) topUpAfterKIncrease(kPrev uint32) {
	n := uint32(e.activeLocationCount())
	if n <= kPrev {
		return
	}

	if n >= e.k {
		for binIdx := range e.bins {
			b := e.bins[binIdx]
			for uint32(b.activeCount()) < e.k {
				r := e.pickMinNotIn(b)
				if r == nil {
					break
				}
				e.assign(r, uint32(binIdx))
				e.order.insert(r)
			}
		}
		return
	}

	for binIdx := range e.bins {
		b := e.bins[binIdx]
		for _, r := range e.locations {
			if !r.inOrdering() || b.hasActive(r.id) {
				continue
			}
			e.assign(r, uint32(binIdx))
		}
	}
}

// rebalanceToDiffOne moves one bin at a time from the ordering's current
// maximum to its current minimum, restricted to a bin the maximum owns
// and the minimum doesn't, until no two locations differ by more than
// one active bin. Used by the k-shrank snapshot path and at the end of
// RemoveLocation, whose per-bin replacement search can leave two
// locations two bins apart. AddLocation keeps the invariant through its
// own rebalance loop.
func (e *Engine) rebalanceToDiffOne() {
	for {
		maxRec := e.order.peekMax()
		minRec := e.order.peekMin()
		if maxRec == nil || minRec == nil || maxRec.id == minRec.id {
			return
		}
		if maxRec.activeCount-minRec.activeCount <= 1 {
			return
		}
		binIdx, ok := e.denseDonorBin(maxRec, minRec)
		if !ok {
			return
		}
		e.moveAssignment(binIdx, maxRec, minRec, e.tombstoneExpiry())
	}
}
