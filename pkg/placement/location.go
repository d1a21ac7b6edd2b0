package placement

import "time"

// locationRecord is the engine's per-location bookkeeping. It is created
// on first AddLocation (or by the codec) and persists as long as it owns
// any assignment, active or tombstoned; Prune purges it once every
// assignment it owns has expired.
type locationRecord struct {
	id LocationID

	// assignments holds every assignment this location has ever been
	// given, active and tombstoned, in no particular order. A location
	// can accumulate more than one tombstone for the same bin across
	// repeated remove/re-add cycles, so this is not keyed by bin.
	assignments []*Assignment

	activeCount int

	// binsAssigned is the hot-path cache of this location's active
	// assignments, indexed by bin, kept in sync by every mutation. It
	// answers "is this location already active in bin X" in O(1),
	// which the rebalance loops need constantly.
	binsAssigned map[uint32]*Assignment

	// Handles into the balance ordering's min-heap and max-heap, or -1
	// if the record is absent from the ordering (removed via
	// RemoveLocation and not yet re-added).
	minIdx int
	maxIdx int
}

func newLocationRecord(id LocationID) *locationRecord {
	return &locationRecord{
		id:           id,
		binsAssigned: make(map[uint32]*Assignment),
		minIdx:       -1,
		maxIdx:       -1,
	}
}

// inOrdering reports whether the record currently has a slot in the
// balance ordering.
func (r *locationRecord) inOrdering() bool { return r.minIdx >= 0 }

// attachActive records a freshly created active assignment (owned
// jointly with the bin it lives in — the same *Assignment pointer is
// shared, per spec.md §3 invariant 3).
func (r *locationRecord) attachActive(a *Assignment) {
	if _, ok := r.binsAssigned[a.Bin]; ok {
		precondition("location %v already active in bin %d", r.id, a.Bin)
	}
	r.assignments = append(r.assignments, a)
	r.binsAssigned[a.Bin] = a
	r.activeCount++
}

// expireBin tombstones the active assignment this record holds in bin,
// stamping it with expiry. The assignment must exist and be active.
func (r *locationRecord) expireBin(bin uint32, expiry time.Time) *Assignment {
	a, ok := r.binsAssigned[bin]
	if !ok {
		precondition("expireBin: no active assignment for %v in bin %d", r.id, bin)
	}
	a.Expiry = expiry
	delete(r.binsAssigned, bin)
	r.activeCount--
	return a
}

// adoptSnapshotAssignment registers an assignment decoded from a
// snapshot (active or already-tombstoned) without allocating a new one.
func (r *locationRecord) adoptSnapshotAssignment(a *Assignment) {
	r.assignments = append(r.assignments, a)
	if a.Active() {
		r.binsAssigned[a.Bin] = a
		r.activeCount++
	}
}

// empty reports whether the record owns no assignments at all (active or
// tombstoned) and can be purged.
func (r *locationRecord) empty() bool { return len(r.assignments) == 0 }
