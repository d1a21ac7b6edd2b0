package placement

import "time"

// tombstoneExpiry returns the instant a tombstone created right now
// should carry. See SPEC_FULL.md's "Open Question decisions" (a): this
// is now() + gracePeriod rather than now() itself, so a read in flight
// when a location leaves still has a window to resolve it.
func (e *Engine) tombstoneExpiry() time.Time {
	return e.clock.UTCNow().Add(e.gracePeriod)
}

// moveAssignment expires from's active assignment in binIdx and creates
// a fresh active assignment for to in the same bin, keeping both
// cross-references and the balance ordering consistent. from and to may
// each independently be present in or absent from the ordering; this is
// the single primitive both AddLocation's rebalance and
// RemoveLocation's replacement search move through.
func (e *Engine) moveAssignment(binIdx uint32, from, to *locationRecord, expiry time.Time) {
	from.expireBin(binIdx, expiry)
	e.bins[binIdx].expireActive(from.id)
	if from.inOrdering() {
		e.order.fix(from)
	}

	a := &Assignment{Location: to.id, Bin: binIdx}
	to.attachActive(a)
	e.bins[binIdx].addActive(a)
	if to.inOrdering() {
		e.order.fix(to)
	} else {
		e.order.insert(to)
	}
}

// AddLocation brings a new (or previously removed) location into the
// active set, per spec.md §4.2. Precondition: id is not currently
// active — panics otherwise, per spec.md §7.
func (e *Engine) AddLocation(id LocationID) {
	r := e.getOrCreateLocation(id)
	if r.inOrdering() {
		precondition("AddLocation: %v is already active", id)
	}

	e.order.insert(r)

	for binIdx := range e.bins {
		b := e.bins[binIdx]
		if uint32(b.activeCount()) < e.k {
			a := &Assignment{Location: r.id, Bin: uint32(binIdx)}
			r.attachActive(a)
			b.addActive(a)
		}
	}
	e.order.fix(r)

	e.rebalanceAfterAdd(r)
}

// rebalanceAfterAdd runs AddLocation's rebalance loop: while the new
// location owns fewer than (current max - 1) bins, move one bin from
// the current max-owning location to it.
func (e *Engine) rebalanceAfterAdd(newLoc *locationRecord) {
	useSparse := false
	if newLoc.activeCount == 0 {
		if maxRec := e.order.peekMax(); maxRec != nil && maxRec.activeCount > e.activeLocationCount() {
			useSparse = true
		}
	}

	var sparseEligible map[LocationID]map[uint32]struct{}
	if useSparse {
		sparseEligible = make(map[LocationID]map[uint32]struct{})
	}

	for {
		donor := e.order.peekMax()
		if donor == nil || donor.id == newLoc.id {
			break
		}
		if newLoc.activeCount >= donor.activeCount-1 {
			break
		}

		var binIdx uint32
		var ok bool
		if useSparse {
			binIdx, ok = e.sparseDonorBin(donor, newLoc, sparseEligible)
		} else {
			binIdx, ok = e.denseDonorBin(donor, newLoc)
		}
		if !ok {
			// No bin the donor holds that the new location doesn't
			// already have; nothing further this donor can give up.
			break
		}

		e.moveAssignment(binIdx, donor, newLoc, e.tombstoneExpiry())
	}
}

// sparseDonorBin implements the "few locations, many bins each"
// strategy: each donor gets a lazily-built set of bins still eligible
// to be taken from it, and the chosen bin is removed from every
// tracked donor's set so no bin is ever handed out twice. A set built
// after earlier picks leaves out the bins the new location already holds.
func (e *Engine) sparseDonorBin(donor, newLoc *locationRecord, eligible map[LocationID]map[uint32]struct{}) (uint32, bool) {
	set, ok := eligible[donor.id]
	if !ok {
		set = make(map[uint32]struct{}, len(donor.binsAssigned))
		for b := range donor.binsAssigned {
			if _, taken := newLoc.binsAssigned[b]; taken {
				continue
			}
			set[b] = struct{}{}
		}
		eligible[donor.id] = set
	}

	var binIdx uint32
	found := false
	for b := range set {
		binIdx = b
		found = true
		break
	}
	if !found {
		return 0, false
	}
	for _, s := range eligible {
		delete(s, binIdx)
	}
	return binIdx, true
}

// denseDonorBin implements the common-case strategy: compute the set
// difference donor.bins \ new.bins lazily and take its lowest index, so
// the choice is deterministic without needing any extra bookkeeping.
func (e *Engine) denseDonorBin(donor, newLoc *locationRecord) (uint32, bool) {
	found := false
	var min uint32
	for b := range donor.binsAssigned {
		if _, already := newLoc.binsAssigned[b]; already {
			continue
		}
		if !found || b < min {
			min = b
			found = true
		}
	}
	return min, found
}

// RemoveLocation takes a location out of the active set, per spec.md
// §4.3. Precondition: id is currently active — panics otherwise. After
// every bin has been refilled, bins move from the most- to the
// least-loaded location until no two active counts differ by more than one.
func (e *Engine) RemoveLocation(id LocationID) {
	r, ok := e.locations[id]
	if !ok || !r.inOrdering() {
		precondition("RemoveLocation: %v is not active", id)
	}
	e.order.remove(r)

	bins := make([]uint32, 0, len(r.binsAssigned))
	for b := range r.binsAssigned {
		bins = append(bins, b)
	}

	for _, binIdx := range bins {
		b := e.bins[binIdx]
		expiry := e.tombstoneExpiry()
		if replacement := e.pickMinNotIn(b); replacement != nil {
			e.moveAssignment(binIdx, r, replacement, expiry)
		} else {
			r.expireBin(binIdx, expiry)
			b.expireActive(id)
		}
	}
	e.rebalanceToDiffOne()
}
