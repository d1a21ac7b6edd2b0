package placement

import "time"

// DefaultGracePeriod is how far past "now" a tombstone created by
// RemoveLocation/replacement is stamped, so that in-flight reads issued
// just before a location left can still resolve it for a short window
// (spec.md §1, §9 open question (a)). Zero reproduces the teacher's
// original behavior, where the tombstone is already expired the instant
// it is created.
const DefaultGracePeriod = 5 * time.Minute

// Engine is the bin table plus its cross-indexed location index and
// balance ordering. It is a pure, single-threaded data structure: no
// operation blocks, retries, or performs I/O. Callers must serialize
// access externally — typically from one dedicated goroutine — per
// spec.md §5.
type Engine struct {
	k           uint32
	bins        [BinCount]*bin
	locations   map[LocationID]*locationRecord
	order       *ordering
	clock       Clock
	gracePeriod time.Duration
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Engine) { e.gracePeriod = d }
}

func newEmptyEngine(k uint32, clock Clock, opts ...Option) *Engine {
	if k == 0 {
		precondition("locationsPerBin (k) must be >= 1")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	e := &Engine{
		k:           k,
		locations:   make(map[LocationID]*locationRecord),
		order:       newOrdering(),
		clock:       clock,
		gracePeriod: DefaultGracePeriod,
	}
	for i := range e.bins {
		e.bins[i] = newBin()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEngine builds an engine for k (locationsPerBin) over the given
// initial locations, per spec.md §4.1.
//
// If there are at most k locations, every bin is filled with all of
// them. Otherwise each bin is filled by repeatedly taking the current
// minimum-count location from the ordering, assigning it, and
// reinserting it, until the bin holds exactly k distinct locations —
// which drives every location toward the same active count.
func NewEngine(k uint32, initialLocations []LocationID, clock Clock, opts ...Option) *Engine {
	e := newEmptyEngine(k, clock, opts...)

	records := make([]*locationRecord, 0, len(initialLocations))
	seen := make(map[LocationID]bool, len(initialLocations))
	for _, id := range initialLocations {
		if seen[id] {
			continue
		}
		seen[id] = true
		r := newLocationRecord(id)
		e.locations[id] = r
		e.order.insert(r)
		records = append(records, r)
	}

	if len(records) == 0 {
		return e
	}

	if uint32(len(records)) <= k {
		for binIdx := range e.bins {
			for _, r := range records {
				e.assign(r, uint32(binIdx))
			}
		}
		return e
	}

	for binIdx := range e.bins {
		b := e.bins[binIdx]
		for uint32(b.activeCount()) < k {
			r := e.pickMinNotIn(b)
			e.assign(r, uint32(binIdx))
			e.order.insert(r)
		}
	}
	return e
}

// pickMinNotIn removes and returns the ordering's minimum location that
// is not already active in b, restoring every location it had to skip
// over along the way. Used both by the initial fill (§4.1) and the
// remove-with-replacement search (§4.3), which share the same "minimum
// subject to a validity check" shape.
func (e *Engine) pickMinNotIn(b *bin) *locationRecord {
	var stashed []*locationRecord
	for {
		r := e.order.peekMin()
		if r == nil {
			for _, s := range stashed {
				e.order.insert(s)
			}
			return nil
		}
		e.order.remove(r)
		if !b.hasActive(r.id) {
			for _, s := range stashed {
				e.order.insert(s)
			}
			return r
		}
		stashed = append(stashed, r)
	}
}

// assign creates a new active assignment for r in bin, updating both
// cross-references and re-keying the ordering if r is in it.
func (e *Engine) assign(r *locationRecord, binIdx uint32) *Assignment {
	a := &Assignment{Location: r.id, Bin: binIdx}
	r.attachActive(a)
	e.bins[binIdx].addActive(a)
	if r.inOrdering() {
		e.order.fix(r)
	}
	return a
}

// getOrCreateLocation returns the existing record for id, creating an
// empty one (absent from the ordering) if this is the first time the
// engine has seen it.
func (e *Engine) getOrCreateLocation(id LocationID) *locationRecord {
	r, ok := e.locations[id]
	if !ok {
		r = newLocationRecord(id)
		e.locations[id] = r
	}
	return r
}

// activeLocationCount returns the number of locations currently present
// in the balance ordering (i.e. active, not merely known from
// tombstones).
func (e *Engine) activeLocationCount() int { return e.order.Len() }

// K returns the engine's configured replication factor.
func (e *Engine) K() uint32 { return e.k }

// IsActive reports whether id is currently in the active set (the balance
// ordering): seeded, added or restored from a snapshot, and not removed
// since. False for locations the engine has never seen and for locations
// known only through tombstones.
func (e *Engine) IsActive(id LocationID) bool {
	r, ok := e.locations[id]
	return ok && r.inOrdering()
}
