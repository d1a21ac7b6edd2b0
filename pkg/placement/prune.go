package placement

import "time"

// Prune garbage-collects tombstones whose expiry has passed, per
// spec.md §4.5. Active assignments and future-dated tombstones are
// untouched. Idempotent; safe to call on any schedule.
func (e *Engine) Prune(now time.Time) {
	for _, b := range e.bins {
		if len(b.assignments) == 0 {
			continue
		}
		kept := make([]*Assignment, 0, len(b.assignments))
		for _, a := range b.assignments {
			if a.Expired(now) {
				continue
			}
			kept = append(kept, a)
		}
		b.assignments = kept
	}

	for id, r := range e.locations {
		if len(r.assignments) == 0 {
			continue
		}
		kept := make([]*Assignment, 0, len(r.assignments))
		for _, a := range r.assignments {
			if a.Expired(now) {
				continue
			}
			kept = append(kept, a)
		}
		r.assignments = kept
		if r.empty() && !r.inOrdering() {
			delete(e.locations, id)
		}
	}
}
