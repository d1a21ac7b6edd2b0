package placement

// ordering is the balance ordering from spec.md §3: an ordered multiset
// of active locations keyed by (active_count, id), supporting min and
// max in O(log n) and removal of any element by handle.
//
// No third-party ordered-multiset/treeset library appears anywhere in
// the example pack (see DESIGN.md), so this is two hand-rolled indexed
// binary heaps — one min, one max — sharing the same locationRecord
// values. Each record carries its own index into both heaps (minIdx,
// maxIdx), so "remove this specific record" is a direct index lookup
// and sift, not a scan, and "reinsert after a count change" is a single
// Fix call on each heap. The up/down/Fix shape follows the manual-heap
// style other example code in the pack uses to avoid container/heap's
// interface{} boxing on every comparison.
type ordering struct {
	min []*locationRecord
	max []*locationRecord
}

func newOrdering() *ordering {
	return &ordering{}
}

func (o *ordering) Len() int { return len(o.min) }

func lessByCountID(a, b *locationRecord) bool {
	if a.activeCount != b.activeCount {
		return a.activeCount < b.activeCount
	}
	return a.id < b.id
}

// insert adds r to both heaps. r must not already be in the ordering.
func (o *ordering) insert(r *locationRecord) {
	o.min = append(o.min, r)
	r.minIdx = len(o.min) - 1
	minUp(o.min, r.minIdx)

	o.max = append(o.max, r)
	r.maxIdx = len(o.max) - 1
	maxUp(o.max, r.maxIdx)
}

// remove drops r from both heaps. r must currently be in the ordering.
func (o *ordering) remove(r *locationRecord) {
	o.removeFrom(&o.min, r.minIdx, true)
	o.removeFrom(&o.max, r.maxIdx, false)
	r.minIdx = -1
	r.maxIdx = -1
}

func (o *ordering) removeFrom(heap *[]*locationRecord, idx int, isMin bool) {
	h := *heap
	last := len(h) - 1
	if idx != last {
		h[idx] = h[last]
		if isMin {
			h[idx].minIdx = idx
		} else {
			h[idx].maxIdx = idx
		}
	}
	h[last] = nil
	*heap = h[:last]
	if idx < len(*heap) {
		if isMin {
			minFix(*heap, idx)
		} else {
			maxFix(*heap, idx)
		}
	}
}

// fix re-keys r's position in both heaps after its activeCount changed.
func (o *ordering) fix(r *locationRecord) {
	minFix(o.min, r.minIdx)
	maxFix(o.max, r.maxIdx)
}

// peekMin returns the location with the smallest (active_count, id), or nil
// if the ordering is empty.
func (o *ordering) peekMin() *locationRecord {
	if len(o.min) == 0 {
		return nil
	}
	return o.min[0]
}

// peekMax returns the location with the largest (active_count, id), or nil
// if the ordering is empty.
func (o *ordering) peekMax() *locationRecord {
	if len(o.max) == 0 {
		return nil
	}
	return o.max[0]
}

// --- min-heap primitives ---

func minSwap(h []*locationRecord, i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].minIdx = i
	h[j].minIdx = j
}

func minUp(h []*locationRecord, j int) {
	for {
		i := (j - 1) / 2
		if i == j || !lessByCountID(h[j], h[i]) {
			break
		}
		minSwap(h, i, j)
		j = i
	}
}

func minDown(h []*locationRecord, i0 int) bool {
	n := len(h)
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && lessByCountID(h[j2], h[j1]) {
			j = j2
		}
		if !lessByCountID(h[j], h[i]) {
			break
		}
		minSwap(h, i, j)
		i = j
	}
	return i > i0
}

func minFix(h []*locationRecord, i int) {
	if i < 0 || i >= len(h) {
		return
	}
	if !minDown(h, i) {
		minUp(h, i)
	}
}

// --- max-heap primitives (same shape, inverted comparison) ---

func maxSwap(h []*locationRecord, i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].maxIdx = i
	h[j].maxIdx = j
}

func greaterByCountID(a, b *locationRecord) bool { return lessByCountID(b, a) }

func maxUp(h []*locationRecord, j int) {
	for {
		i := (j - 1) / 2
		if i == j || !greaterByCountID(h[j], h[i]) {
			break
		}
		maxSwap(h, i, j)
		j = i
	}
}

func maxDown(h []*locationRecord, i0 int) bool {
	n := len(h)
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && greaterByCountID(h[j2], h[j1]) {
			j = j2
		}
		if !greaterByCountID(h[j], h[i]) {
			break
		}
		maxSwap(h, i, j)
		i = j
	}
	return i > i0
}

func maxFix(h []*locationRecord, i int) {
	if i < 0 || i >= len(h) {
		return
	}
	if !maxDown(h, i) {
		maxUp(h, i)
	}
}
