package placement

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func locIDs(n int) []LocationID {
	out := make([]LocationID, n)
	for i := range out {
		out[i] = LocationID(fmt.Sprintf("loc-%04d", i))
	}
	return out
}

func binActiveCounts(e *Engine) []int {
	out := make([]int, BinCount)
	for i, b := range e.bins {
		out[i] = b.activeCount()
	}
	return out
}

func locationActiveCounts(e *Engine) map[LocationID]int {
	out := make(map[LocationID]int, len(e.locations))
	for id, r := range e.locations {
		out[id] = r.activeCount
	}
	return out
}

func assertBalanced(t *testing.T, e *Engine) {
	t.Helper()
	if e.activeLocationCount() == 0 {
		return
	}
	min, max := e.order.peekMin(), e.order.peekMax()
	require.LessOrEqual(t, max.activeCount-min.activeCount, 1,
		"active counts must differ by at most one: min=%d (%s) max=%d (%s)",
		min.activeCount, min.id, max.activeCount, max.id)
}

func assertEveryBinFull(t *testing.T, e *Engine, want uint32) {
	t.Helper()
	for i, b := range e.bins {
		require.Equal(t, int(want), b.activeCount(), "bin %d", i)
	}
}

func TestNewEnginePowerOfTwoInitialBalance(t *testing.T) {
	t.Parallel()
	e := NewEngine(3, locIDs(8), SystemClock{})
	assertEveryBinFull(t, e, 3)
	assertBalanced(t, e)

	counts := locationActiveCounts(e)
	require.Len(t, counts, 8)
	for id, c := range counts {
		require.Equal(t, BinCount*3/8, c, "location %s", id)
	}
}

func TestNewEngineFewerLocationsThanK(t *testing.T) {
	t.Parallel()
	e := NewEngine(5, locIDs(3), SystemClock{})
	assertEveryBinFull(t, e, 3)
	for _, c := range locationActiveCounts(e) {
		require.Equal(t, BinCount, c)
	}
}

// TestNonPowerOfTwoBalanceThenGrowToPowerOfTwo drives spec.md's end-to-end
// scenario 3 in full: 1000 locations (every active count in
// {floor(3B/1000), ceil(3B/1000)} = {196, 197}), then 24 more joins to reach
// 1024, where every count converges on the exact 3B/1024 = 192.
func TestNonPowerOfTwoBalanceThenGrowToPowerOfTwo(t *testing.T) {
	t.Parallel()
	ids := locIDs(1024)
	e := NewEngine(3, ids[:1000], SystemClock{})
	assertEveryBinFull(t, e, 3)
	assertBalanced(t, e)
	for id, c := range locationActiveCounts(e) {
		assert.Contains(t, []int{196, 197}, c, "location %s out of bounds at n=1000", id)
	}

	for _, id := range ids[1000:] {
		e.AddLocation(id)
	}

	assertEveryBinFull(t, e, 3)
	assertBalanced(t, e)
	for id, c := range locationActiveCounts(e) {
		assert.Equal(t, 192, c, "location %s", id)
	}
}

// TestStartEmptyThenAddLocations drives spec.md's end-to-end scenario 2:
// start empty, add "0".."1023" one at a time, k=3. Each location ends with
// exactly 3*65536/1024 = 192 active assignments.
func TestStartEmptyThenAddLocations(t *testing.T) {
	t.Parallel()
	e := NewEngine(3, nil, SystemClock{})
	for i, c := range binActiveCounts(e) {
		require.Zero(t, c, "bin %d", i)
	}

	ids := locIDs(1024)
	for _, id := range ids {
		e.AddLocation(id)
		assertBalanced(t, e)
	}

	assertEveryBinFull(t, e, 3)
	for id, c := range locationActiveCounts(e) {
		assert.Equal(t, 192, c, "location %s", id)
	}
}

func TestAddLocationPreconditionOnDuplicate(t *testing.T) {
	t.Parallel()
	e := NewEngine(3, locIDs(4), SystemClock{})
	require.Panics(t, func() { e.AddLocation(LocationID("loc-0000")) })
}

func TestLookupReturnsActiveOwnersOnly(t *testing.T) {
	t.Parallel()
	e := NewEngine(3, locIDs(10), SystemClock{})
	hash := []byte{0x01, 0x00}
	owners := e.Lookup(hash)
	require.Len(t, owners, 3)

	removed := owners[0]
	e.RemoveLocation(removed)
	owners2 := e.Lookup(hash)
	require.Len(t, owners2, 3)
	require.NotContains(t, owners2, removed)
}

func TestLookupPreconditionOnShortHash(t *testing.T) {
	t.Parallel()
	require.Panics(t, func() { BinIndex([]byte{0x01}) })
}

func TestPruneRemovesExpiredTombstonesOnly(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := ClockFunc(func() time.Time { return base })
	e := NewEngine(2, locIDs(3), clock, WithGracePeriod(time.Minute))

	e.RemoveLocation(LocationID("loc-0000"))
	totalTombstonesBefore := 0
	for _, b := range e.bins {
		totalTombstonesBefore += len(b.assignments) - b.activeCount()
	}
	require.Greater(t, totalTombstonesBefore, 0)

	e.Prune(base)
	totalAfterEarly := 0
	for _, b := range e.bins {
		totalAfterEarly += len(b.assignments) - b.activeCount()
	}
	require.Equal(t, totalTombstonesBefore, totalAfterEarly, "tombstones inside the grace period must survive a prune")

	e.Prune(base.Add(2 * time.Minute))
	for i, b := range e.bins {
		require.Equal(t, b.activeCount(), len(b.assignments), "bin %d should hold only active assignments after the grace period", i)
	}
	_, stillKnown := e.locations[LocationID("loc-0000")]
	require.False(t, stillKnown, "a location with nothing left but expired tombstones is purged")
}

func TestSnapshotRoundTripSameK(t *testing.T) {
	t.Parallel()
	e := NewEngine(3, locIDs(20), SystemClock{})
	e.RemoveLocation(LocationID("loc-0005"))

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, e.Snapshot()))

	snap, err := DecodeSnapshot(&buf)
	require.NoError(t, err)

	e2 := NewFromSnapshot(3, snap, SystemClock{})
	require.Equal(t, binActiveCounts(e), binActiveCounts(e2))
	require.Equal(t, locationActiveCounts(e), locationActiveCounts(e2))
	assertBalanced(t, e2)
}

func TestSnapshotRoundTripGrowingK(t *testing.T) {
	t.Parallel()
	e := NewEngine(2, locIDs(30), SystemClock{})

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, e.Snapshot()))
	snap, err := DecodeSnapshot(&buf)
	require.NoError(t, err)

	grown := NewFromSnapshot(4, snap, SystemClock{})
	assertEveryBinFull(t, grown, 4)
	assertBalanced(t, grown)
}

func TestSnapshotRoundTripShrinkingK(t *testing.T) {
	t.Parallel()
	e := NewEngine(5, locIDs(40), SystemClock{})

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, e.Snapshot()))
	snap, err := DecodeSnapshot(&buf)
	require.NoError(t, err)

	shrunk := NewFromSnapshot(2, snap, SystemClock{})
	assertEveryBinFull(t, shrunk, 2)
	assertBalanced(t, shrunk)
}

func TestDecodeSnapshotRejectsBinCountMismatch(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, writeUint32(&buf, 42))

	_, err := DecodeSnapshot(&buf)
	require.Error(t, err)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecodeSnapshotRejectsTruncatedStream(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, writeUint32(&buf, BinCount))
	buf.WriteByte(0x01) // a partial assignment-count field, then nothing

	_, err := DecodeSnapshot(&buf)
	require.Error(t, err)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestTombstoneExpiryUsesGracePeriod(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := ClockFunc(func() time.Time { return base })
	e := NewEngine(2, locIDs(3), clock, WithGracePeriod(90*time.Second))

	e.RemoveLocation(LocationID("loc-0000"))
	for _, b := range e.bins {
		for _, a := range b.assignments {
			if a.Location == LocationID("loc-0000") {
				require.Equal(t, base.Add(90*time.Second), a.Expiry)
			}
		}
	}
}

// EngineLifecycleSuite groups the remove/replace edge cases that all share
// the same "start with a small, fixed membership" setup.
type EngineLifecycleSuite struct {
	suite.Suite
	engine *Engine
	ids    []LocationID
}

func (s *EngineLifecycleSuite) SetupTest() {
	s.ids = locIDs(10)
	s.engine = NewEngine(3, s.ids, SystemClock{})
}

func (s *EngineLifecycleSuite) TestRemoveWithReplacementRefillsBins() {
	removed := s.ids[0]
	removedBins := make([]uint32, 0, len(s.engine.locations[removed].binsAssigned))
	for b := range s.engine.locations[removed].binsAssigned {
		removedBins = append(removedBins, b)
	}

	s.engine.RemoveLocation(removed)

	s.Require().False(s.engine.locations[removed].inOrdering())
	for _, b := range removedBins {
		s.Require().False(s.engine.bins[b].hasActive(removed))
		s.Require().Equal(3, s.engine.bins[b].activeCount(), "bin %d should have been refilled to k", b)
	}
	assertBalanced(s.T(), s.engine)
}

func (s *EngineLifecycleSuite) TestRemovePreconditionOnUnknownLocation() {
	s.Require().Panics(func() { s.engine.RemoveLocation(LocationID("never-added")) })
}

func (s *EngineLifecycleSuite) TestRemoveWithoutSufficientReplacementLeavesBinsShort() {
	// Shrink the fixture to k == n: every location is active in every bin,
	// so removing one leaves every affected bin permanently short by one —
	// there is no other location left to promote into it.
	s.ids = locIDs(3)
	s.engine = NewEngine(3, s.ids, SystemClock{})
	removed := s.ids[0]

	s.engine.RemoveLocation(removed)

	for i, b := range s.engine.bins {
		s.Require().Equal(2, b.activeCount(), "bin %d", i)
		s.Require().False(b.hasActive(removed))
	}
}

func (s *EngineLifecycleSuite) TestAddAfterRemoveRestoresBalance() {
	removed := s.ids[0]
	s.engine.RemoveLocation(removed)
	s.engine.AddLocation(LocationID("loc-new"))

	assertEveryBinFull(s.T(), s.engine, 3)
	assertBalanced(s.T(), s.engine)
}

func TestEngineLifecycleSuite(t *testing.T) {
	suite.Run(t, new(EngineLifecycleSuite))
}

// TestRandomizedMembershipChurn interleaves random AddLocation/RemoveLocation
// calls (fixed seed, so the sequence is reproducible) and checks the balance
// invariant after every single step, the same property a deterministic
// scenario like TestStartEmptyThenAddLocations checks only at fixed points.
func TestRandomizedMembershipChurn(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))

	initial := locIDs(50)
	e := NewEngine(3, initial, SystemClock{})
	active := make(map[LocationID]bool, len(initial))
	for _, id := range initial {
		active[id] = true
	}
	nextID := len(initial)

	for i := 0; i < 500; i++ {
		if len(active) <= 3 || rng.Intn(2) == 0 {
			id := LocationID(fmt.Sprintf("loc-%04d", nextID))
			nextID++
			e.AddLocation(id)
			active[id] = true
		} else {
			victimIdx := rng.Intn(len(active))
			var victim LocationID
			j := 0
			for id := range active {
				if j == victimIdx {
					victim = id
					break
				}
				j++
			}
			e.RemoveLocation(victim)
			delete(active, victim)
		}
		assertBalanced(t, e)
	}
}
