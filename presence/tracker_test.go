package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"relloyd/bluepresence/models"
)

var (
	t0       = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	registry = models.Registry{
		{Name: "A", MAC: "00:11:22:33:44:55"},
		{Name: "B", MAC: "66:77:88:99:AA:BB"},
	}
)

func newTestTracker(t *testing.T, r models.Registry, timeout time.Duration) *Tracker {
	t.Helper()
	return NewTracker(zaptest.NewLogger(t).Sugar(), r, timeout)
}

func TestNeverSeenDeviceNeverPresent(t *testing.T) {
	tracker := newTestTracker(t, registry, 5*time.Minute)

	for i := 0; i < 20; i++ {
		now := t0.Add(time.Duration(i) * time.Minute)
		tr := tracker.Update(models.NewDetected("A"), now)
		assert.NotContains(t, tr.Arrived, "B")
		assert.NotContains(t, tr.Left, "B")
		assert.False(t, tracker.Snapshot()["B"], "B was never detected at cycle %d", i)
	}

	_, ok := tracker.LastSeen("B")
	assert.False(t, ok, "B should have no last-seen time")
}

func TestSnapshotBeforeAnyUpdate(t *testing.T) {
	tracker := newTestTracker(t, registry, time.Minute)
	assert.Equal(t, map[string]bool{"A": false, "B": false}, tracker.Snapshot())
	assert.Equal(t, models.GroupAggregate{TotalCount: 2, NobodyHome: true, PresentNames: []string{}}, tracker.Aggregate())
}

func TestPresentWithinTimeoutThenLeavesOnce(t *testing.T) {
	timeout := 5 * time.Minute
	tracker := newTestTracker(t, registry, timeout)

	tr := tracker.Update(models.NewDetected("A"), t0)
	assert.Equal(t, []string{"A"}, tr.Arrived)

	// Still present at every cycle up to and including exactly timeout after the last detection.
	for d := 30 * time.Second; d <= timeout; d += 30 * time.Second {
		tr = tracker.Update(models.NewDetected(), t0.Add(d))
		assert.False(t, tr.Any(), "no transition expected at +%v", d)
		assert.True(t, tracker.Snapshot()["A"], "A should be present at +%v", d)
	}

	// First cycle past the timeout reports the departure exactly once.
	tr = tracker.Update(models.NewDetected(), t0.Add(timeout+time.Second))
	assert.Equal(t, []string{"A"}, tr.Left)
	assert.Empty(t, tr.Arrived)

	tr = tracker.Update(models.NewDetected(), t0.Add(timeout+time.Minute))
	assert.False(t, tr.Any(), "departure must not be reported twice")
	assert.False(t, tracker.Snapshot()["A"])
}

func TestRedetectionExtendsWindow(t *testing.T) {
	tracker := newTestTracker(t, registry, 2*time.Minute)

	tracker.Update(models.NewDetected("A"), t0)
	tr := tracker.Update(models.NewDetected("A"), t0.Add(90*time.Second))
	assert.False(t, tr.Any())

	// 3 minutes after the first sighting but only 90s after the second.
	tr = tracker.Update(models.NewDetected(), t0.Add(3*time.Minute))
	assert.False(t, tr.Any())

	tr = tracker.Update(models.NewDetected(), t0.Add(3*time.Minute+31*time.Second))
	assert.Equal(t, []string{"A"}, tr.Left)

	ls, ok := tracker.LastSeen("A")
	require.True(t, ok)
	assert.Equal(t, t0.Add(90*time.Second), ls)
}

func TestUpdateIsIdempotentForSameInput(t *testing.T) {
	tracker := newTestTracker(t, registry, time.Minute)

	detected := models.NewDetected("A", "B")
	tr := tracker.Update(detected, t0)
	assert.Equal(t, []string{"A", "B"}, tr.Arrived)

	tr = tracker.Update(detected, t0)
	assert.False(t, tr.Any(), "second identical update should produce no transitions")

	tr = tracker.Update(models.NewDetected(), t0.Add(2*time.Minute))
	assert.Equal(t, []string{"A", "B"}, tr.Left)
	tr = tracker.Update(models.NewDetected(), t0.Add(2*time.Minute))
	assert.False(t, tr.Any())
}

func TestTransitionsAreDisjointAndUnique(t *testing.T) {
	r := models.Registry{
		{Name: "A", MAC: "00:00:00:00:00:01"},
		{Name: "B", MAC: "00:00:00:00:00:02"},
		{Name: "C", MAC: "00:00:00:00:00:03"},
		{Name: "D", MAC: "00:00:00:00:00:04"},
	}
	tracker := newTestTracker(t, r, time.Minute)

	// A pseudo-random but reproducible detection pattern.
	patterns := [][]string{
		{"A", "C"}, {}, {"B"}, {"A", "B", "C", "D"}, {}, {}, {"D"}, {"A"}, {}, {"C", "D"},
	}
	now := t0
	for i, p := range patterns {
		now = now.Add(45 * time.Second)
		tr := tracker.Update(models.NewDetected(p...), now)

		seen := make(map[string]int)
		for _, n := range tr.Arrived {
			seen[n]++
		}
		for _, n := range tr.Left {
			seen[n]++
		}
		for n, c := range seen {
			assert.Equal(t, 1, c, "device %v appeared %d times in cycle %d", n, c, i)
		}

		// The reported state matches the presence rule after every update.
		for _, dev := range r {
			ls, ok := tracker.LastSeen(dev.Name)
			want := ok && now.Sub(ls) <= time.Minute
			assert.Equal(t, want, tracker.Snapshot()[dev.Name], "device %v cycle %d", dev.Name, i)
		}
	}
}

func TestUnregisteredNamesIgnored(t *testing.T) {
	tracker := newTestTracker(t, registry, time.Minute)

	tr := tracker.Update(models.NewDetected("A", "stranger"), t0)
	assert.Equal(t, []string{"A"}, tr.Arrived)
	assert.NotContains(t, tracker.Snapshot(), "stranger")
}

func TestResetAllAway(t *testing.T) {
	tracker := newTestTracker(t, registry, 5*time.Minute)

	tracker.Update(models.NewDetected("A", "B"), t0)
	tracker.ResetAllAway()

	assert.Equal(t, map[string]bool{"A": false, "B": false}, tracker.Snapshot())
	ls, ok := tracker.LastSeen("A")
	require.True(t, ok, "last-seen must survive a reset")
	assert.Equal(t, t0, ls)

	// The next update re-derives presence from last-seen and reports the arrival again.
	tr := tracker.Update(models.NewDetected(), t0.Add(time.Minute))
	assert.Equal(t, []string{"A", "B"}, tr.Arrived)
}

func TestClockGoingBackwardsKeepsDevicePresent(t *testing.T) {
	tracker := newTestTracker(t, registry, time.Minute)

	tracker.Update(models.NewDetected("A"), t0)
	tr := tracker.Update(models.NewDetected(), t0.Add(-10*time.Minute))
	assert.Empty(t, tr.Arrived)
	assert.Empty(t, tr.Left)
	assert.True(t, tracker.Snapshot()["A"])
	assert.False(t, tracker.Snapshot()["B"], "B was never detected")
}

func TestClockGoingBackwardsNeverPresentsUnseenDevices(t *testing.T) {
	tracker := newTestTracker(t, registry, 5*time.Minute)

	tr := tracker.Update(models.NewDetected(), t0.Add(10*time.Minute))
	assert.False(t, tr.Any())

	tr = tracker.Update(models.NewDetected(), t0.Add(9*time.Minute))
	assert.Empty(t, tr.Arrived)
	assert.Empty(t, tr.Left)
	assert.Equal(t, map[string]bool{"A": false, "B": false}, tracker.Snapshot())
}

func TestOrdered(t *testing.T) {
	tracker := newTestTracker(t, registry, time.Minute)
	tracker.Update(models.NewDetected("B"), t0)

	assert.Equal(t, []models.DeviceState{
		{Name: "A", MAC: "00:11:22:33:44:55", Present: false},
		{Name: "B", MAC: "66:77:88:99:AA:BB", Present: true, LastSeen: t0},
	}, tracker.Ordered())
}

// Cycle1 at t=0 {A}, cycle2 at 2m {}, cycle3 at 6m {} with a 5 minute timeout.
func TestScenarioSingleDeviceTimesOut(t *testing.T) {
	tracker := newTestTracker(t, registry, 5*time.Minute)

	tr := tracker.Update(models.NewDetected("A"), t0)
	assert.Equal(t, []string{"A"}, tr.Arrived)
	assert.Empty(t, tr.Left)
	assert.Equal(t, map[string]bool{"A": true, "B": false}, tracker.Snapshot())

	tr = tracker.Update(models.NewDetected(), t0.Add(2*time.Minute))
	assert.False(t, tr.Any())

	tr = tracker.Update(models.NewDetected(), t0.Add(6*time.Minute))
	assert.Equal(t, []string{"A"}, tr.Left)
	assert.Empty(t, tr.Arrived)
	assert.True(t, tracker.Aggregate().NobodyHome)
}
