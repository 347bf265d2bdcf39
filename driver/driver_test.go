package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"relloyd/bluepresence/hub"
	"relloyd/bluepresence/models"
	"relloyd/bluepresence/presence"
	"relloyd/bluepresence/recovery"
	"relloyd/bluepresence/status"
)

var (
	t0       = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	registry = models.Registry{
		{Name: "A", MAC: "00:11:22:33:44:55"},
		{Name: "B", MAC: "66:77:88:99:AA:BB"},
	}
)

type scanResult struct {
	detected models.Detected
	hadError bool
}

// fakeScanner returns queued results in order, then repeats the last one.
type fakeScanner struct {
	results []scanResult
	calls   int
	onScan  func()
}

func (f *fakeScanner) Scan(_ context.Context, _ models.Registry) (models.Detected, bool) {
	if f.onScan != nil {
		f.onScan()
	}
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i].detected, f.results[i].hadError
}

type fakeRecovery struct {
	calls int
	err   error
}

func (f *fakeRecovery) Recover(context.Context) error {
	f.calls++
	return f.err
}

type fakeIndicator struct {
	states []bool
}

func (f *fakeIndicator) ShowDegraded(degraded bool) {
	f.states = append(f.states, degraded)
}

func (f *fakeIndicator) last() bool {
	return f.states[len(f.states)-1]
}

type fixture struct {
	driver    *Driver
	scanner   *fakeScanner
	notifier  *hub.FakeNotifier
	recovery  *fakeRecovery
	indicator *fakeIndicator
	status    *status.Tracker
	monitor   *recovery.Monitor
	now       time.Time
}

func newFixture(t *testing.T, threshold int, results ...scanResult) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	f := &fixture{
		scanner:   &fakeScanner{results: results},
		notifier:  hub.NewFakeNotifier(),
		recovery:  &fakeRecovery{},
		indicator: &fakeIndicator{},
		status:    status.NewTracker(t0, registry.Names()),
		monitor:   recovery.NewMonitor(threshold),
		now:       t0,
	}
	d, err := New(logger, Params{
		Scanner:          f.scanner,
		Tracker:          presence.NewTracker(logger, registry, 5*time.Minute),
		Monitor:          f.monitor,
		Recovery:         f.recovery,
		Notifier:         f.notifier,
		Status:           f.status,
		Indicator:        f.indicator,
		Interval:         10 * time.Second,
		FailureThreshold: threshold,
	})
	require.NoError(t, err)
	d.nowFunc = func() time.Time { return f.now }
	f.driver = d
	return f
}

func (f *fixture) cycle() {
	f.driver.RunCycle(context.Background())
	f.now = f.now.Add(10 * time.Second)
}

func found(names ...string) scanResult {
	return scanResult{detected: models.NewDetected(names...)}
}

func failed(names ...string) scanResult {
	return scanResult{detected: models.NewDetected(names...), hadError: true}
}

func TestNew_MissingDependencies(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	_, err := New(logger, Params{})
	assert.ErrorIs(t, err, ErrMissingDependency)

	_, err = New(logger, Params{
		Scanner:          &fakeScanner{},
		Tracker:          presence.NewTracker(logger, registry, time.Minute),
		Monitor:          recovery.NewMonitor(3),
		Notifier:         hub.NewFakeNotifier(),
		Status:           status.NewTracker(t0, registry.Names()),
		FailureThreshold: 3,
	})
	assert.ErrorIs(t, err, ErrMissingDependency, "recovery action is required when a threshold is set")
}

func TestRunCycle_PublishesStatesThenEvents(t *testing.T) {
	f := newFixture(t, 15, found("A"), found("A", "B"))

	f.cycle()
	assert.Equal(t, []hub.DevicePublish{{Name: "A", Present: true}, {Name: "B", Present: false}}, f.notifier.Devices)
	require.Len(t, f.notifier.Groups, 1)
	assert.Equal(t, 1, f.notifier.Groups[0].PresentCount)
	assert.Equal(t, []models.EventType{models.EventArrived, models.EventAnybodyHome}, f.notifier.EventTypes())
	assert.Equal(t, map[string]any{"name": "A"}, f.notifier.Events[0].Payload)

	f.notifier.Reset()
	f.cycle()
	assert.Equal(t, []hub.DevicePublish{{Name: "A", Present: true}, {Name: "B", Present: true}}, f.notifier.Devices)
	assert.Equal(t, []models.EventType{models.EventArrived, models.EventEverybodyHome}, f.notifier.EventTypes())
	assert.True(t, f.notifier.Groups[0].EverybodyHome)

	// No transitions: states are republished but no events fire.
	f.notifier.Reset()
	f.cycle()
	assert.Len(t, f.notifier.Devices, 2)
	assert.Len(t, f.notifier.Groups, 1)
	assert.Empty(t, f.notifier.Events)
}

func TestRunCycle_EverybodyLeaves(t *testing.T) {
	f := newFixture(t, 15, found("A", "B"), found())

	f.cycle()
	f.notifier.Reset()

	// Still present inside the timeout.
	for i := 0; i < 30; i++ {
		f.cycle()
	}
	assert.Empty(t, f.notifier.Events)

	f.now = t0.Add(5*time.Minute + time.Second)
	f.cycle()
	assert.Equal(t, []models.EventType{models.EventLeft, models.EventLeft, models.EventNobodyHome}, f.notifier.EventTypes())
	assert.Equal(t, "A", f.notifier.Events[0].Payload["name"])
	assert.Equal(t, "B", f.notifier.Events[1].Payload["name"])
}

func TestRunCycle_UpdatesStatus(t *testing.T) {
	f := newFixture(t, 15, found("A", "stranger"), failed())

	f.cycle()
	s := f.status.Snapshot()
	assert.Equal(t, t0, s.LastScan)
	assert.Equal(t, t0, s.LastSuccess)
	assert.Equal(t, []string{"A"}, s.DevicesFound, "unregistered names are not listed")
	assert.Equal(t, 0, s.ErrorCount)
	require.Len(t, s.Devices, 2)
	assert.True(t, s.Devices[0].Present)
	assert.Equal(t, t0, s.Devices[0].LastSeen)
	assert.Equal(t, []string{"A"}, s.Aggregate.PresentNames)
	assert.True(t, s.HubConnected)

	f.cycle()
	s = f.status.Snapshot()
	assert.Equal(t, t0.Add(10*time.Second), s.LastScan)
	assert.Equal(t, t0, s.LastSuccess)
	assert.Equal(t, 1, s.ErrorCount)
}

func TestRunCycle_RecoveryAfterThreshold(t *testing.T) {
	f := newFixture(t, 15, failed())

	for i := 0; i < 14; i++ {
		f.cycle()
	}
	assert.Equal(t, 0, f.recovery.calls)
	assert.Equal(t, 14, f.monitor.Count())
	assert.False(t, f.indicator.last())

	assert.Equal(t, 14, f.status.Snapshot().ErrorCount)

	f.cycle()
	assert.Equal(t, 1, f.recovery.calls)
	assert.Equal(t, 0, f.monitor.Count(), "streak resets after recovery")
	assert.True(t, f.indicator.last())
	assert.Equal(t, 1, f.status.Snapshot().Recoveries)
	assert.Equal(t, 0, f.status.Snapshot().ErrorCount, "health sees the reset streak")

	// A failed recovery still resets and the streak resumes.
	f.recovery.err = errors.New("adapter gone")
	for i := 0; i < 14; i++ {
		f.cycle()
	}
	assert.Equal(t, 1, f.recovery.calls)
	assert.True(t, f.indicator.last(), "degraded until a clean cycle")
	f.cycle()
	assert.Equal(t, 2, f.recovery.calls)
	assert.Equal(t, 0, f.monitor.Count())
}

func TestRunCycle_CleanCycleClearsStreakAndIndicator(t *testing.T) {
	f := newFixture(t, 3, failed(), failed(), failed(), found("A"), failed(), failed(), found(), failed(), failed())

	for i := 0; i < 3; i++ {
		f.cycle()
	}
	assert.Equal(t, 1, f.recovery.calls)
	assert.True(t, f.indicator.last())

	f.cycle()
	assert.False(t, f.indicator.last())

	// Interleaved successes never let the streak reach the threshold.
	for i := 0; i < 5; i++ {
		f.cycle()
	}
	assert.Equal(t, 1, f.recovery.calls)
}

func TestRunCycle_ThresholdDisabled(t *testing.T) {
	f := newFixture(t, 0, failed())
	for i := 0; i < 50; i++ {
		f.cycle()
	}
	assert.Equal(t, 0, f.recovery.calls)
	assert.Equal(t, 50, f.monitor.Count())
}

func TestRunCycle_PublishFailuresDoNotStopTheCycle(t *testing.T) {
	f := newFixture(t, 15, found("A"))
	f.notifier.Err = errors.New("hub down")

	f.cycle()
	assert.Len(t, f.notifier.Devices, 2)
	assert.Len(t, f.notifier.Groups, 1)
	assert.Equal(t, []models.EventType{models.EventArrived, models.EventAnybodyHome}, f.notifier.EventTypes())
	assert.Equal(t, 0, f.monitor.Count(), "publish errors do not count as scan failures")
	assert.False(t, f.status.Snapshot().HubConnected)
	assert.Equal(t, t0, f.status.Snapshot().LastScan)
}

func TestRunCycle_InterruptedScanIsDiscarded(t *testing.T) {
	f := newFixture(t, 15, failed("A"))
	ctx, cancel := context.WithCancel(context.Background())
	f.scanner.onScan = cancel

	f.driver.RunCycle(ctx)
	assert.Empty(t, f.notifier.Devices)
	assert.Equal(t, 0, f.monitor.Count())
	assert.True(t, f.status.Snapshot().LastScan.IsZero())
}

func TestShutdown_PublishesEverybodyAway(t *testing.T) {
	f := newFixture(t, 15, found("A", "B"))
	f.cycle()
	f.notifier.Reset()

	f.driver.Shutdown()
	assert.Equal(t, []hub.DevicePublish{{Name: "A", Present: false}, {Name: "B", Present: false}}, f.notifier.Devices)
	require.Len(t, f.notifier.Groups, 1)
	assert.True(t, f.notifier.Groups[0].NobodyHome)
	assert.Empty(t, f.notifier.Events)

	s := f.status.Snapshot()
	assert.Equal(t, models.HealthStopping, s.Status)
	assert.Equal(t, 0, s.Aggregate.PresentCount)
}

func TestShutdown_IgnoresPublishFailures(t *testing.T) {
	f := newFixture(t, 15, found("A"))
	f.cycle()
	f.notifier.Reset()
	f.notifier.Err = errors.New("hub down")

	assert.NotPanics(t, f.driver.Shutdown)
	assert.Len(t, f.notifier.Devices, 2)
}

func TestRun_LoopUntilCancelled(t *testing.T) {
	f := newFixture(t, 15, found("A"), found("A"), found("A"))
	ctx, cancel := context.WithCancel(context.Background())
	tick := make(chan time.Time)
	done := make(chan struct{})

	go func() {
		f.driver.run(ctx, tick)
		close(done)
	}()

	tick <- t0
	tick <- t0
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not stop after cancel")
	}

	assert.Equal(t, 3, f.scanner.calls, "one immediate cycle plus one per tick")
	assert.Equal(t, models.HealthStopping, f.status.Snapshot().Status)
	last := f.notifier.Devices[len(f.notifier.Devices)-2:]
	assert.Equal(t, []hub.DevicePublish{{Name: "A", Present: false}, {Name: "B", Present: false}}, last)
}
