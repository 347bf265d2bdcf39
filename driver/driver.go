// Package driver runs the scan, update and publish cycle on a fixed interval.
package driver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"relloyd/bluepresence/metrics"
	"relloyd/bluepresence/models"
	"relloyd/bluepresence/presence"
	"relloyd/bluepresence/recovery"
	"relloyd/bluepresence/status"
)

var ErrMissingDependency = errors.New("driver dependency missing")

// Indicator shows whether scanning is degraded, e.g. on a status LED.
type Indicator interface {
	ShowDegraded(degraded bool)
}

type connectionStatus interface {
	IsConnected() bool
}

// Params are the collaborators and settings of a Driver. Indicator is optional.
type Params struct {
	Scanner          models.Scanner
	Tracker          *presence.Tracker
	Monitor          *recovery.Monitor
	Recovery         models.RecoveryAction
	Notifier         models.Notifier
	Status           *status.Tracker
	Indicator        Indicator
	Interval         time.Duration
	FailureThreshold int
	RecoveryTimeout  time.Duration
	ShutdownTimeout  time.Duration
}

// Driver is the single writer of the presence tracker, failure monitor and status tracker.
type Driver struct {
	logger    *zap.SugaredLogger
	p         Params
	nowFunc   func() time.Time
	recovered bool // a recovery has run since the last clean cycle
}

func New(logger *zap.SugaredLogger, p Params) (*Driver, error) {
	if p.Scanner == nil || p.Tracker == nil || p.Monitor == nil || p.Notifier == nil || p.Status == nil {
		return nil, ErrMissingDependency
	}
	if p.Recovery == nil && p.FailureThreshold > 0 {
		return nil, ErrMissingDependency
	}
	if p.Interval <= 0 {
		p.Interval = 10 * time.Second
	}
	if p.RecoveryTimeout <= 0 {
		p.RecoveryTimeout = 30 * time.Second
	}
	if p.ShutdownTimeout <= 0 {
		p.ShutdownTimeout = 10 * time.Second
	}
	return &Driver{logger: logger, p: p, nowFunc: time.Now}, nil
}

// Run executes a cycle immediately and then once per interval until ctx is done.
// It then publishes everybody away before returning.
func (d *Driver) Run(ctx context.Context) {
	t := time.NewTicker(d.p.Interval)
	defer t.Stop()
	d.run(ctx, t.C)
}

func (d *Driver) run(ctx context.Context, tick <-chan time.Time) {
	d.p.Status.SetStatus(models.HealthRunning)
	d.logger.Infof("Scanning %v devices every %v", len(d.p.Tracker.Registry()), d.p.Interval)

	d.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			d.Shutdown()
			return
		case <-tick:
			d.RunCycle(ctx)
		}
	}
}

// RunCycle performs one scan, updates presence, publishes state and events, and runs
// recovery once the failing cycle streak reaches the threshold.
func (d *Driver) RunCycle(ctx context.Context) {
	before := d.p.Tracker.Aggregate()
	registry := d.p.Tracker.Registry()

	start := d.nowFunc()
	detected, hadError := d.p.Scanner.Scan(ctx, registry)
	now := d.nowFunc()
	if ctx.Err() != nil {
		// Shutdown interrupted the scan so its result says nothing about presence.
		d.logger.Debug("Scan interrupted by shutdown")
		return
	}

	metrics.ScanDuration.Observe(now.Sub(start).Seconds())
	d.p.Monitor.RecordCycle(hadError)
	if hadError {
		metrics.ScanCycles.WithLabelValues("error").Inc()
		d.logger.Warnf("Scan cycle had errors (%v consecutive)", d.p.Monitor.Count())
	} else {
		metrics.ScanCycles.WithLabelValues("ok").Inc()
		d.recovered = false
	}
	metrics.ConsecutiveFailures.Set(float64(d.p.Monitor.Count()))

	tr := d.p.Tracker.Update(detected, now)
	after := d.p.Tracker.Aggregate()
	for _, name := range tr.Arrived {
		d.logger.Infof("%v arrived", name)
		metrics.Transitions.WithLabelValues(name, "arrived").Inc()
	}
	for _, name := range tr.Left {
		d.logger.Infof("%v left", name)
		metrics.Transitions.WithLabelValues(name, "left").Inc()
	}

	d.publishAll(ctx, after)
	for _, event := range presence.DecideEvents(tr, before, after) {
		if err := d.p.Notifier.PublishEvent(ctx, event); err != nil {
			metrics.PublishErrors.WithLabelValues("event").Inc()
			d.logger.Errorf("Failed to publish %v event: %v", event.Type, err)
		}
	}

	// A threshold of zero disables recovery.
	if d.p.FailureThreshold > 0 && d.p.Monitor.ShouldTriggerRecovery(d.p.FailureThreshold) {
		d.recover(ctx)
	}

	d.p.Status.RecordScan(now, detected.Names(registry), hadError, d.p.Monitor.Count())
	d.p.Status.SetPresence(d.p.Tracker.Ordered(), after)
	d.updateHubConnected()
	if d.p.Indicator != nil {
		d.p.Indicator.ShowDegraded(d.recovered)
	}
}

// Shutdown marks every device away and publishes it best-effort with a fresh bounded context.
func (d *Driver) Shutdown() {
	d.p.Status.SetStatus(models.HealthStopping)
	d.p.Tracker.ResetAllAway()

	ctx, cancel := context.WithTimeout(context.Background(), d.p.ShutdownTimeout)
	defer cancel()

	d.logger.Info("Publishing everybody away")
	agg := d.p.Tracker.Aggregate()
	d.publishAll(ctx, agg)
	d.p.Status.SetPresence(d.p.Tracker.Ordered(), agg)
}

// publishAll sends the state of every device in registry order followed by the group aggregate.
func (d *Driver) publishAll(ctx context.Context, agg models.GroupAggregate) {
	for _, dev := range d.p.Tracker.Ordered() {
		if dev.Present {
			metrics.DevicePresent.WithLabelValues(dev.Name).Set(1)
		} else {
			metrics.DevicePresent.WithLabelValues(dev.Name).Set(0)
		}
		if err := d.p.Notifier.PublishDevice(ctx, dev.Name, dev.Present); err != nil {
			metrics.PublishErrors.WithLabelValues("device").Inc()
			d.logger.Errorf("Failed to publish state of %v: %v", dev.Name, err)
		}
	}

	metrics.DevicesPresent.Set(float64(agg.PresentCount))
	if err := d.p.Notifier.PublishGroup(ctx, agg); err != nil {
		metrics.PublishErrors.WithLabelValues("group").Inc()
		d.logger.Errorf("Failed to publish group state: %v", err)
	}
}

func (d *Driver) recover(ctx context.Context) {
	d.logger.Warnf("%v consecutive failing scan cycles, running recovery", d.p.Monitor.Count())

	rctx, cancel := context.WithTimeout(ctx, d.p.RecoveryTimeout)
	err := d.p.Recovery.Recover(rctx)
	cancel()

	metrics.Recoveries.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		d.logger.Errorf("Recovery failed: %v", err)
	} else {
		d.logger.Info("Recovery completed")
	}

	d.p.Status.RecordRecovery()
	d.p.Monitor.Reset()
	metrics.ConsecutiveFailures.Set(0)
	d.recovered = true
}

func (d *Driver) updateHubConnected() {
	if cs, ok := d.p.Notifier.(connectionStatus); ok {
		d.p.Status.SetHubConnected(cs.IsConnected())
	}
}
