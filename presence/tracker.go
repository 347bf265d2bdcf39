// Package presence turns per-scan detections into debounced home/away states.
//
// A device is present while it is detected, and for Timeout after it was last detected.
// Time is always passed in by the caller. If now goes backwards between calls the elapsed
// time is negative, which is within the timeout, so a previously seen device stays present
// until now catches up. No correction is attempted.
package presence

import (
	"time"

	"go.uber.org/zap"
	"relloyd/bluepresence/models"
)

type record struct {
	lastSeen        time.Time
	reportedPresent bool
	everSeen        bool
}

// Tracker is owned by a single goroutine; it does no locking and no I/O.
type Tracker struct {
	logger   *zap.SugaredLogger
	registry models.Registry
	timeout  time.Duration
	records  map[string]*record
}

func NewTracker(logger *zap.SugaredLogger, registry models.Registry, timeout time.Duration) *Tracker {
	return &Tracker{
		logger:   logger,
		registry: registry,
		timeout:  timeout,
		records:  make(map[string]*record, len(registry)),
	}
}

// getRecord lazily creates the record for name as already timed out and away.
func (t *Tracker) getRecord(name string, now time.Time) *record {
	rec, ok := t.records[name]
	if !ok {
		rec = &record{lastSeen: now.Add(-t.timeout - time.Nanosecond)}
		t.records[name] = rec
	}
	return rec
}

// Update applies one scan result and returns the devices whose reported state flipped.
// Devices are visited in registry order so Arrived and Left are in registry order too.
func (t *Tracker) Update(detected models.Detected, now time.Time) models.Transitions {
	var tr models.Transitions

	for _, dev := range t.registry {
		rec := t.getRecord(dev.Name, now)
		seen := detected.Has(dev.Name)
		if seen {
			rec.lastSeen = now
			rec.everSeen = true
		}

		// A device never detected stays away even if now moves back inside its initial window.
		shouldBePresent := seen || (rec.everSeen && now.Sub(rec.lastSeen) <= t.timeout)

		switch {
		case shouldBePresent && !rec.reportedPresent:
			rec.reportedPresent = true
			tr.Arrived = append(tr.Arrived, dev.Name)
		case !shouldBePresent && rec.reportedPresent:
			rec.reportedPresent = false
			tr.Left = append(tr.Left, dev.Name)
		}
	}

	if len(detected) > len(detected.Names(t.registry)) {
		t.logger.Debugf("Ignoring detected names that are not registered: %v", detected)
	}

	return tr
}

// Snapshot returns the reported state of every registered device.
func (t *Tracker) Snapshot() map[string]bool {
	snap := make(map[string]bool, len(t.registry))
	for _, dev := range t.registry {
		rec, ok := t.records[dev.Name]
		snap[dev.Name] = ok && rec.reportedPresent
	}
	return snap
}

// Ordered returns the reported state of every device in registry order.
// LastSeen is zero for devices that have never been detected.
func (t *Tracker) Ordered() []models.DeviceState {
	states := make([]models.DeviceState, 0, len(t.registry))
	for _, dev := range t.registry {
		s := models.DeviceState{Name: dev.Name, MAC: dev.MAC}
		if rec, ok := t.records[dev.Name]; ok {
			s.Present = rec.reportedPresent
			if rec.everSeen {
				s.LastSeen = rec.lastSeen
			}
		}
		states = append(states, s)
	}
	return states
}

// LastSeen returns the last detection time of name, false if it was never detected.
func (t *Tracker) LastSeen(name string) (time.Time, bool) {
	rec, ok := t.records[name]
	if !ok || !rec.everSeen {
		return time.Time{}, false
	}
	return rec.lastSeen, true
}

// ResetAllAway marks every device away without touching last-seen times.
func (t *Tracker) ResetAllAway() {
	for _, rec := range t.records {
		rec.reportedPresent = false
	}
}

// Registry returns the devices tracked.
func (t *Tracker) Registry() models.Registry {
	return t.registry
}
