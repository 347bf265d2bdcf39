// Package status holds the daemon state read by the web server.
// The driver goroutine is the only writer.
package status

import (
	"sync"
	"time"

	"relloyd/bluepresence/models"
)

// Snapshot is a point-in-time copy of daemon state, safe to use after the lock is released.
type Snapshot struct {
	Status            models.HealthState
	StartTime         time.Time
	Now               time.Time
	LastScan          time.Time
	LastSuccess       time.Time
	DevicesFound      []string
	DevicesConfigured []string
	ErrorCount        int
	Recoveries        int
	HubConnected      bool
	Devices           []models.DeviceState
	Aggregate         models.GroupAggregate
}

func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	nowFunc func() time.Time
}

// NewTracker starts in the starting state with every configured device away.
func NewTracker(startTime time.Time, devicesConfigured []string) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Status:            models.HealthStarting,
			StartTime:         startTime,
			DevicesFound:      []string{},
			DevicesConfigured: append([]string{}, devicesConfigured...),
			Aggregate:         models.GroupAggregate{TotalCount: len(devicesConfigured), NobodyHome: true, PresentNames: []string{}},
		},
		nowFunc: time.Now,
	}
}

func (t *Tracker) SetStatus(s models.HealthState) {
	t.mu.Lock()
	t.snap.Status = s
	t.mu.Unlock()
}

// RecordScan stores the outcome of one scan cycle. devicesFound are the registered names
// detected, in registry order. errorCount is the current run of consecutive failing cycles.
func (t *Tracker) RecordScan(at time.Time, devicesFound []string, hadError bool, errorCount int) {
	t.mu.Lock()
	t.snap.LastScan = at
	if !hadError {
		t.snap.LastSuccess = at
	}
	t.snap.DevicesFound = append([]string{}, devicesFound...)
	t.snap.ErrorCount = errorCount
	t.mu.Unlock()
}

// SetPresence stores the per-device states and group aggregate after an update.
func (t *Tracker) SetPresence(devices []models.DeviceState, agg models.GroupAggregate) {
	t.mu.Lock()
	t.snap.Devices = devices
	t.snap.Aggregate = agg
	t.mu.Unlock()
}

func (t *Tracker) SetHubConnected(connected bool) {
	t.mu.Lock()
	t.snap.HubConnected = connected
	t.mu.Unlock()
}

func (t *Tracker) RecordRecovery() {
	t.mu.Lock()
	t.snap.Recoveries++
	t.mu.Unlock()
}

// Snapshot returns a copy of the current state with Now set to the time of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Devices = append([]models.DeviceState(nil), s.Devices...)
	s.DevicesFound = append([]string{}, s.DevicesFound...)
	s.DevicesConfigured = append([]string{}, s.DevicesConfigured...)
	s.Aggregate.PresentNames = append([]string{}, s.Aggregate.PresentNames...)
	s.Now = t.nowFunc()
	return s
}
