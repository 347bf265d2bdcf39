package status

import (
	"math"
	"time"

	"relloyd/bluepresence/models"
)

// Health is the JSON body of the /health endpoint.
type Health struct {
	Healthy              bool               `json:"healthy"`
	Status               models.HealthState `json:"status"`
	LastScan             *time.Time         `json:"last_scan"`
	LastSuccess          *time.Time         `json:"last_success"`
	SecondsSinceLastScan *float64           `json:"seconds_since_last_scan"`
	DevicesFound         []string           `json:"devices_found"`
	DevicesConfigured    []string           `json:"devices_configured"`
	ErrorCount           int                `json:"error_count"`
	HAConnected          bool               `json:"ha_connected"`
	UptimeSeconds        float64            `json:"uptime_seconds"`
}

// Health evaluates the snapshot. It is healthy when running, at least one scan
// has completed, the last scan is no older than maxScanAge and errors are below maxErrors.
func (s Snapshot) Health(maxScanAge time.Duration, maxErrors int) Health {
	h := Health{
		Status:            s.Status,
		DevicesFound:      nonNil(s.DevicesFound),
		DevicesConfigured: nonNil(s.DevicesConfigured),
		ErrorCount:        s.ErrorCount,
		HAConnected:       s.HubConnected,
		UptimeSeconds:     round1(s.Uptime().Seconds()),
	}
	if !s.LastSuccess.IsZero() {
		ls := s.LastSuccess
		h.LastSuccess = &ls
	}
	if s.LastScan.IsZero() {
		return h
	}

	lastScan := s.LastScan
	since := round1(s.Now.Sub(lastScan).Seconds())
	h.LastScan = &lastScan
	h.SecondsSinceLastScan = &since

	h.Healthy = s.Status == models.HealthRunning &&
		s.Now.Sub(lastScan) <= maxScanAge &&
		s.ErrorCount < maxErrors
	return h
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
