// Package metrics holds the Prometheus collectors served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bluepresence"

var (
	// ScanCycles counts scan cycles by outcome (ok or error).
	ScanCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_cycles_total",
			Help:      "Total number of scan cycles",
		},
		[]string{"result"},
	)

	// ScanDuration is how long a full scan of all devices took.
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of a scan of all devices",
			Buckets:   []float64{.5, 1, 2, 3, 5, 10, 20, 30, 60},
		},
	)

	// PingErrors counts failed per-device pings.
	PingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ping_errors_total",
			Help:      "Total number of failed device pings",
		},
		[]string{"reason"},
	)

	// Transitions counts reported arrivals and departures.
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total number of presence transitions",
		},
		[]string{"device", "direction"},
	)

	// DevicePresent is 1 while a device is reported present.
	DevicePresent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_present",
			Help:      "Whether a device is currently reported present",
		},
		[]string{"device"},
	)

	// DevicesPresent is the number of devices reported present.
	DevicesPresent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices_present",
			Help:      "Number of devices currently reported present",
		},
	)

	// ConsecutiveFailures mirrors the failure monitor's streak.
	ConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_failed_cycles",
			Help:      "Number of consecutive scan cycles with at least one error",
		},
	)

	// Recoveries counts recovery actions by outcome.
	Recoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Total number of adapter recovery attempts",
		},
		[]string{"result"},
	)

	// PublishErrors counts failed hub publishes by kind (device, group, event).
	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of failed hub publishes",
		},
		[]string{"kind"},
	)
)

// Result maps an error to the "ok"/"error" label used by the counters above.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
