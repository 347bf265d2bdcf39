// Package recovery counts failing scan cycles and runs the adapter recovery action.
package recovery

type State string

const (
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
)

// Monitor counts consecutive scan cycles that had at least one error.
// It is owned by the driver goroutine.
type Monitor struct {
	threshold int
	count     int
}

// NewMonitor returns a Monitor whose State is judged against threshold. A threshold <= 0 never degrades.
// Callers that treat a zero threshold as "recovery disabled" must check that before ShouldTriggerRecovery.
func NewMonitor(threshold int) *Monitor {
	return &Monitor{threshold: threshold}
}

// RecordCycle extends the failure streak on error and clears it otherwise.
func (m *Monitor) RecordCycle(hadError bool) {
	if hadError {
		m.count++
		return
	}
	m.count = 0
}

// ShouldTriggerRecovery reports whether the streak has reached threshold.
func (m *Monitor) ShouldTriggerRecovery(threshold int) bool {
	return m.count >= threshold
}

// Reset zeroes the streak. Called after a recovery attempt whatever its outcome.
func (m *Monitor) Reset() {
	m.count = 0
}

func (m *Monitor) Count() int {
	return m.count
}

func (m *Monitor) Threshold() int {
	return m.threshold
}

func (m *Monitor) State() State {
	if m.threshold > 0 && m.ShouldTriggerRecovery(m.threshold) {
		return StateDegraded
	}
	return StateHealthy
}
