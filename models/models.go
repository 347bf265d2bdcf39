package models

import (
	"time"
)

type MAC string

// Device is a single registry entry.
type Device struct {
	Name string `yaml:"name" json:"name"`
	MAC  MAC    `yaml:"mac" json:"mac"`
}

// Registry is the ordered set of devices to ping. Order is the configuration order and
// is used for every per-device iteration so results are reproducible.
type Registry []Device

// Detected is the set of device names seen in one scan cycle.
type Detected map[string]struct{}

// Transitions holds the device names whose reported state flipped in one update.
type Transitions struct {
	Arrived []string `json:"arrived"`
	Left    []string `json:"left"`
}

// GroupAggregate is derived from a snapshot of all devices and is never stored.
type GroupAggregate struct {
	PresentCount  int      `json:"present_count"`
	TotalCount    int      `json:"total_count"`
	EverybodyHome bool     `json:"everybody_home"`
	NobodyHome    bool     `json:"nobody_home"`
	AnybodyHome   bool     `json:"anybody_home"`
	PresentNames  []string `json:"present_names"`
}

// DeviceState is a registry-ordered view of one device used for publishing and reporting.
type DeviceState struct {
	Name     string    `json:"name"`
	MAC      MAC       `json:"mac"`
	Present  bool      `json:"present"`
	LastSeen time.Time `json:"last_seen"`
}

type EventType string

const (
	EventArrived       EventType = "arrived"
	EventLeft          EventType = "left"
	EventAnybodyHome   EventType = "anybody_home"
	EventEverybodyHome EventType = "everybody_home"
	EventNobodyHome    EventType = "nobody_home"
)

// Event is a discrete fact for the hub.
type Event struct {
	Type    EventType      `json:"event_type"`
	Payload map[string]any `json:"payload"`
}

// HealthState is the lifecycle stage reported by the health endpoint.
type HealthState string

const (
	HealthStarting HealthState = "starting"
	HealthRunning  HealthState = "running"
	HealthStopping HealthState = "stopping"
)
