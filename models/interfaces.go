package models

import (
	"context"
)

// Scanner pings every registry device and returns the names detected.
// hadError is true when any ping failed or timed out; a failing ping never aborts the rest.
type Scanner interface {
	Scan(ctx context.Context, registry Registry) (detected Detected, hadError bool)
}

// Notifier publishes presence facts to the hub.
type Notifier interface {
	PublishDevice(ctx context.Context, name string, present bool) error
	PublishGroup(ctx context.Context, aggregate GroupAggregate) error
	PublishEvent(ctx context.Context, event Event) error
}

// RecoveryAction is the opaque remedial step run after sustained scan failures.
type RecoveryAction interface {
	Recover(ctx context.Context) error
}
