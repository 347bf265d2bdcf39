package hub

import (
	"context"
	"errors"

	"relloyd/bluepresence/models"
)

// Fanout publishes to every notifier and joins their errors.
type Fanout []models.Notifier

func (f Fanout) PublishDevice(ctx context.Context, name string, present bool) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.PublishDevice(ctx, name, present))
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishGroup(ctx context.Context, agg models.GroupAggregate) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.PublishGroup(ctx, agg))
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishEvent(ctx context.Context, event models.Event) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.PublishEvent(ctx, event))
	}
	return errors.Join(errs...)
}

// IsConnected is true when every notifier that can report a connection is connected.
func (f Fanout) IsConnected() bool {
	for _, n := range f {
		if cs, ok := n.(ConnectionStatus); ok && !cs.IsConnected() {
			return false
		}
	}
	return true
}
