package hub

import (
	"context"

	"relloyd/bluepresence/models"
)

// DevicePublish is one recorded PublishDevice call.
type DevicePublish struct {
	Name    string
	Present bool
}

// FakeNotifier records published facts for test assertions.
type FakeNotifier struct {
	Devices []DevicePublish
	Groups  []models.GroupAggregate
	Events  []models.Event

	// Err, if set, is returned by every publish after recording the call.
	Err error
}

func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

func (f *FakeNotifier) PublishDevice(_ context.Context, name string, present bool) error {
	f.Devices = append(f.Devices, DevicePublish{Name: name, Present: present})
	return f.Err
}

func (f *FakeNotifier) PublishGroup(_ context.Context, agg models.GroupAggregate) error {
	f.Groups = append(f.Groups, agg)
	return f.Err
}

func (f *FakeNotifier) PublishEvent(_ context.Context, event models.Event) error {
	f.Events = append(f.Events, event)
	return f.Err
}

func (f *FakeNotifier) IsConnected() bool {
	return f.Err == nil
}

// EventTypes returns the recorded event types in order.
func (f *FakeNotifier) EventTypes() []models.EventType {
	var types []models.EventType
	for _, e := range f.Events {
		types = append(types, e.Type)
	}
	return types
}

// Reset clears recorded calls.
func (f *FakeNotifier) Reset() {
	f.Devices = nil
	f.Groups = nil
	f.Events = nil
	f.Err = nil
}
