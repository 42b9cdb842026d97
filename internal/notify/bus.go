// Package notify keeps deduplicated, insertion-ordered listener sets keyed
// by event name.
//
// The bus only stores registrations. Dispatch is the caller's job: it takes
// a snapshot with Listeners and invokes each entry, so listeners may add or
// remove registrations while being called without affecting the current
// round.
package notify

import (
	"slices"

	"github.com/roach88/emberdb/internal/dberr"
)

// Bus holds listener registrations for a fixed set of events.
// L must be comparable so that registrations can be deduplicated.
type Bus[L comparable] struct {
	events    []string
	listeners map[string][]L
}

// New creates a bus accepting the given event names.
func New[L comparable](events ...string) *Bus[L] {
	return &Bus[L]{
		events:    slices.Clone(events),
		listeners: make(map[string][]L, len(events)),
	}
}

func (b *Bus[L]) check(event string) error {
	if !slices.Contains(b.events, event) {
		return dberr.New(dberr.KindUnsupportedEvent, "unsupported event %q, supported events are %v", event, b.events)
	}
	return nil
}

// Add registers l for event. Registering the same listener twice is a no-op.
func (b *Bus[L]) Add(event string, l L) error {
	if err := b.check(event); err != nil {
		return err
	}
	if slices.Contains(b.listeners[event], l) {
		return nil
	}
	b.listeners[event] = append(b.listeners[event], l)
	return nil
}

// Remove unregisters l from event. Removing an unknown listener is a no-op.
func (b *Bus[L]) Remove(event string, l L) error {
	if err := b.check(event); err != nil {
		return err
	}
	ls := b.listeners[event]
	if i := slices.Index(ls, l); i >= 0 {
		b.listeners[event] = slices.Delete(slices.Clone(ls), i, i+1)
	}
	return nil
}

// RemoveAll clears every registration for every event.
func (b *Bus[L]) RemoveAll() {
	clear(b.listeners)
}

// Listeners returns a snapshot of the registrations for event, in
// registration order.
func (b *Bus[L]) Listeners(event string) []L {
	return slices.Clone(b.listeners[event])
}

// Len returns the number of registrations for event.
func (b *Bus[L]) Len(event string) int {
	return len(b.listeners[event])
}
