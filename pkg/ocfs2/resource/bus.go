package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// EventBus delivers resource lifecycle events to registered listeners
type EventBus interface {
	// Register subscribes the listener to the provided event kinds. Registering
	// the same listener and kind twice has no effect.
	Register(l Listener, kinds ...EventKind) error

	// Unregister removes all subscriptions for the listener. No event fired
	// after Unregister returns is delivered to it.
	Unregister(l Listener)

	// Fire synchronously delivers the event to every listener subscribed to
	// its kind, in registration order. Listener errors and panics are
	// collected and returned together.
	Fire(ctx context.Context, e *Event) error
}

type bus struct {
	log *logrus.Entry

	mu            sync.RWMutex
	subscriptions map[EventKind][]Listener
}

func NewEventBus() EventBus {
	return &bus{
		log:           logrus.StandardLogger().WithField("type", "resource/bus"),
		subscriptions: make(map[EventKind][]Listener),
	}
}

// Register implements EventBus.Register
func (b *bus) Register(l Listener, kinds ...EventKind) error {
	for _, kind := range kinds {
		if _, ok := handlers[kind]; !ok {
			return fmt.Errorf("unsupported event kind: %d", kind)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, kind := range kinds {
		if containsListener(b.subscriptions[kind], l) {
			continue
		}
		b.subscriptions[kind] = append(b.subscriptions[kind], l)
	}

	b.log.WithFields(logrus.Fields{
		"listener": l.Name(),
		"kinds":    kinds,
	}).Debug("registered listener")

	return nil
}

// Unregister implements EventBus.Unregister
func (b *bus) Unregister(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for kind, listeners := range b.subscriptions {
		filtered := make([]Listener, 0, len(listeners))
		for _, existing := range listeners {
			if existing != l {
				filtered = append(filtered, existing)
			}
		}

		if len(filtered) == 0 {
			delete(b.subscriptions, kind)
		} else {
			b.subscriptions[kind] = filtered
		}
	}

	b.log.WithField("listener", l.Name()).Debug("unregistered listener")
}

// Fire implements EventBus.Fire
func (b *bus) Fire(ctx context.Context, e *Event) error {
	handle, ok := handlers[e.Kind]
	if !ok {
		return fmt.Errorf("unsupported event kind: %d", e.Kind)
	}

	b.mu.RLock()
	listeners := make([]Listener, len(b.subscriptions[e.Kind]))
	copy(listeners, b.subscriptions[e.Kind])
	b.mu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if err := b.deliver(ctx, handle, l, e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (b *bus) deliver(ctx context.Context, handle handler, l Listener, e *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{
				"listener": l.Name(),
				"event":    e.Id.String(),
				"kind":     e.Kind.String(),
			}).Errorf("listener panicked: %v", r)
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()

	return handle(ctx, l, e)
}

func containsListener(listeners []Listener, l Listener) bool {
	for _, existing := range listeners {
		if existing == l {
			return true
		}
	}
	return false
}
