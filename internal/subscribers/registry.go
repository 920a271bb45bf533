// Package subscribers fans enriched events and alerts out to registered observers.
package subscribers

import (
	"fmt"
	"sync"

	"seclog/internal/logger"
	"seclog/internal/metrics"
	"seclog/pkg/models"
)

// EventSubscriber observes persisted, enriched events.
type EventSubscriber interface {
	OnEvent(event *models.Event) error
}

// AlertSubscriber observes persisted alerts.
type AlertSubscriber interface {
	OnAlert(alert *models.Alert) error
}

// EventFunc adapts a function to EventSubscriber.
type EventFunc func(event *models.Event) error

func (f EventFunc) OnEvent(event *models.Event) error { return f(event) }

// AlertFunc adapts a function to AlertSubscriber.
type AlertFunc func(alert *models.Alert) error

func (f AlertFunc) OnAlert(alert *models.Alert) error { return f(alert) }

// Handle identifies a subscription.
type Handle uint64

type eventEntry struct {
	handle Handle
	sub    EventSubscriber
}

type alertEntry struct {
	handle Handle
	sub    AlertSubscriber
}

// Registry keeps ordered subscriber lists. Registration may happen from any
// goroutine; notification iterates over a snapshot.
type Registry struct {
	mu     sync.RWMutex
	next   Handle
	events []eventEntry
	alerts []alertEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// SubscribeEvents registers an event subscriber.
func (r *Registry) SubscribeEvents(sub EventSubscriber) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.events = append(r.events, eventEntry{handle: r.next, sub: sub})
	return r.next
}

// SubscribeAlerts registers an alert subscriber.
func (r *Registry) SubscribeAlerts(sub AlertSubscriber) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.alerts = append(r.alerts, alertEntry{handle: r.next, sub: sub})
	return r.next
}

// Unsubscribe removes a subscription of either kind. It reports whether the
// handle was registered.
func (r *Registry) Unsubscribe(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e.handle == h {
			r.events = append(r.events[:i:i], r.events[i+1:]...)
			return true
		}
	}
	for i, e := range r.alerts {
		if e.handle == h {
			r.alerts = append(r.alerts[:i:i], r.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of event and alert subscribers.
func (r *Registry) Len() (events, alerts int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events), len(r.alerts)
}

// NotifyEvent calls every event subscriber in registration order. It returns
// the number of subscribers that failed.
func (r *Registry) NotifyEvent(event *models.Event) int {
	r.mu.RLock()
	snapshot := r.events
	r.mu.RUnlock()

	failed := 0
	for _, e := range snapshot {
		if err := safeCall(func() error { return e.sub.OnEvent(event) }); err != nil {
			failed++
			metrics.SubscriberFailures.WithLabelValues("event").Inc()
			logger.Errorf("Event subscriber %d failed for event %d: %v", e.handle, event.ID, err)
		}
	}
	return failed
}

// NotifyAlert calls every alert subscriber in registration order. It returns
// the number of subscribers that failed.
func (r *Registry) NotifyAlert(alert *models.Alert) int {
	r.mu.RLock()
	snapshot := r.alerts
	r.mu.RUnlock()

	failed := 0
	for _, e := range snapshot {
		if err := safeCall(func() error { return e.sub.OnAlert(alert) }); err != nil {
			failed++
			metrics.SubscriberFailures.WithLabelValues("alert").Inc()
			logger.Errorf("Alert subscriber %d failed for alert %d: %v", e.handle, alert.ID, err)
		}
	}
	return failed
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
