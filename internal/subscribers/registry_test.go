package subscribers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seclog/pkg/models"
)

func TestNotifyEventRunsInOrder(t *testing.T) {
	r := NewRegistry()
	var calls []string
	r.SubscribeEvents(EventFunc(func(e *models.Event) error { calls = append(calls, "first"); return nil }))
	r.SubscribeEvents(EventFunc(func(e *models.Event) error { calls = append(calls, "second"); return nil }))

	failed := r.NotifyEvent(&models.Event{ID: 1})
	assert.Zero(t, failed)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestFailingSubscribersAreIsolated(t *testing.T) {
	r := NewRegistry()
	reached := 0
	r.SubscribeEvents(EventFunc(func(e *models.Event) error { panic("boom") }))
	r.SubscribeEvents(EventFunc(func(e *models.Event) error { return errors.New("sink down") }))
	r.SubscribeEvents(EventFunc(func(e *models.Event) error { reached++; return nil }))

	var failed int
	require.NotPanics(t, func() { failed = r.NotifyEvent(&models.Event{ID: 2}) })
	assert.Equal(t, 2, failed)
	assert.Equal(t, 1, reached)
}

func TestAlertSubscribersSeparateFromEvents(t *testing.T) {
	r := NewRegistry()
	var gotAlert *models.Alert
	r.SubscribeAlerts(AlertFunc(func(a *models.Alert) error { gotAlert = a; return nil }))
	r.SubscribeEvents(EventFunc(func(e *models.Event) error { t.Fatal("event subscriber called for alert"); return nil }))

	alert := &models.Alert{ID: 5, Message: "x"}
	assert.Zero(t, r.NotifyAlert(alert))
	assert.Same(t, alert, gotAlert)
}

func TestUnsubscribe(t *testing.T) {
	r := NewRegistry()
	count := 0
	h := r.SubscribeEvents(EventFunc(func(e *models.Event) error { count++; return nil }))
	a := r.SubscribeAlerts(AlertFunc(func(*models.Alert) error { return nil }))

	assert.True(t, r.Unsubscribe(h))
	assert.False(t, r.Unsubscribe(h))
	r.NotifyEvent(&models.Event{})
	assert.Zero(t, count)

	assert.True(t, r.Unsubscribe(a))
	events, alerts := r.Len()
	assert.Zero(t, events)
	assert.Zero(t, alerts)
}
