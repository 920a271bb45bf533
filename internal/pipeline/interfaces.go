package pipeline

import (
	"context"

	"seclog/pkg/models"
)

// Store persists events, system samples and runs retention.
type Store interface {
	AddEvent(ctx context.Context, event *models.Event) (int64, error)
	AddSystemStat(ctx context.Context, stat *models.SystemStat) (int64, error)
	CleanupOldEvents(ctx context.Context, horizonDays int) (models.CleanupResult, error)
}

// Correlator enriches events. It is only called from the consumer goroutine.
type Correlator interface {
	Analyze(event *models.Event) *models.Event
	Sweep() int
}

// Dispatcher decides on and persists alerts for enriched events.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *models.Event) (*models.Alert, error)
}

// Notifier fans out persisted events and alerts.
type Notifier interface {
	NotifyEvent(event *models.Event) int
	NotifyAlert(alert *models.Alert) int
}
