package alerts

import (
	"context"
	"fmt"
	"time"

	"seclog/internal/logger"
	"seclog/pkg/models"
)

const genericAlertType = "Security Alert"

// Config controls alert triggering.
type Config struct {
	CriticalThreatScore int
}

// Store persists alerts.
type Store interface {
	AddAlert(ctx context.Context, alert *models.Alert) (int64, error)
}

// Recommender supplies response actions for an enriched event.
type Recommender interface {
	Recommendations(event *models.Event) []string
}

// Dispatcher turns enriched events into persisted alerts.
type Dispatcher struct {
	cfg         Config
	store       Store
	recommender Recommender
	now         func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config, store Store, recommender Recommender) *Dispatcher {
	if cfg.CriticalThreatScore <= 0 {
		cfg.CriticalThreatScore = 80
	}
	return &Dispatcher{
		cfg:         cfg,
		store:       store,
		recommender: recommender,
		now:         time.Now,
	}
}

// ShouldTrigger reports whether an event warrants an alert: a high score,
// Critical severity, or any detected pattern.
func (d *Dispatcher) ShouldTrigger(event *models.Event) bool {
	if event == nil {
		return false
	}
	if event.ThreatScore >= d.cfg.CriticalThreatScore {
		return true
	}
	if event.Severity == models.SeverityCritical {
		return true
	}
	return event.ThreatPattern != ""
}

// Compose builds the alert for an event without persisting it.
func (d *Dispatcher) Compose(event *models.Event) *models.Alert {
	var message string
	if event.ThreatPattern != "" {
		message = fmt.Sprintf("%s detected (Threat Score: %d)", event.ThreatPattern, event.ThreatScore)
	} else {
		message = fmt.Sprintf("%s event: %s (Score: %d)", event.Severity, event.EventType, event.ThreatScore)
	}

	var recs []string
	if d.recommender != nil {
		recs = d.recommender.Recommendations(event)
	}

	return &models.Alert{
		EventID:         event.ID,
		AlertType:       alertType(event),
		Message:         message,
		Recommendations: recs,
		Severity:        event.Severity,
		TriggeredAt:     d.now().UTC(),
	}
}

// Dispatch persists an alert for the event when the trigger policy fires.
// It returns nil, nil when no alert is warranted. The event must already be
// persisted (non-zero ID).
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.Event) (*models.Alert, error) {
	if !d.ShouldTrigger(event) {
		return nil, nil
	}
	if event.ID <= 0 {
		return nil, fmt.Errorf("refusing alert for unpersisted event %q", event.EventType)
	}

	alert := d.Compose(event)
	id, err := d.store.AddAlert(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("persist alert for event %d: %w", event.ID, err)
	}
	alert.ID = id

	logger.Warnf("Alert triggered: %s", alert.Message)
	return alert, nil
}

func alertType(event *models.Event) string {
	if event.ThreatPattern != "" {
		return event.ThreatPattern
	}
	if event.EventType != "" {
		return event.EventType
	}
	return genericAlertType
}
