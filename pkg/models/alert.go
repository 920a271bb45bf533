package models

import "time"

// Alert is a persisted, actionable decision derived from one event.
type Alert struct {
	ID               int64     `json:"id"`
	EventID          int64     `json:"event_id"`
	AlertType        string    `json:"alert_type"`
	Message          string    `json:"message"`
	Recommendations  []string  `json:"recommendations,omitempty"`
	Severity         Severity  `json:"severity,omitempty"`
	TriggeredAt      time.Time `json:"triggered_at"`
	Acknowledged     bool      `json:"acknowledged"`
	EventDescription string    `json:"event_description,omitempty"`
}
