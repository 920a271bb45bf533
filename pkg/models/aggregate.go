package models

import "time"

// TypeCount is an event count for one event type.
type TypeCount struct {
	EventType string `json:"event_type"`
	Count     int64  `json:"count"`
}

// TimelineBucket is an event count for one time bucket.
type TimelineBucket struct {
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

// CleanupResult reports rows removed by a retention sweep.
type CleanupResult struct {
	Events int64 `json:"events"`
	Alerts int64 `json:"alerts"`
	Stats  int64 `json:"stats"`
}
