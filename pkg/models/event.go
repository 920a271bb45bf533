package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the sensor-reported severity of an event.
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityWarning  Severity = "Warning"
	SeverityCritical Severity = "Critical"
)

// ParseSeverity maps a free-form severity string onto the known levels.
// Unknown or empty values fall back to Info.
func ParseSeverity(s string) Severity {
	if sev, ok := LookupSeverity(s); ok {
		return sev
	}
	return SeverityInfo
}

// LookupSeverity is the strict form of ParseSeverity: ok is false for
// anything that is not a known level.
func LookupSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical, true
	case "warning", "warn":
		return SeverityWarning, true
	case "info":
		return SeverityInfo, true
	default:
		return "", false
	}
}

const (
	MinThreatScore = 0
	MaxThreatScore = 100
)

// Event is a normalized security telemetry record.
type Event struct {
	ID            int64                  `json:"id,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	EventType     string                 `json:"event_type"`
	Severity      Severity               `json:"severity"`
	Source        string                 `json:"source"`
	NativeEventID *int                   `json:"native_event_id,omitempty"`
	Description   string                 `json:"description"`
	RawData       map[string]interface{} `json:"raw_data,omitempty"`
	ThreatScore   int                    `json:"threat_score"`
	ThreatPattern string                 `json:"threat_pattern,omitempty"`
	CreatedAt     time.Time              `json:"created_at,omitempty"`
}

// Normalize fills defaults for missing fields and clamps the threat score.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if strings.TrimSpace(e.EventType) == "" {
		e.EventType = "Unknown"
	}
	if strings.TrimSpace(e.Source) == "" {
		e.Source = "Unknown"
	}
	e.Severity = ParseSeverity(string(e.Severity))
	e.ThreatScore = ClampScore(e.ThreatScore)
}

// HasNativeID reports whether the event carries the given native event id.
func (e *Event) HasNativeID(ids ...int) bool {
	if e == nil || e.NativeEventID == nil {
		return false
	}
	for _, id := range ids {
		if *e.NativeEventID == id {
			return true
		}
	}
	return false
}

// RawField returns a raw payload value rendered as a string.
func (e *Event) RawField(name string) string {
	if e == nil || e.RawData == nil {
		return ""
	}
	if v, ok := e.RawData[name]; ok {
		return stringify(v)
	}
	return ""
}

// RawIndex returns element idx of a list-valued raw payload field.
func (e *Event) RawIndex(name string, idx int) (string, bool) {
	if e == nil || e.RawData == nil {
		return "", false
	}
	switch list := e.RawData[name].(type) {
	case []interface{}:
		if idx < len(list) {
			return stringify(list[idx]), true
		}
	case []string:
		if idx < len(list) {
			return list[idx], true
		}
	}
	return "", false
}

// ClampScore bounds a score to the 0..100 range.
func ClampScore(score int) int {
	if score < MinThreatScore {
		return MinThreatScore
	}
	if score > MaxThreatScore {
		return MaxThreatScore
	}
	return score
}

// IntPtr is a helper for optional native ids.
func IntPtr(v int) *int {
	return &v
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%f", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
