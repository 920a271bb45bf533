// Package submission decodes sensor submissions received over queue transports.
package submission

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"seclog/pkg/models"
)

// Parse converts a JSON submission into an Event. Only the JSON itself must be
// valid; missing or malformed optional fields fall back to defaults.
func Parse(data []byte) (*models.Event, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}

	event := &models.Event{
		EventType:   getString(raw, "event_type", "type"),
		Severity:    models.ParseSeverity(getString(raw, "severity", "level")),
		Source:      getString(raw, "source", "sensor"),
		Description: getString(raw, "description", "message"),
	}

	if ts := getString(raw, "timestamp", "@timestamp"); ts != "" {
		if t, ok := parseTime(ts); ok {
			event.Timestamp = t
		}
	}

	if id, ok := getInt(raw, "event_id", "native_event_id", "winlog.event_id"); ok {
		event.NativeEventID = models.IntPtr(id)
	}
	if score, ok := getInt(raw, "threat_score"); ok {
		event.ThreatScore = score
	}
	if v, ok := getPath(raw, "raw_data"); ok {
		if m, ok := v.(map[string]interface{}); ok && len(m) > 0 {
			event.RawData = m
		}
	}

	event.Normalize()
	return event, nil
}

func parseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.000000",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000000",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

func getString(root map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			switch val := v.(type) {
			case string:
				return val
			case float64:
				if val == float64(int64(val)) {
					return strconv.FormatInt(int64(val), 10)
				}
				return strconv.FormatFloat(val, 'f', -1, 64)
			}
		}
	}
	return ""
}

func getInt(root map[string]interface{}, paths ...string) (int, bool) {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			switch val := v.(type) {
			case float64:
				return int(val), true
			case string:
				if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
					return parsed, true
				}
			}
		}
	}
	return 0, false
}

func getPath(root map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = root
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok || v == nil {
			return nil, false
		}
		current = v
	}
	return current, true
}
