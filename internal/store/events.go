package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"seclog/pkg/models"
)

const eventColumns = `id, timestamp, event_type, severity, source, event_id, description, raw_data, threat_score, created_at`

// EventFilter selects events for ListEvents.
type EventFilter struct {
	Severity  models.Severity
	EventType string
	Start     time.Time
	End       time.Time
	Limit     int
	Offset    int
}

// AddEvent inserts an event and returns its generated id.
// A zero Timestamp is replaced by the insert time.
func (s *Store) AddEvent(ctx context.Context, event *models.Event) (int64, error) {
	if event == nil {
		return 0, fmt.Errorf("event is nil")
	}
	now := s.now()
	ts := event.Timestamp
	if ts.IsZero() {
		ts = now
	}

	var (
		raw       sql.NullString
		canonical map[string]interface{}
	)
	if len(event.RawData) > 0 {
		data, err := json.Marshal(event.RawData)
		if err != nil {
			return 0, fmt.Errorf("marshal raw data: %w", err)
		}
		if canonical, err = decodeRawData(data); err != nil {
			return 0, err
		}
		raw = sql.NullString{String: string(data), Valid: true}
	}

	var nativeID sql.NullInt64
	if event.NativeEventID != nil {
		nativeID = sql.NullInt64{Int64: int64(*event.NativeEventID), Valid: true}
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO events
			(timestamp, event_type, severity, source, event_id, description, raw_data, threat_score, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			formatTime(ts),
			event.EventType,
			string(event.Severity),
			event.Source,
			nativeID,
			event.Description,
			raw,
			models.ClampScore(event.ThreatScore),
			formatTime(now),
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read event id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Reflect what a later read returns.
	event.Timestamp = ts.UTC()
	event.CreatedAt = now.UTC()
	if canonical != nil {
		event.RawData = canonical
	}
	return id, nil
}

// GetEvent returns one event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return event, nil
}

// ListEvents returns events matching the filter, newest first.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]*models.Event, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var where []string
	var args []interface{}
	if f.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(f.Severity))
	}
	if f.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, f.EventType)
	}
	if !f.Start.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, formatTime(f.End))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	return s.queryEvents(ctx, query, args...)
}

// RecentEvents returns events from the last given minutes.
func (s *Store) RecentEvents(ctx context.Context, minutes, limit int) ([]*models.Event, error) {
	if minutes <= 0 {
		minutes = 60
	}
	return s.ListEvents(ctx, EventFilter{
		Start: s.now().Add(-time.Duration(minutes) * time.Minute),
		Limit: limit,
	})
}

// SearchEvents matches keyword case-insensitively against description and type.
func (s *Store) SearchEvents(ctx context.Context, keyword string, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	pattern := "%" + escapeLike(keyword) + "%"
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events
		WHERE description LIKE ? ESCAPE '\' OR event_type LIKE ? ESCAPE '\'
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, pattern, pattern, limit)
}

// CountEvents returns the total number of stored events.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// CountCriticalEvents returns the number of Critical events.
func (s *Store) CountCriticalEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE severity = ?`, string(models.SeverityCritical)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count critical events: %w", err)
	}
	return n, nil
}

// CountBySeverity groups event counts by severity.
func (s *Store) CountBySeverity(ctx context.Context) (map[models.Severity]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM events GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Severity]int64)
	for rows.Next() {
		var sev string
		var n int64
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, fmt.Errorf("scan severity count: %w", err)
		}
		out[models.Severity(sev)] = n
	}
	return out, rows.Err()
}

// CountByType returns the most frequent event types.
func (s *Store) CountByType(ctx context.Context, limit int) ([]models.TypeCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT event_type, COUNT(*) AS n FROM events
		GROUP BY event_type ORDER BY n DESC, event_type ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer rows.Close()

	var out []models.TypeCount
	for rows.Next() {
		var tc models.TypeCount
		if err := rows.Scan(&tc.EventType, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// Timeline buckets event counts over the trailing window. Only non-empty
// buckets are returned, oldest first.
func (s *Store) Timeline(ctx context.Context, window, bucket time.Duration) ([]models.TimelineBucket, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if bucket <= 0 {
		bucket = 50 * time.Minute
	}
	start := s.now().Add(-window)

	rows, err := s.db.QueryContext(ctx, `SELECT timestamp FROM events WHERE timestamp >= ?`, formatTime(start))
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int64)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan timeline row: %w", err)
		}
		ts := parseTime(raw)
		if ts.IsZero() {
			continue
		}
		counts[ts.Truncate(bucket).Unix()]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.TimelineBucket, 0, len(counts))
	for unix, n := range counts {
		out = append(out, models.TimelineBucket{Start: time.Unix(unix, 0).UTC(), Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(r rowScanner) (*models.Event, error) {
	var (
		event       models.Event
		ts, created string
		severity    string
		nativeID    sql.NullInt64
		description sql.NullString
		raw         sql.NullString
	)
	if err := r.Scan(&event.ID, &ts, &event.EventType, &severity, &event.Source, &nativeID, &description, &raw, &event.ThreatScore, &created); err != nil {
		return nil, err
	}
	event.Timestamp = parseTime(ts)
	event.CreatedAt = parseTime(created)
	event.Severity = models.Severity(severity)
	event.Description = description.String
	if nativeID.Valid {
		event.NativeEventID = models.IntPtr(int(nativeID.Int64))
	}
	if raw.Valid && raw.String != "" {
		data, err := decodeRawData([]byte(raw.String))
		if err != nil {
			return nil, err
		}
		event.RawData = data
	}
	return &event, nil
}

// decodeRawData keeps integers exact: whole numbers come back as int64,
// everything else as float64.
func decodeRawData(b []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var data map[string]interface{}
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode raw data: %w", err)
	}
	for k, v := range data {
		data[k] = normalizeNumber(v)
	}
	return data, nil
}

func normalizeNumber(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeNumber(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeNumber(item)
		}
		return val
	default:
		return v
	}
}

func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(v)
}
