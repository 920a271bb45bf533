package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seclog/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "events.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEventRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 5, 4, 3, 2, 1, 123456000, time.UTC)

	in := &models.Event{
		Timestamp:     ts,
		EventType:     "Failed Logon",
		Severity:      models.SeverityWarning,
		Source:        "Windows Event Log",
		NativeEventID: models.IntPtr(4625),
		Description:   "An account failed to log on",
		RawData: map[string]interface{}{
			"strings":  []interface{}{"a", "b", int64(3)},
			"nested":   map[string]interface{}{"ok": true, "ratio": 0.5},
			"computer": "WS-01",
		},
		ThreatScore: 42,
	}
	id, err := s.AddEvent(ctx, in)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.GetEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.True(t, ts.Equal(got.Timestamp))
	assert.Equal(t, in.EventType, got.EventType)
	assert.Equal(t, in.Severity, got.Severity)
	assert.Equal(t, in.Source, got.Source)
	require.NotNil(t, got.NativeEventID)
	assert.Equal(t, 4625, *got.NativeEventID)
	assert.Equal(t, in.Description, got.Description)
	assert.Equal(t, in.RawData, got.RawData)
	assert.Equal(t, 42, got.ThreatScore)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestEventRoundTripIsLossless(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	in := &models.Event{
		Timestamp: time.Now(),
		EventType: "Process Created",
		Severity:  models.SeverityInfo,
		Source:    "Windows Event Log",
		RawData: map[string]interface{}{
			"pid":     1234,
			"big":     int64(9007199254740993),
			"ratio":   0.25,
			"strings": []string{"a", "b"},
		},
	}
	id, err := s.AddEvent(ctx, in)
	require.NoError(t, err)

	got, err := s.GetEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, in.Timestamp, got.Timestamp)
	assert.Equal(t, in.CreatedAt, got.CreatedAt)
	assert.Equal(t, in.RawData, got.RawData)
	assert.Equal(t, int64(9007199254740993), got.RawData["big"])
	assert.Equal(t, int64(1234), got.RawData["pid"])
	assert.Equal(t, 0.25, got.RawData["ratio"])
	assert.Equal(t, []interface{}{"a", "b"}, got.RawData["strings"])
}

func TestEventWithoutOptionalFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.AddEvent(ctx, &models.Event{EventType: "High CPU Usage", Severity: models.SeverityInfo, Source: "System Monitor"})
	require.NoError(t, err)

	got, err := s.GetEvent(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.NativeEventID)
	assert.Nil(t, got.RawData)
	assert.False(t, got.Timestamp.IsZero())
}

func TestGetEventNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetEvent(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListEventsFiltersAndOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	add := func(offset time.Duration, typ string, sev models.Severity) int64 {
		id, err := s.AddEvent(ctx, &models.Event{Timestamp: base.Add(offset), EventType: typ, Severity: sev, Source: "test"})
		require.NoError(t, err)
		return id
	}
	a := add(0, "Failed Logon", models.SeverityWarning)
	b := add(time.Minute, "File Modified", models.SeverityInfo)
	c := add(2*time.Minute, "Failed Logon", models.SeverityCritical)
	d := add(3*time.Minute, "Failed Logon", models.SeverityWarning)

	all, err := s.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []int64{d, c, b, a}, ids(all))

	logons, err := s.ListEvents(ctx, EventFilter{EventType: "Failed Logon", Severity: models.SeverityWarning})
	require.NoError(t, err)
	assert.Equal(t, []int64{d, a}, ids(logons))

	ranged, err := s.ListEvents(ctx, EventFilter{Start: base.Add(30 * time.Second), End: base.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, []int64{c, b}, ids(ranged))

	page, err := s.ListEvents(ctx, EventFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{c, b}, ids(page))
}

func TestSearchEventsIsCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.AddEvent(ctx, &models.Event{EventType: "Suspicious Port Connection", Severity: models.SeverityWarning, Source: "Network Monitor", Description: "Outbound to 10.0.0.5:4444"})
	require.NoError(t, err)
	_, err = s.AddEvent(ctx, &models.Event{EventType: "File Modified", Severity: models.SeverityInfo, Source: "FIM", Description: "hosts file changed"})
	require.NoError(t, err)
	_, err = s.AddEvent(ctx, &models.Event{EventType: "Other", Severity: models.SeverityInfo, Source: "x", Description: "100% literal"})
	require.NoError(t, err)

	hits, err := s.SearchEvents(ctx, "PORT", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Suspicious Port Connection", hits[0].EventType)

	hits, err = s.SearchEvents(ctx, "HOSTS", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = s.SearchEvents(ctx, "%", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1, "percent must be matched literally")
}

func TestAggregates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.AddEvent(ctx, &models.Event{EventType: "Failed Logon", Severity: models.SeverityWarning, Source: "x"})
		require.NoError(t, err)
	}
	_, err := s.AddEvent(ctx, &models.Event{EventType: "Ransomware Activity", Severity: models.SeverityCritical, Source: "x"})
	require.NoError(t, err)

	bySev, err := s.CountBySeverity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bySev[models.SeverityWarning])
	assert.Equal(t, int64(1), bySev[models.SeverityCritical])

	byType, err := s.CountByType(ctx, 10)
	require.NoError(t, err)
	require.Len(t, byType, 2)
	assert.Equal(t, models.TypeCount{EventType: "Failed Logon", Count: 3}, byType[0])

	total, err := s.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	crit, err := s.CountCriticalEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), crit)
}

func TestTimelineBuckets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for _, offset := range []time.Duration{-5 * time.Minute, -7 * time.Minute, -65 * time.Minute, -30 * time.Hour} {
		_, err := s.AddEvent(ctx, &models.Event{Timestamp: now.Add(offset), EventType: "t", Severity: models.SeverityInfo, Source: "x"})
		require.NoError(t, err)
	}

	buckets, err := s.Timeline(ctx, 24*time.Hour, time.Hour)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC), buckets[0].Start)
	assert.Equal(t, int64(1), buckets[0].Count)
	assert.Equal(t, time.Date(2026, 7, 1, 11, 0, 0, 0, time.UTC), buckets[1].Start)
	assert.Equal(t, int64(2), buckets[1].Count)
}

func TestAlertsLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	eventID, err := s.AddEvent(ctx, &models.Event{EventType: "Ransomware Activity", Severity: models.SeverityCritical, Source: "FIM", Description: "mass rename"})
	require.NoError(t, err)

	alertID, err := s.AddAlert(ctx, &models.Alert{
		EventID:         eventID,
		AlertType:       "Ransomware Activity",
		Message:         "Ransomware Activity detected (Threat Score: 95)",
		Recommendations: []string{"Isolate", "Check backups"},
	})
	require.NoError(t, err)

	open := false
	pending, err := s.ListAlerts(ctx, &open, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, alertID, pending[0].ID)
	assert.Equal(t, []string{"Isolate", "Check backups"}, pending[0].Recommendations)
	assert.Equal(t, "mass rename", pending[0].EventDescription)
	assert.Equal(t, models.SeverityCritical, pending[0].Severity)

	require.NoError(t, s.AcknowledgeAlert(ctx, alertID))
	pending, err = s.ListAlerts(ctx, &open, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := s.ListAlerts(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Acknowledged)

	assert.ErrorIs(t, s.AcknowledgeAlert(ctx, 12345), ErrNotFound)
}

func TestAlertWithoutEventIsAccepted(t *testing.T) {
	s := openTestStore(t)
	_, err := s.AddAlert(context.Background(), &models.Alert{EventID: 777, AlertType: "Security Alert"})
	assert.NoError(t, err)
}

func TestCleanupOldEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	oldID, err := s.AddEvent(ctx, &models.Event{Timestamp: now.AddDate(0, 0, -45), EventType: "old", Severity: models.SeverityCritical, Source: "x"})
	require.NoError(t, err)
	keptID, err := s.AddEvent(ctx, &models.Event{Timestamp: now.AddDate(0, 0, -2), EventType: "recent", Severity: models.SeverityCritical, Source: "x"})
	require.NoError(t, err)

	_, err = s.AddAlert(ctx, &models.Alert{EventID: oldID, AlertType: "old"})
	require.NoError(t, err)
	keptAlert, err := s.AddAlert(ctx, &models.Alert{EventID: keptID, AlertType: "recent"})
	require.NoError(t, err)

	_, err = s.AddSystemStat(ctx, &models.SystemStat{Timestamp: now.AddDate(0, 0, -40), CPUPercent: 10})
	require.NoError(t, err)
	_, err = s.AddSystemStat(ctx, &models.SystemStat{Timestamp: now, CPUPercent: 20})
	require.NoError(t, err)

	res, err := s.CleanupOldEvents(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, models.CleanupResult{Events: 1, Alerts: 1, Stats: 1}, res)

	_, err = s.GetEvent(ctx, oldID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEvent(ctx, keptID)
	assert.NoError(t, err)

	alerts, err := s.ListAlerts(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, keptAlert, alerts[0].ID)

	stats, err := s.LatestSystemStats(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 20.0, stats[0].CPUPercent)

	again, err := s.CleanupOldEvents(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, models.CleanupResult{}, again)
}

func TestClearAllResetsIdentity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := s.AddEvent(ctx, &models.Event{EventType: "x", Severity: models.SeverityInfo, Source: "x"})
		require.NoError(t, err)
		_, err = s.AddAlert(ctx, &models.Alert{EventID: id, AlertType: "x"})
		require.NoError(t, err)
	}
	_, err := s.AddSystemStat(ctx, &models.SystemStat{CPUPercent: 1})
	require.NoError(t, err)

	res, err := s.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.CleanupResult{Events: 3, Alerts: 3, Stats: 1}, res)

	id, err := s.AddEvent(ctx, &models.Event{EventType: "x", Severity: models.SeverityInfo, Source: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestLatestSystemStatsOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := s.AddSystemStat(ctx, &models.SystemStat{
			Timestamp:         base.Add(time.Duration(i) * 10 * time.Second),
			CPUPercent:        float64(i),
			ActiveConnections: i,
		})
		require.NoError(t, err)
	}

	stats, err := s.LatestSystemStats(ctx, 2)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 4.0, stats[0].CPUPercent)
	assert.Equal(t, 3, stats[1].ActiveConnections)
}

func ids(events []*models.Event) []int64 {
	out := make([]int64, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}
