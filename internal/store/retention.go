package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"seclog/internal/logger"
	"seclog/pkg/models"
)

// DefaultRetentionDays is used when CleanupOldEvents gets a non-positive horizon.
const DefaultRetentionDays = 30

// CleanupOldEvents removes events and stats older than horizonDays and alerts
// whose event no longer exists. The three phases are independent statements;
// an interrupted sweep is safe to re-run.
func (s *Store) CleanupOldEvents(ctx context.Context, horizonDays int) (models.CleanupResult, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultRetentionDays
	}
	cutoff := formatTime(s.now().Add(-time.Duration(horizonDays) * 24 * time.Hour))

	var res models.CleanupResult
	var err error

	if res.Events, err = s.execCount(ctx, `DELETE FROM events WHERE timestamp < ?`, cutoff); err != nil {
		return res, fmt.Errorf("delete old events: %w", err)
	}
	if res.Alerts, err = s.execCount(ctx, `DELETE FROM alerts WHERE event_id NOT IN (SELECT id FROM events)`); err != nil {
		return res, fmt.Errorf("delete orphaned alerts: %w", err)
	}
	if res.Stats, err = s.execCount(ctx, `DELETE FROM system_stats WHERE timestamp < ?`, cutoff); err != nil {
		return res, fmt.Errorf("delete old stats: %w", err)
	}

	logger.Infof("Cleanup: removed %d events, %d alerts, %d stats", res.Events, res.Alerts, res.Stats)
	return res, nil
}

// ClearAll deletes every event, alert and stat and resets the id counters.
// This is irreversible.
func (s *Store) ClearAll(ctx context.Context) (models.CleanupResult, error) {
	var res models.CleanupResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if res.Alerts, err = txCount(ctx, tx, `DELETE FROM alerts`); err != nil {
			return fmt.Errorf("delete alerts: %w", err)
		}
		if res.Events, err = txCount(ctx, tx, `DELETE FROM events`); err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		if res.Stats, err = txCount(ctx, tx, `DELETE FROM system_stats`); err != nil {
			return fmt.Errorf("delete stats: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name IN ('events', 'alerts', 'system_stats')`); err != nil {
			return fmt.Errorf("reset sequences: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.CleanupResult{}, err
	}
	logger.Warnf("Cleared all data: %d events, %d alerts, %d stats", res.Events, res.Alerts, res.Stats)
	return res, nil
}

func (s *Store) execCount(ctx context.Context, query string, args ...interface{}) (int64, error) {
	r, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return r.RowsAffected()
}

func txCount(ctx context.Context, tx *sql.Tx, query string) (int64, error) {
	r, err := tx.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return r.RowsAffected()
}
