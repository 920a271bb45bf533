package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"seclog/pkg/models"
)

// AddAlert inserts an alert. The referenced event is not checked here.
func (s *Store) AddAlert(ctx context.Context, alert *models.Alert) (int64, error) {
	if alert == nil {
		return 0, fmt.Errorf("alert is nil")
	}
	triggered := alert.TriggeredAt
	if triggered.IsZero() {
		triggered = s.now()
	}

	var recs sql.NullString
	if len(alert.Recommendations) > 0 {
		recs = sql.NullString{String: strings.Join(alert.Recommendations, "\n"), Valid: true}
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO alerts
			(event_id, alert_type, message, recommendations, triggered_at, acknowledged)
			VALUES (?, ?, ?, ?, ?, ?)`,
			alert.EventID,
			alert.AlertType,
			alert.Message,
			recs,
			formatTime(triggered),
			boolToInt(alert.Acknowledged),
		)
		if err != nil {
			return fmt.Errorf("insert alert: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read alert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	alert.TriggeredAt = triggered.UTC()
	return id, nil
}

// ListAlerts returns alerts newest first, optionally filtered by acknowledgement.
func (s *Store) ListAlerts(ctx context.Context, acknowledged *bool, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT a.id, a.event_id, a.alert_type, a.message, a.recommendations, a.triggered_at,
			a.acknowledged, e.description, e.severity
		FROM alerts a
		LEFT JOIN events e ON a.event_id = e.id`
	var args []interface{}
	if acknowledged != nil {
		query += " WHERE a.acknowledged = ?"
		args = append(args, boolToInt(*acknowledged))
	}
	query += " ORDER BY a.triggered_at DESC, a.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*models.Alert
	for rows.Next() {
		var (
			a           models.Alert
			eventID     sql.NullInt64
			message     sql.NullString
			recs        sql.NullString
			triggered   string
			ack         int
			description sql.NullString
			severity    sql.NullString
		)
		if err := rows.Scan(&a.ID, &eventID, &a.AlertType, &message, &recs, &triggered, &ack, &description, &severity); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.EventID = eventID.Int64
		a.Message = message.String
		if recs.Valid && recs.String != "" {
			a.Recommendations = strings.Split(recs.String, "\n")
		}
		a.TriggeredAt = parseTime(triggered)
		a.Acknowledged = ack != 0
		a.EventDescription = description.String
		a.Severity = models.Severity(severity.String)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// AcknowledgeAlert marks an alert as acknowledged.
func (s *Store) AcknowledgeAlert(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("acknowledge alert %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acknowledge alert %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
