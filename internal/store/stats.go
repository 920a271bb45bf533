package store

import (
	"context"
	"fmt"

	"seclog/pkg/models"
)

// AddSystemStat inserts a resource usage snapshot.
func (s *Store) AddSystemStat(ctx context.Context, stat *models.SystemStat) (int64, error) {
	if stat == nil {
		return 0, fmt.Errorf("system stat is nil")
	}
	ts := stat.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO system_stats
		(timestamp, cpu_percent, memory_percent, memory_used_mb, disk_usage_percent,
		 network_bytes_sent, network_bytes_recv, active_connections)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(ts),
		stat.CPUPercent,
		stat.MemoryPercent,
		stat.MemoryUsedMB,
		stat.DiskUsagePercent,
		stat.NetworkBytesSent,
		stat.NetworkBytesRecv,
		stat.ActiveConnections,
	)
	if err != nil {
		return 0, fmt.Errorf("insert system stat: %w", err)
	}
	stat.Timestamp = ts.UTC()
	return res.LastInsertId()
}

// LatestSystemStats returns the most recent snapshots, newest first.
func (s *Store) LatestSystemStats(ctx context.Context, limit int) ([]*models.SystemStat, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp, cpu_percent, memory_percent, memory_used_mb,
			disk_usage_percent, network_bytes_sent, network_bytes_recv, active_connections
		FROM system_stats ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query system stats: %w", err)
	}
	defer rows.Close()

	var out []*models.SystemStat
	for rows.Next() {
		var st models.SystemStat
		var ts string
		if err := rows.Scan(&st.ID, &ts, &st.CPUPercent, &st.MemoryPercent, &st.MemoryUsedMB,
			&st.DiskUsagePercent, &st.NetworkBytesSent, &st.NetworkBytesRecv, &st.ActiveConnections); err != nil {
			return nil, fmt.Errorf("scan system stat: %w", err)
		}
		st.Timestamp = parseTime(ts)
		out = append(out, &st)
	}
	return out, rows.Err()
}
