package models

import "time"

// SystemStat is a point-in-time resource usage snapshot.
type SystemStat struct {
	ID                int64     `json:"id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	CPUPercent        float64   `json:"cpu_percent"`
	MemoryPercent     float64   `json:"memory_percent"`
	MemoryUsedMB      float64   `json:"memory_used_mb"`
	DiskUsagePercent  float64   `json:"disk_usage_percent"`
	NetworkBytesSent  int64     `json:"network_bytes_sent"`
	NetworkBytesRecv  int64     `json:"network_bytes_recv"`
	ActiveConnections int       `json:"active_connections"`
}
