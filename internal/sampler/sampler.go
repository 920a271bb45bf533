// Package sampler periodically records host resource usage and raises
// resource anomaly events against a moving baseline.
package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"

	"seclog/internal/logger"
	"seclog/pkg/models"
)

const (
	source = "System Stats Monitor"

	baselineReadings = 5
	baselineAlpha    = 0.1

	cpuSpikePercent    = 90
	cpuBaselineCeiling = 50
	memSpikePercent    = 90
	memBaselineCeiling = 70
	maxConnections     = 500
)

// Config controls sampling.
type Config struct {
	Interval time.Duration
	DiskPath string
}

// CollectFunc takes one sample.
type CollectFunc func(ctx context.Context) (*models.SystemStat, error)

// Sink receives samples and anomaly events; the ingest gateway satisfies it.
type Sink interface {
	Submit(event *models.Event) bool
	SubmitStat(stat *models.SystemStat) bool
}

// Sampler collects system statistics on an interval.
type Sampler struct {
	cfg     Config
	sink    Sink
	collect CollectFunc

	readings    int
	cpuBaseline float64
	memBaseline float64
}

// New creates a sampler backed by gopsutil.
func New(cfg Config, sink Sink) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	s := &Sampler{cfg: cfg, sink: sink}
	s.collect = s.collectHost
	return s
}

// Run samples until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	logger.Infof("System sampler started (interval=%s)", s.cfg.Interval)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.Sample(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sample takes one reading, submits it, and checks it for anomalies.
func (s *Sampler) Sample(ctx context.Context) {
	stat, err := s.collect(ctx)
	if err != nil {
		logger.Errorf("Error collecting system stats: %v", err)
		return
	}
	s.sink.SubmitStat(stat)
	s.checkAnomalies(stat)
	s.updateBaselines(stat)
}

func (s *Sampler) checkAnomalies(stat *models.SystemStat) {
	if s.readings < baselineReadings {
		return
	}

	if stat.CPUPercent > cpuSpikePercent && s.cpuBaseline < cpuBaselineCeiling {
		s.raise("CPU Spike", models.SeverityWarning, 30,
			fmt.Sprintf("CPU usage spike detected: %.1f%% (baseline: %.1f%%)", stat.CPUPercent, s.cpuBaseline))
	}
	if stat.MemoryPercent > memSpikePercent && s.memBaseline < memBaselineCeiling {
		s.raise("Memory Spike", models.SeverityWarning, 30,
			fmt.Sprintf("Memory usage spike detected: %.1f%% (baseline: %.1f%%)", stat.MemoryPercent, s.memBaseline))
	}
	if stat.ActiveConnections > maxConnections {
		s.raise("Excessive Network Connections", models.SeverityCritical, 60,
			fmt.Sprintf("Unusual number of network connections: %d", stat.ActiveConnections))
	}
}

func (s *Sampler) updateBaselines(stat *models.SystemStat) {
	s.readings++
	s.cpuBaseline = baselineAlpha*stat.CPUPercent + (1-baselineAlpha)*s.cpuBaseline
	s.memBaseline = baselineAlpha*stat.MemoryPercent + (1-baselineAlpha)*s.memBaseline
}

func (s *Sampler) raise(eventType string, severity models.Severity, score int, description string) {
	s.sink.Submit(&models.Event{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		Severity:    severity,
		Source:      source,
		Description: description,
		ThreatScore: score,
	})
}

func (s *Sampler) collectHost(ctx context.Context) (*models.SystemStat, error) {
	stat := &models.SystemStat{Timestamp: time.Now().UTC()}

	percents, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) > 0 {
		stat.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	stat.MemoryPercent = vm.UsedPercent
	stat.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)

	usage, err := disk.UsageWithContext(ctx, s.cfg.DiskPath)
	if err != nil {
		return nil, fmt.Errorf("disk usage %s: %w", s.cfg.DiskPath, err)
	}
	stat.DiskUsagePercent = usage.UsedPercent

	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("net counters: %w", err)
	}
	if len(counters) > 0 {
		stat.NetworkBytesSent = int64(counters[0].BytesSent)
		stat.NetworkBytesRecv = int64(counters[0].BytesRecv)
	}

	// Connection listing needs elevated privileges on some hosts.
	if conns, err := net.ConnectionsWithContext(ctx, "inet"); err == nil {
		stat.ActiveConnections = len(conns)
	} else {
		logger.Debugf("Connection count unavailable: %v", err)
	}

	return stat, nil
}
