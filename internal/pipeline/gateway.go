package pipeline

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"seclog/internal/logger"
	"seclog/internal/metrics"
	"seclog/pkg/models"
)

// Config controls the ingest gateway.
type Config struct {
	QueueSize         int
	PollInterval      time.Duration
	StopGrace         time.Duration
	SweepInterval     time.Duration
	RetentionDays     int
	RetentionInterval time.Duration
}

type workItem struct {
	event *models.Event
	stat  *models.SystemStat
}

// Gateway accepts events from any number of producers and processes them
// on a single consumer goroutine: analyze, persist, alert, notify.
type Gateway struct {
	cfg        Config
	store      Store
	correlator Correlator
	dispatcher Dispatcher
	notifier   Notifier

	queue   chan workItem
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool

	lastSweep     time.Time
	lastRetention time.Time
	now           func() time.Time
}

// NewGateway creates a gateway. dispatcher and notifier may be nil.
func NewGateway(cfg Config, store Store, correlator Correlator, dispatcher Dispatcher, notifier Notifier) *Gateway {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1 * time.Second
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 1 * time.Second
	}
	return &Gateway{
		cfg:        cfg,
		store:      store,
		correlator: correlator,
		dispatcher: dispatcher,
		notifier:   notifier,
		queue:      make(chan workItem, cfg.QueueSize),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// Submit enqueues an event without blocking. It returns false when the event
// was dropped because the queue is full or the gateway is stopped.
func (g *Gateway) Submit(event *models.Event) bool {
	if event == nil {
		return false
	}
	if !g.enqueue(workItem{event: event}) {
		metrics.EventsDropped.Inc()
		logger.Warnf("Dropped %q event from %s: ingest queue unavailable", event.EventType, event.Source)
		return false
	}
	metrics.EventsSubmitted.Inc()
	return true
}

// SubmitStat enqueues a system sample without blocking.
func (g *Gateway) SubmitStat(stat *models.SystemStat) bool {
	if stat == nil {
		return false
	}
	if !g.enqueue(workItem{stat: stat}) {
		logger.Warnf("Dropped system sample: ingest queue unavailable")
		return false
	}
	return true
}

func (g *Gateway) enqueue(item workItem) bool {
	if g.stopped.Load() {
		return false
	}
	select {
	case g.queue <- item:
		metrics.QueueDepth.Set(float64(len(g.queue)))
		return true
	default:
		return false
	}
}

// Pending returns the number of queued items.
func (g *Gateway) Pending() int {
	return len(g.queue)
}

// Start launches the consumer goroutine. Subsequent calls are no-ops.
func (g *Gateway) Start() {
	g.startOnce.Do(func() {
		now := g.now()
		g.lastSweep = now
		g.lastRetention = now
		g.started.Store(true)
		go g.run()
		logger.Infof("Ingest gateway started (queue=%d)", g.cfg.QueueSize)
	})
}

// Stop signals the consumer and waits up to the configured grace period.
// Items still queued are abandoned. A consumer that overruns the grace
// period is logged and left to finish on its own.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		g.stopped.Store(true)
		close(g.stopCh)
		if !g.started.Load() {
			return
		}

		timer := time.NewTimer(g.cfg.StopGrace)
		defer timer.Stop()
		select {
		case <-g.doneCh:
			logger.Infof("Ingest gateway stopped (%d queued items abandoned)", len(g.queue))
		case <-timer.C:
			logger.Warnf("Ingest gateway did not stop within %s", g.cfg.StopGrace)
		}
	})
}

func (g *Gateway) run() {
	defer close(g.doneCh)

	poll := time.NewTicker(g.cfg.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		default:
		}

		select {
		case <-g.stopCh:
			return
		case item := <-g.queue:
			metrics.QueueDepth.Set(float64(len(g.queue)))
			g.handle(item)
		case <-poll.C:
			g.maintain()
		}
	}
}

func (g *Gateway) handle(item workItem) {
	switch {
	case item.event != nil:
		g.processEvent(item.event)
	case item.stat != nil:
		g.processStat(item.stat)
	}
}

func (g *Gateway) processEvent(event *models.Event) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.EventsProcessed.WithLabelValues(metrics.OutcomePanic).Inc()
			logger.Errorf("Recovered panic while processing %q event: %v\n%s", event.EventType, r, debug.Stack())
		}
	}()

	ctx := context.Background()

	event.Normalize()
	if g.correlator != nil {
		g.correlator.Analyze(event)
	}

	id, err := g.store.AddEvent(ctx, event)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("add_event").Inc()
		metrics.EventsProcessed.WithLabelValues(metrics.OutcomeStoreFailed).Inc()
		logger.Errorf("Failed to store %q event: %v", event.EventType, err)
		return
	}
	event.ID = id

	if g.dispatcher != nil {
		alert, err := g.dispatcher.Dispatch(ctx, event)
		if err != nil {
			metrics.StoreErrors.WithLabelValues("add_alert").Inc()
			logger.Errorf("Failed to dispatch alert for event %d: %v", event.ID, err)
		} else if alert != nil {
			metrics.AlertsTriggered.Inc()
			if g.notifier != nil {
				g.notifier.NotifyAlert(alert)
			}
		}
	}

	if g.notifier != nil {
		g.notifier.NotifyEvent(event)
	}

	metrics.EventsProcessed.WithLabelValues(metrics.OutcomeStored).Inc()
	metrics.ProcessingLatency.Observe(time.Since(start).Seconds())
}

func (g *Gateway) processStat(stat *models.SystemStat) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Recovered panic while storing system sample: %v", r)
		}
	}()

	if _, err := g.store.AddSystemStat(context.Background(), stat); err != nil {
		metrics.StoreErrors.WithLabelValues("add_system_stat").Inc()
		logger.Errorf("Failed to store system sample: %v", err)
	}
}

// maintain runs detector sweeps and retention on the consumer goroutine so
// that storage and detector state keep a single writer.
func (g *Gateway) maintain() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Recovered panic during maintenance: %v", r)
		}
	}()

	now := g.now()

	if g.correlator != nil && g.cfg.SweepInterval > 0 && now.Sub(g.lastSweep) >= g.cfg.SweepInterval {
		g.lastSweep = now
		if removed := g.correlator.Sweep(); removed > 0 {
			logger.Debugf("Swept %d idle detector entries", removed)
		}
	}

	if g.cfg.RetentionDays > 0 && g.cfg.RetentionInterval > 0 && now.Sub(g.lastRetention) >= g.cfg.RetentionInterval {
		g.lastRetention = now
		if _, err := g.store.CleanupOldEvents(context.Background(), g.cfg.RetentionDays); err != nil {
			metrics.StoreErrors.WithLabelValues("cleanup").Inc()
			logger.Errorf("Retention cleanup failed: %v", err)
		}
	}
}
