package correlation

import (
	"fmt"
	"time"

	"seclog/internal/logger"
	"seclog/pkg/models"
)

// BurstDetector counts matching events host-wide inside a sliding window.
type BurstDetector struct {
	name      string
	ids       []int
	threshold int
	score     int
	pattern   string
	state     window
}

// NewPrivilegeEscalationDetector watches special-privilege and group-membership events.
func NewPrivilegeEscalationDetector(span time.Duration, threshold int) *BurstDetector {
	if span <= 0 {
		span = 10 * time.Minute
	}
	if threshold <= 0 {
		threshold = 3
	}
	return &BurstDetector{
		name:      "privilege escalation",
		ids:       []int{4672, 4673, 4732},
		threshold: threshold,
		score:     75,
		pattern:   "Privilege Escalation Pattern (%d events)",
		state:     window{span: span},
	}
}

// NewServiceInstallDetector watches service installation events.
func NewServiceInstallDetector(span time.Duration, threshold int) *BurstDetector {
	if span <= 0 {
		span = 30 * time.Minute
	}
	if threshold <= 0 {
		threshold = 3
	}
	return &BurstDetector{
		name:      "service installation",
		ids:       []int{4697, 7045},
		threshold: threshold,
		score:     65,
		pattern:   "Suspicious Service Activity (%d installations)",
		state:     window{span: span},
	}
}

// Matches reports whether the event carries one of the watched native ids.
func (d *BurstDetector) Matches(event *models.Event) bool {
	return event.HasNativeID(d.ids...)
}

// Observe records the event and returns a finding when the threshold is reached.
func (d *BurstDetector) Observe(event *models.Event, now time.Time) (Finding, bool) {
	d.state.add(now, event)
	d.state.prune(now)

	count := d.state.len()
	if count < d.threshold {
		return Finding{}, false
	}
	logger.Warnf("%s pattern detected: %d events", d.name, count)
	return Finding{
		Score:   d.score,
		Pattern: fmt.Sprintf(d.pattern, count),
	}, true
}

// Sweep prunes expired entries.
func (d *BurstDetector) Sweep(now time.Time) int {
	before := d.state.len()
	d.state.prune(now)
	return before - d.state.len()
}
