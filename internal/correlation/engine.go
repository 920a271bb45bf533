package correlation

import (
	"fmt"
	"strings"
	"time"

	"seclog/internal/rules"
	"seclog/pkg/models"
)

const (
	ransomwareMarker  = "Ransomware"
	ransomwareScore   = 95
	ransomwarePattern = "Ransomware Activity"
)

// Config controls detector windows and thresholds.
type Config struct {
	BruteForceWindow    time.Duration
	BruteForceThreshold int
	MaxPrincipals       int
	PrivilegeWindow     time.Duration
	PrivilegeThreshold  int
	ServiceWindow       time.Duration
	ServiceThreshold    int
	CriticalThreatScore int
}

// Finding is a detector verdict merged into the event.
type Finding struct {
	Score   int
	Pattern string
}

// Detector is a stateful, time-windowed pattern matcher.
type Detector interface {
	Matches(event *models.Event) bool
	Observe(event *models.Event, now time.Time) (Finding, bool)
	Sweep(now time.Time) int
}

// Engine enriches events with threat scores and patterns.
//
// Detector state is not synchronized: Analyze and Sweep must be called from
// a single goroutine.
type Engine struct {
	cfg        Config
	bruteForce *BruteForceDetector
	detectors  []Detector
	rules      rules.Engine
	now        func() time.Time
}

// NewEngine creates an engine with the built-in detectors.
func NewEngine(cfg Config, ruleEngine rules.Engine) (*Engine, error) {
	if cfg.CriticalThreatScore <= 0 {
		cfg.CriticalThreatScore = 80
	}
	bf, err := NewBruteForceDetector(cfg.BruteForceWindow, cfg.BruteForceThreshold, cfg.MaxPrincipals)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		bruteForce: bf,
		detectors: []Detector{
			bf,
			NewPrivilegeEscalationDetector(cfg.PrivilegeWindow, cfg.PrivilegeThreshold),
			NewServiceInstallDetector(cfg.ServiceWindow, cfg.ServiceThreshold),
		},
		rules: ruleEngine,
		now:   time.Now,
	}, nil
}

// Analyze scores the event in place and returns it.
func (e *Engine) Analyze(event *models.Event) *models.Event {
	if event == nil {
		return nil
	}
	event.ThreatScore = models.ClampScore(event.ThreatScore)

	if strings.Contains(event.EventType, ransomwareMarker) {
		event.ThreatScore = ransomwareScore
		event.ThreatPattern = ransomwarePattern
		return event
	}

	for _, d := range e.detectors {
		if !d.Matches(event) {
			continue
		}
		if f, ok := d.Observe(event, e.now()); ok {
			merge(event, f)
		}
		return event
	}

	if e.rules != nil {
		if matches := e.rules.Apply(event); len(matches) > 0 {
			merge(event, ruleFinding(matches))
		}
	}
	return event
}

// Sweep prunes expired detector state and returns the number of entries dropped.
func (e *Engine) Sweep() int {
	now := e.now()
	removed := 0
	for _, d := range e.detectors {
		removed += d.Sweep(now)
	}
	return removed
}

// TrackedPrincipals returns the number of principals with brute-force state.
func (e *Engine) TrackedPrincipals() int {
	return e.bruteForce.Tracked()
}

func merge(event *models.Event, f Finding) {
	event.ThreatScore = models.ClampScore(max(event.ThreatScore, f.Score))
	event.ThreatPattern = f.Pattern
}

func ruleFinding(matches []models.RuleMatch) Finding {
	best := matches[0]
	for _, m := range matches[1:] {
		if levelScore(m.Level) > levelScore(best.Level) {
			best = m
		}
	}
	title := best.Title
	if title == "" {
		title = best.ID
	}
	return Finding{
		Score:   levelScore(best.Level),
		Pattern: fmt.Sprintf("Sigma Rule: %s", title),
	}
}

func levelScore(level string) int {
	switch strings.ToLower(level) {
	case "critical":
		return 85
	case "high":
		return 70
	case "medium":
		return 50
	default:
		return 30
	}
}
