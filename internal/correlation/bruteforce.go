package correlation

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"seclog/internal/logger"
	"seclog/pkg/models"
)

const (
	failedLogonEventID  = 4625
	failedLogonMarker   = "Failed Logon"
	unknownPrincipal    = "unknown"
	principalFieldIndex = 5
)

// BruteForceDetector counts failed logons per principal inside a sliding window.
type BruteForceDetector struct {
	window     time.Duration
	threshold  int
	principals *lru.Cache[string, *window]
}

// NewBruteForceDetector creates a detector tracking at most maxPrincipals
// principals. Zero selects the default capacity.
func NewBruteForceDetector(span time.Duration, threshold, maxPrincipals int) (*BruteForceDetector, error) {
	if span <= 0 {
		span = 300 * time.Second
	}
	if threshold <= 0 {
		threshold = 5
	}
	if maxPrincipals == 0 {
		maxPrincipals = 10000
	}
	cache, err := lru.New[string, *window](maxPrincipals)
	if err != nil {
		return nil, fmt.Errorf("create principal cache (size %d): %w", maxPrincipals, err)
	}
	return &BruteForceDetector{
		window:     span,
		threshold:  threshold,
		principals: cache,
	}, nil
}

// Matches reports whether the event is a failed logon.
func (d *BruteForceDetector) Matches(event *models.Event) bool {
	return strings.Contains(event.EventType, failedLogonMarker) || event.HasNativeID(failedLogonEventID)
}

// Observe records an attempt and returns a finding when the threshold is reached.
func (d *BruteForceDetector) Observe(event *models.Event, now time.Time) (Finding, bool) {
	principal := PrincipalOf(event)
	w, ok := d.principals.Get(principal)
	if !ok {
		w = &window{span: d.window}
		d.principals.Add(principal, w)
	}
	w.add(now, nil)
	w.prune(now)

	count := w.len()
	if count < d.threshold {
		return Finding{}, false
	}
	logger.Warnf("Brute force detected: %d failed logins for %s", count, principal)
	return Finding{
		Score:   min(70+5*count, models.MaxThreatScore),
		Pattern: fmt.Sprintf("Brute Force Attack (%d attempts)", count),
	}, true
}

// Sweep drops principals with no attempt left inside the window.
func (d *BruteForceDetector) Sweep(now time.Time) int {
	removed := 0
	for _, principal := range d.principals.Keys() {
		w, ok := d.principals.Peek(principal)
		if !ok {
			continue
		}
		w.prune(now)
		if w.len() == 0 {
			d.principals.Remove(principal)
			removed++
		}
	}
	return removed
}

// Tracked returns the number of principals with state.
func (d *BruteForceDetector) Tracked() int {
	return d.principals.Len()
}

// PrincipalOf extracts the target account of a logon event.
func PrincipalOf(event *models.Event) string {
	if v, ok := event.RawIndex("strings", principalFieldIndex); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if v := strings.TrimSpace(event.RawField("TargetUserName")); v != "" {
		return v
	}
	return unknownPrincipal
}
