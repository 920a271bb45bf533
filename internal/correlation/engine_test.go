package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seclog/pkg/models"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(t *testing.T) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	e, err := NewEngine(Config{}, nil)
	require.NoError(t, err)
	e.now = clock.now
	return e, clock
}

func failedLogon(user string) *models.Event {
	return &models.Event{
		EventType:     "Failed Logon",
		Severity:      models.SeverityWarning,
		Source:        "Windows Event Log",
		NativeEventID: models.IntPtr(4625),
		RawData: map[string]interface{}{
			"strings": []interface{}{"S-1-0-0", "-", "-", "0x0", "S-1-0-0", user, "CORP"},
		},
	}
}

func TestBruteForceFiresOnFifthAttempt(t *testing.T) {
	e, clock := newTestEngine(t)

	for i := 1; i <= 4; i++ {
		ev := e.Analyze(failedLogon("alice"))
		assert.Equal(t, 0, ev.ThreatScore, "attempt %d", i)
		assert.Empty(t, ev.ThreatPattern)
		clock.advance(10 * time.Second)
	}

	ev := e.Analyze(failedLogon("alice"))
	assert.Equal(t, 95, ev.ThreatScore)
	assert.Equal(t, "Brute Force Attack (5 attempts)", ev.ThreatPattern)

	ev = e.Analyze(failedLogon("alice"))
	assert.Equal(t, 100, ev.ThreatScore)
	assert.Equal(t, "Brute Force Attack (6 attempts)", ev.ThreatPattern)
}

func TestBruteForceCountsPerPrincipal(t *testing.T) {
	e, _ := newTestEngine(t)

	for i := 0; i < 4; i++ {
		e.Analyze(failedLogon("alice"))
	}
	ev := e.Analyze(failedLogon("bob"))
	assert.Empty(t, ev.ThreatPattern)
	assert.Equal(t, 2, e.TrackedPrincipals())
}

func TestBruteForceWindowExpiryResetsCount(t *testing.T) {
	e, clock := newTestEngine(t)

	for i := 0; i < 5; i++ {
		e.Analyze(failedLogon("alice"))
	}
	clock.advance(301 * time.Second)

	ev := e.Analyze(failedLogon("alice"))
	assert.Equal(t, 0, ev.ThreatScore)
	assert.Empty(t, ev.ThreatPattern)

	for i := 0; i < 3; i++ {
		ev = e.Analyze(failedLogon("alice"))
	}
	assert.Empty(t, ev.ThreatPattern)
	ev = e.Analyze(failedLogon("alice"))
	assert.Equal(t, "Brute Force Attack (5 attempts)", ev.ThreatPattern)
}

func TestBruteForceUnknownPrincipalWhenPayloadShort(t *testing.T) {
	ev := &models.Event{
		EventType: "Failed Logon",
		RawData:   map[string]interface{}{"strings": []interface{}{"only", "three", "fields"}},
	}
	assert.Equal(t, "unknown", PrincipalOf(ev))
	assert.Equal(t, "unknown", PrincipalOf(&models.Event{EventType: "Failed Logon"}))
	assert.Equal(t, "svc", PrincipalOf(&models.Event{RawData: map[string]interface{}{"TargetUserName": "svc"}}))
}

func TestBruteForceKeepsHigherSensorScore(t *testing.T) {
	e, _ := newTestEngine(t)
	for i := 0; i < 4; i++ {
		e.Analyze(failedLogon("carol"))
	}
	ev := failedLogon("carol")
	ev.ThreatScore = 99
	e.Analyze(ev)
	assert.Equal(t, 99, ev.ThreatScore)
	assert.Equal(t, "Brute Force Attack (5 attempts)", ev.ThreatPattern)
}

func TestSweepDropsIdlePrincipals(t *testing.T) {
	e, clock := newTestEngine(t)
	e.Analyze(failedLogon("alice"))
	e.Analyze(failedLogon("bob"))
	require.Equal(t, 2, e.TrackedPrincipals())

	clock.advance(200 * time.Second)
	e.Analyze(failedLogon("bob"))
	clock.advance(150 * time.Second)

	removed := e.Sweep()
	assert.GreaterOrEqual(t, removed, 1)
	assert.Equal(t, 1, e.TrackedPrincipals())
}

func TestPrivilegeEscalationIsHostWide(t *testing.T) {
	e, clock := newTestEngine(t)
	ids := []int{4672, 4673, 4732}

	var ev *models.Event
	for _, id := range ids {
		ev = e.Analyze(&models.Event{EventType: "Special Privileges", NativeEventID: models.IntPtr(id), ThreatScore: 20})
		clock.advance(time.Minute)
	}
	assert.Equal(t, 75, ev.ThreatScore)
	assert.Equal(t, "Privilege Escalation Pattern (3 events)", ev.ThreatPattern)

	clock.advance(11 * time.Minute)
	ev = e.Analyze(&models.Event{EventType: "Special Privileges", NativeEventID: models.IntPtr(4672), ThreatScore: 20})
	assert.Equal(t, 20, ev.ThreatScore)
	assert.Empty(t, ev.ThreatPattern)
}

func TestServiceInstallationBurst(t *testing.T) {
	e, clock := newTestEngine(t)

	var ev *models.Event
	for _, id := range []int{4697, 7045, 7045} {
		ev = e.Analyze(&models.Event{EventType: "Service Installed", NativeEventID: models.IntPtr(id), ThreatScore: 80})
		clock.advance(5 * time.Minute)
	}
	assert.Equal(t, 80, ev.ThreatScore, "max keeps the higher sensor score")
	assert.Equal(t, "Suspicious Service Activity (3 installations)", ev.ThreatPattern)
}

func TestRansomwareOverridesScore(t *testing.T) {
	e, _ := newTestEngine(t)
	for _, score := range []int{0, 40, 99, 100} {
		ev := e.Analyze(&models.Event{EventType: "Ransomware Extension Detected", ThreatScore: score})
		assert.Equal(t, 95, ev.ThreatScore)
		assert.Equal(t, "Ransomware Activity", ev.ThreatPattern)
	}
}

func TestNonMatchingEventPassesThrough(t *testing.T) {
	e, _ := newTestEngine(t)
	ev := e.Analyze(&models.Event{EventType: "High CPU Usage", ThreatScore: 42, ThreatPattern: "sensor supplied"})
	assert.Equal(t, 42, ev.ThreatScore)
	assert.Equal(t, "sensor supplied", ev.ThreatPattern)

	ev = e.Analyze(&models.Event{EventType: "Weird", ThreatScore: 250})
	assert.Equal(t, 100, ev.ThreatScore)
}

type stubRules struct {
	matches []models.RuleMatch
	calls   int
}

func (s *stubRules) Apply(event *models.Event) []models.RuleMatch {
	s.calls++
	return s.matches
}

func TestRuleMatchesOnlyForUnclaimedEvents(t *testing.T) {
	rs := &stubRules{matches: []models.RuleMatch{{Title: "Low one", Level: "low"}, {Title: "Encoded PowerShell", Level: "high"}}}
	e, err := NewEngine(Config{}, rs)
	require.NoError(t, err)

	ev := e.Analyze(&models.Event{EventType: "New Process Created", ThreatScore: 10})
	assert.Equal(t, 70, ev.ThreatScore)
	assert.Equal(t, "Sigma Rule: Encoded PowerShell", ev.ThreatPattern)

	e.Analyze(failedLogon("dave"))
	e.Analyze(&models.Event{EventType: "Ransomware Note"})
	assert.Equal(t, 1, rs.calls)
}

func TestRecommendations(t *testing.T) {
	e, _ := newTestEngine(t)

	cases := []struct {
		name  string
		event models.Event
		first string
	}{
		{"brute force", models.Event{ThreatPattern: "Brute Force Attack (5 attempts)"}, "Lock the affected user account temporarily"},
		{"privilege", models.Event{ThreatPattern: "Privilege Escalation Pattern (3 events)"}, "Investigate the user account and recent activities"},
		{"ransomware", models.Event{EventType: "Ransomware Activity"}, "IMMEDIATE: Isolate affected systems from network"},
		{"service", models.Event{EventType: "Service Installed"}, "Verify the service is legitimate"},
		{"network source", models.Event{Source: "Network Monitor", EventType: "Connection"}, "Investigate the remote IP address"},
		{"port", models.Event{EventType: "Suspicious Port Connection"}, "Investigate the remote IP address"},
		{"file", models.Event{EventType: "File Modified"}, "Verify file changes are authorized"},
		{"generic", models.Event{EventType: "Odd", ThreatScore: 85}, "Investigate immediately"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := tc.event
			recs := e.Recommendations(&ev)
			require.Len(t, recs, 5)
			assert.Equal(t, tc.first, recs[0])
		})
	}

	assert.Empty(t, e.Recommendations(&models.Event{EventType: "Odd", ThreatScore: 79}))
}

func TestRecommendationsReturnsCopy(t *testing.T) {
	e, _ := newTestEngine(t)
	recs := e.Recommendations(&models.Event{EventType: "File Modified"})
	recs[0] = "mutated"
	again := e.Recommendations(&models.Event{EventType: "File Modified"})
	assert.Equal(t, "Verify file changes are authorized", again[0])
}

func TestNegativePrincipalCapacityIsRejected(t *testing.T) {
	_, err := NewBruteForceDetector(time.Minute, 5, -1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "principal cache")

	e, err := NewEngine(Config{MaxPrincipals: -5}, nil)
	require.Error(t, err)
	assert.Nil(t, e)

	bf, err := NewBruteForceDetector(0, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, bf)
}
