package rules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	"github.com/bradleyjkemp/sigma-go/evaluator"

	"seclog/internal/logger"
	"seclog/pkg/models"
)

// SigmaLoadStats summarises one rule load.
type SigmaLoadStats struct {
	TotalFiles     int
	Loaded         int
	SkippedComplex int
	SkippedInvalid int
}

type sigmaRule struct {
	eval  *evaluator.RuleEvaluator
	match models.RuleMatch
}

// SigmaEngine tags single events with the Sigma rules they satisfy.
// Rules are compiled once at load and never change afterwards.
type SigmaEngine struct {
	rules []sigmaRule
}

// NewSigmaEngine compiles every rule found at path, which may be one rule
// file or a directory tree of them. Rules that need more than one event
// to decide (timeframes, aggregations, keyword scans) count as complex.
func NewSigmaEngine(path string) (*SigmaEngine, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	files, err := collectRuleFiles(path)
	if err != nil {
		return nil, stats, err
	}
	stats.TotalFiles = len(files)

	engine := &SigmaEngine{rules: make([]sigmaRule, 0, len(files))}
	for _, file := range files {
		rule, err := loadRule(file)
		if err != nil {
			stats.SkippedInvalid++
			logger.Debugf("Skipping Sigma rule file %s: %v", file, err)
			continue
		}
		if reason := unsupportedReason(rule); reason != "" {
			stats.SkippedComplex++
			logger.Debugf("Skipping Sigma rule %q: %s", rule.Title, reason)
			continue
		}
		engine.rules = append(engine.rules, sigmaRule{
			eval:  evaluator.ForRule(rule),
			match: matchFromRule(rule),
		})
	}
	stats.Loaded = len(engine.rules)
	return engine, stats, nil
}

// Loaded returns the number of compiled rules.
func (e *SigmaEngine) Loaded() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Apply returns every rule the event satisfies, or nil.
func (e *SigmaEngine) Apply(event *models.Event) []models.RuleMatch {
	if e == nil || event == nil || len(e.rules) == 0 {
		return nil
	}

	fields := sigmaFields(event)
	ctx := context.Background()
	var out []models.RuleMatch
	for _, r := range e.rules {
		res, err := r.eval.Matches(ctx, fields)
		if err != nil {
			logger.Debugf("Sigma rule %q failed on %q event: %v", r.match.Title, event.EventType, err)
			continue
		}
		if res.Match {
			out = append(out, r.match)
		}
	}
	return out
}

// collectRuleFiles lists rule files under path in lexical order.
// Hidden directories such as .git are not descended into.
func collectRuleFiles(path string) ([]string, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rule path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat rule path: %w", err)
	}
	if !info.IsDir() {
		if !isRuleFile(root) {
			return nil, fmt.Errorf("%s is not a .yml or .yaml rule file", root)
		}
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isRuleFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory %s: %w", root, err)
	}
	return files, nil
}

func isRuleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

func loadRule(path string) (sigma.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, err
	}
	rule, err := sigma.ParseRule(data)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse: %w", err)
	}
	if strings.TrimSpace(rule.Title) == "" {
		return sigma.Rule{}, fmt.Errorf("rule has no title")
	}
	return rule, nil
}

// unsupportedReason explains why a rule cannot be decided from one event.
// It returns "" for rules the engine can evaluate.
func unsupportedReason(rule sigma.Rule) string {
	d := rule.Detection
	if d.Timeframe > 0 {
		return "uses a timeframe"
	}
	if len(d.Conditions) == 0 {
		return "has no condition"
	}
	for name, search := range d.Searches {
		if len(search.Keywords) > 0 {
			return fmt.Sprintf("search %q is a keyword scan", name)
		}
		if len(search.EventMatchers) == 0 {
			return fmt.Sprintf("search %q has no field matchers", name)
		}
	}
	for _, cond := range d.Conditions {
		if cond.Aggregation != nil {
			return "aggregates across events"
		}
		if !singleEventExpr(cond.Search) {
			return "condition uses an unsupported operator"
		}
	}
	return ""
}

// singleEventExpr accepts named searches combined with and, or and not.
func singleEventExpr(expr sigma.SearchExpr) bool {
	switch e := expr.(type) {
	case sigma.SearchIdentifier:
		return true
	case sigma.Not:
		return singleEventExpr(e.Expr)
	case sigma.And:
		return allSingleEvent(e)
	case sigma.Or:
		return allSingleEvent(e)
	}
	return false
}

func allSingleEvent(exprs []sigma.SearchExpr) bool {
	for _, child := range exprs {
		if !singleEventExpr(child) {
			return false
		}
	}
	return true
}

// sigmaFields exposes the raw payload plus the normalized columns. The
// normalized columns win on a name clash.
func sigmaFields(event *models.Event) map[string]interface{} {
	fields := make(map[string]interface{}, len(event.RawData)+6)
	for k, v := range event.RawData {
		fields[k] = v
	}
	fields["EventType"] = event.EventType
	fields["Severity"] = string(event.Severity)
	fields["Source"] = event.Source
	fields["Description"] = event.Description
	fields["ThreatScore"] = event.ThreatScore
	if event.NativeEventID != nil {
		fields["EventID"] = *event.NativeEventID
	}
	return fields
}

func matchFromRule(rule sigma.Rule) models.RuleMatch {
	title := strings.TrimSpace(rule.Title)
	id := strings.TrimSpace(rule.ID)
	if id == "" {
		id = title
	}
	level := strings.ToLower(strings.TrimSpace(rule.Level))
	if level == "" {
		level = "medium"
	}
	tactic, technique := attackTags(rule.Tags)
	return models.RuleMatch{
		ID:        id,
		Title:     title,
		Level:     level,
		Tactic:    tactic,
		Technique: technique,
	}
}

var techniqueTag = regexp.MustCompile(`^t\d{4}(\.\d{3})?$`)

var attackTactics = map[string]bool{
	"reconnaissance":       true,
	"resource_development": true,
	"initial_access":       true,
	"execution":            true,
	"persistence":          true,
	"privilege_escalation": true,
	"defense_evasion":      true,
	"credential_access":    true,
	"discovery":            true,
	"lateral_movement":     true,
	"collection":           true,
	"command_and_control":  true,
	"exfiltration":         true,
	"impact":               true,
}

// attackTags picks the first ATT&CK tactic and technique out of a rule's
// tags. Group and software tags (attack.g0007, attack.s0002) are ignored.
func attackTags(tags []string) (tactic, technique string) {
	for _, tag := range tags {
		name, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(tag)), "attack.")
		if !ok {
			continue
		}
		switch {
		case technique == "" && techniqueTag.MatchString(name):
			technique = strings.ToUpper(strings.ReplaceAll(name, ".", "/"))
		case tactic == "" && attackTactics[name]:
			tactic = strings.ReplaceAll(name, "_", "-")
		}
	}
	return tactic, technique
}
