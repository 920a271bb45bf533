package rules

import "seclog/pkg/models"

// Engine applies detection rules to events.
type Engine interface {
	Apply(event *models.Event) []models.RuleMatch
}

// NoopEngine returns no matches.
type NoopEngine struct{}

// Apply returns an empty match list.
func (n *NoopEngine) Apply(event *models.Event) []models.RuleMatch {
	return nil
}
