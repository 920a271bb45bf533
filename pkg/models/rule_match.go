package models

// RuleMatch represents a detection rule hit on an event.
type RuleMatch struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title,omitempty"`
	Level     string `json:"level,omitempty"`
	Tactic    string `json:"tactic,omitempty"`
	Technique string `json:"technique,omitempty"`
}
