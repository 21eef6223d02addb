package core

import (
	"time"

	"github.com/google/uuid"
)

// CreateDefaults holds the values filled in when a rule is created without them.
// Updates never apply these.
type CreateDefaults struct {
	OutputIndex string
	From        string
	To          string
	Interval    string
	MaxSignals  int
	Language    string
}

// DefaultCreateDefaults returns the stock create-time defaults
func DefaultCreateDefaults() CreateDefaults {
	return CreateDefaults{
		OutputIndex: ".siem-signals",
		From:        "now-6m",
		To:          "now",
		Interval:    "5m",
		MaxSignals:  100,
		Language:    string(LanguageKuery),
	}
}

// NewRule builds a rule from a validated create payload, generating the id
// (and rule_id when absent) and filling every unset field from defaults.
func NewRule(u *RuleUpdate, defaults CreateDefaults, now time.Time) *Rule {
	rule := &Rule{
		ID:             uuid.New().String(),
		Enabled:        true,
		OutputIndex:    defaults.OutputIndex,
		From:           defaults.From,
		To:             defaults.To,
		Interval:       defaults.Interval,
		MaxSignals:     defaults.MaxSignals,
		Language:       defaults.Language,
		Filters:        []interface{}{},
		Index:          []string{},
		Tags:           []string{},
		References:     []string{},
		FalsePositives: []string{},
		Threats:        []Threat{},
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if u.RuleID != nil {
		rule.RuleID = *u.RuleID
	} else {
		rule.RuleID = uuid.New().String()
	}
	rule.ApplyUpdate(u)
	return rule
}
