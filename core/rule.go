package core

import (
	"encoding/json"
	"sort"
	"time"
)

// Rule represents a stored detection rule
type Rule struct {
	ID             string                 `json:"id" example:"04128c15-0d1b-4716-a4c5-46997ac7f3bd"`
	RuleID         string                 `json:"rule_id" example:"failed_login"`
	Name           string                 `json:"name" example:"Failed User Login"`
	Description    string                 `json:"description" example:"Detects multiple failed login attempts"`
	Enabled        bool                   `json:"enabled"`
	Immutable      bool                   `json:"immutable"`
	Type           string                 `json:"type" example:"query"`
	Severity       string                 `json:"severity" example:"high"`
	RiskScore      float64                `json:"risk_score" example:"50"`
	Query          string                 `json:"query,omitempty"`
	Language       string                 `json:"language,omitempty" example:"kuery"`
	SavedID        string                 `json:"saved_id,omitempty"`
	Filters        []interface{}          `json:"filters"`
	Index          []string               `json:"index"`
	OutputIndex    string                 `json:"output_index,omitempty"`
	From           string                 `json:"from" example:"now-6m"`
	To             string                 `json:"to" example:"now"`
	Interval       string                 `json:"interval" example:"5m"`
	MaxSignals     int                    `json:"max_signals" example:"100"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
	Tags           []string               `json:"tags"`
	References     []string               `json:"references"`
	FalsePositives []string               `json:"false_positives"`
	Threats        []Threat               `json:"threats"`
	TimelineID     string                 `json:"timeline_id,omitempty"`
	TimelineTitle  string                 `json:"timeline_title,omitempty"`
	Version        int                    `json:"version" example:"1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Threat is a threat-intelligence annotation on a rule
type Threat struct {
	Framework  string            `json:"framework" yaml:"framework"`
	Tactic     ThreatTactic      `json:"tactic" yaml:"tactic"`
	Techniques []ThreatTechnique `json:"techniques" yaml:"techniques"`
}

// ThreatTactic references a tactic within a threat framework
type ThreatTactic struct {
	ID        string `json:"id" yaml:"id" example:"TA0006"`
	Name      string `json:"name" yaml:"name" example:"Credential Access"`
	Reference string `json:"reference" yaml:"reference"`
}

// ThreatTechnique references a technique within a threat framework
type ThreatTechnique struct {
	ID        string `json:"id" yaml:"id" example:"T1110"`
	Name      string `json:"name" yaml:"name" example:"Brute Force"`
	Reference string `json:"reference" yaml:"reference"`
}

// RuleUpdate is a normalized, validated rule update.
//
// A nil field was absent from the payload and must leave the stored value
// untouched. Slices follow the same convention: nil means absent, a non-nil
// empty slice means the caller asked for the list to be cleared.
type RuleUpdate struct {
	ID             *string
	RuleID         *string
	Description    *string
	Enabled        *bool
	FalsePositives []string
	Filters        []interface{}
	From           *string
	Index          []string
	Interval       *string
	Query          *string
	Language       *string
	OutputIndex    *string
	SavedID        *string
	TimelineID     *string
	TimelineTitle  *string
	Meta           map[string]interface{}
	RiskScore      *float64
	MaxSignals     *int
	Name           *string
	Severity       *string
	Tags           []string
	To             *string
	Type           *string
	Threats        []Threat
	References     []string
	Version        *int
}

// Identifier returns the identifying field name and value of the update.
// Exactly one of id and rule_id is set on a validated update.
func (u *RuleUpdate) Identifier() (field, value string) {
	if u.ID != nil {
		return "id", *u.ID
	}
	if u.RuleID != nil {
		return "rule_id", *u.RuleID
	}
	return "", ""
}

// Fields returns the sorted names of the fields present in the update
func (u *RuleUpdate) Fields() []string {
	fields := make([]string, 0, len(u.asMap()))
	for name := range u.asMap() {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// MarshalJSON encodes only the fields present in the update, keeping empty
// lists that were explicitly sent.
func (u *RuleUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.asMap())
}

func (u *RuleUpdate) asMap() map[string]interface{} {
	m := make(map[string]interface{})
	putString := func(name string, v *string) {
		if v != nil {
			m[name] = *v
		}
	}
	putString("id", u.ID)
	putString("rule_id", u.RuleID)
	putString("description", u.Description)
	putString("from", u.From)
	putString("to", u.To)
	putString("interval", u.Interval)
	putString("query", u.Query)
	putString("language", u.Language)
	putString("output_index", u.OutputIndex)
	putString("saved_id", u.SavedID)
	putString("timeline_id", u.TimelineID)
	putString("timeline_title", u.TimelineTitle)
	putString("name", u.Name)
	putString("severity", u.Severity)
	putString("type", u.Type)

	if u.Enabled != nil {
		m["enabled"] = *u.Enabled
	}
	if u.RiskScore != nil {
		m["risk_score"] = *u.RiskScore
	}
	if u.MaxSignals != nil {
		m["max_signals"] = *u.MaxSignals
	}
	if u.Version != nil {
		m["version"] = *u.Version
	}
	if u.Meta != nil {
		m["meta"] = u.Meta
	}
	if u.FalsePositives != nil {
		m["false_positives"] = u.FalsePositives
	}
	if u.Filters != nil {
		m["filters"] = u.Filters
	}
	if u.Index != nil {
		m["index"] = u.Index
	}
	if u.Tags != nil {
		m["tags"] = u.Tags
	}
	if u.Threats != nil {
		m["threats"] = u.Threats
	}
	if u.References != nil {
		m["references"] = u.References
	}
	return m
}

// ApplyUpdate merges the present fields of u into the rule. Identity fields
// are never rewritten and UpdatedAt is left to the caller.
func (r *Rule) ApplyUpdate(u *RuleUpdate) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&r.Description, u.Description)
	setString(&r.From, u.From)
	setString(&r.To, u.To)
	setString(&r.Interval, u.Interval)
	setString(&r.Query, u.Query)
	setString(&r.Language, u.Language)
	setString(&r.OutputIndex, u.OutputIndex)
	setString(&r.SavedID, u.SavedID)
	setString(&r.TimelineID, u.TimelineID)
	setString(&r.TimelineTitle, u.TimelineTitle)
	setString(&r.Name, u.Name)
	setString(&r.Severity, u.Severity)
	setString(&r.Type, u.Type)

	if u.Enabled != nil {
		r.Enabled = *u.Enabled
	}
	if u.RiskScore != nil {
		r.RiskScore = *u.RiskScore
	}
	if u.MaxSignals != nil {
		r.MaxSignals = *u.MaxSignals
	}
	if u.Version != nil {
		r.Version = *u.Version
	}
	if u.Meta != nil {
		r.Meta = u.Meta
	}
	if u.FalsePositives != nil {
		r.FalsePositives = u.FalsePositives
	}
	if u.Filters != nil {
		r.Filters = u.Filters
	}
	if u.Index != nil {
		r.Index = u.Index
	}
	if u.Tags != nil {
		r.Tags = u.Tags
	}
	if u.Threats != nil {
		r.Threats = u.Threats
	}
	if u.References != nil {
		r.References = u.References
	}
}
