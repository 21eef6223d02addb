package validation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"ruleguard/core"
)

type fieldKind int

const (
	stringField fieldKind = iota
	boolField
	numberField
	integerField
	stringListField
	arrayField
	objectField
	threatListField
)

// fieldSpec declares the shape of one payload field
type fieldSpec struct {
	name       string
	kind       fieldKind
	allowEmpty bool
	enum       []string
	// bound returns the failed constraint detail for an out-of-range number
	bound  func(n float64) string
	assign func(u *core.RuleUpdate, v interface{})
}

// ruleFields is the recognized field set in declaration order. Per-field
// checks run in this order, so it decides which error wins when several
// fields are invalid at once.
var ruleFields = []fieldSpec{
	{name: "description", kind: stringField, assign: func(u *core.RuleUpdate, v interface{}) { u.Description = stringPtr(v) }},
	{name: "enabled", kind: boolField, assign: func(u *core.RuleUpdate, v interface{}) { b := v.(bool); u.Enabled = &b }},
	{name: "false_positives", kind: stringListField, assign: func(u *core.RuleUpdate, v interface{}) { u.FalsePositives = stringList(v) }},
	{name: "filters", kind: arrayField, assign: func(u *core.RuleUpdate, v interface{}) { u.Filters = anyList(v) }},
	{name: "from", kind: stringField, assign: func(u *core.RuleUpdate, v interface{}) { u.From = stringPtr(v) }},
	{name: "rule_id", kind: stringField, assign: func(u *core.RuleUpdate, v interface{}) { u.RuleID = stringPtr(v) }},
	{name: "id", kind: stringField, assign: func(u *core.RuleUpdate, v interface{}) { u.ID = stringPtr(v) }},
	{name: "index", kind: stringListField, assign: func(u *core.RuleUpdate, v interface{}) { u.Index = stringList(v) }},
	{name: "interval", kind: stringField, assign: func(u *core.RuleUpdate, v interface{}) { u.Interval = stringPtr(v) }},
	{name: "query", kind: stringField, allowEmpty: true, assign: func(u *core.RuleUpdate, v interface{}) { u.Query = stringPtr(v) }},
	{name: "language", kind: stringField, enum: core.Languages, assign: func(u *core.RuleUpdate, v interface{}) { u.Language = stringPtr(v) }},
	{name: "output_index", kind: stringField, assign: func(u *core.RuleUpdate, v interface{}) { u.OutputIndex = stringPtr(v) }},
	{name: "saved_id", kind: stringField, assign: func(u *core.RuleUpdate, v interface{}) { u.SavedID = stringPtr(v) }},
	{name: "timeline_id", kind: stringField, assign: func(u *core.RuleUpdate, v interface{}) { u.TimelineID = stringPtr(v) }},
	{name: "timeline_title", kind: stringField, assign: func(u *core.RuleUpdate, v interface{}) { u.TimelineTitle = stringPtr(v) }},
	{name: "meta", kind: objectField, assign: func(u *core.RuleUpdate, v interface{}) { u.Meta = v.(map[string]interface{}) }},
	{name: "risk_score", kind: numberField, bound: riskScoreBound, assign: func(u *core.RuleUpdate, v interface{}) { n, _ := toFloat(v); u.RiskScore = &n }},
	{name: "max_signals", kind: integerField, bound: integerRange(greaterThan(0)), assign: func(u *core.RuleUpdate, v interface{}) { n := toInt(v); u.MaxSignals = &n }},
	{name: "name", kind: stringField, assign: func(u *core.RuleUpdate, v interface{}) { u.Name = stringPtr(v) }},
	{name: "severity", kind: stringField, enum: core.Severities, assign: func(u *core.RuleUpdate, v interface{}) { u.Severity = stringPtr(v) }},
	{name: "tags", kind: stringListField, assign: func(u *core.RuleUpdate, v interface{}) { u.Tags = stringList(v) }},
	{name: "to", kind: stringField, assign: func(u *core.RuleUpdate, v interface{}) { u.To = stringPtr(v) }},
	{name: "type", kind: stringField, enum: core.RuleTypes, assign: func(u *core.RuleUpdate, v interface{}) { u.Type = stringPtr(v) }},
	{name: "threats", kind: threatListField, assign: func(u *core.RuleUpdate, v interface{}) { u.Threats = threatList(v) }},
	{name: "references", kind: stringListField, assign: func(u *core.RuleUpdate, v interface{}) { u.References = stringList(v) }},
	{name: "version", kind: integerField, bound: integerRange(atLeast(1)), assign: func(u *core.RuleUpdate, v interface{}) { n := toInt(v); u.Version = &n }},
}

var knownFields = func() map[string]bool {
	m := make(map[string]bool, len(ruleFields))
	for _, f := range ruleFields {
		m[f.name] = true
	}
	return m
}()

// FieldNames returns the recognized payload field names in declaration order
func FieldNames() []string {
	names := make([]string, len(ruleFields))
	for i, f := range ruleFields {
		names[i] = f.name
	}
	return names
}

func greaterThan(limit float64) func(float64) string {
	return func(n float64) string {
		if n > limit {
			return ""
		}
		return "must be greater than " + formatNumber(limit)
	}
}

func atLeast(limit float64) func(float64) string {
	return func(n float64) string {
		if n >= limit {
			return ""
		}
		return "must be larger than or equal to " + formatNumber(limit)
	}
}

// maxInteger caps integer fields so the normalized value fits an int on every
// platform and survives the float64 round trip exactly.
const maxInteger = math.MaxInt32

func atMost(limit float64) func(float64) string {
	return func(n float64) string {
		if n <= limit {
			return ""
		}
		return "must be less than or equal to " + formatNumber(limit)
	}
}

// integerRange checks lower first, then the maxInteger ceiling
func integerRange(lower func(float64) string) func(float64) string {
	upper := atMost(maxInteger)
	return func(n float64) string {
		if detail := lower(n); detail != "" {
			return detail
		}
		return upper(n)
	}
}

func riskScoreBound(n float64) string {
	if detail := greaterThan(-1)(n); detail != "" {
		return detail
	}
	if n < 101 {
		return ""
	}
	return "must be less than 101"
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func enumDetail(values []string) string {
	return "must be one of [" + strings.Join(values, ", ") + "]"
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// typeDetail is the failure detail for a value that is not of the wanted kind
func typeDetail(kind fieldKind) string {
	switch kind {
	case boolField:
		return "must be a boolean"
	case numberField, integerField:
		return "must be a number"
	case stringListField, arrayField, threatListField:
		return "must be an array"
	case objectField:
		return "must be an object"
	default:
		return "must be a string"
	}
}

// toFloat reports the numeric value of v. Decoded JSON yields json.Number,
// decoded YAML and Go callers yield native numeric types.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func isInteger(n float64) bool {
	return !math.IsInf(n, 0) && n == math.Trunc(n)
}

func toInt(v interface{}) int {
	n, _ := toFloat(v)
	return int(n)
}

func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []map[string]interface{}:
		out := make([]interface{}, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok && m != nil
}

func stringPtr(v interface{}) *string {
	s := v.(string)
	return &s
}

func stringList(v interface{}) []string {
	items, _ := asList(v)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.(string))
	}
	return out
}

func anyList(v interface{}) []interface{} {
	items, _ := asList(v)
	out := make([]interface{}, len(items))
	copy(out, items)
	return out
}

func threatList(v interface{}) []core.Threat {
	items, _ := asList(v)
	out := make([]core.Threat, 0, len(items))
	for _, item := range items {
		entry, _ := asObject(item)
		tactic, _ := asObject(entry["tactic"])
		techniques, _ := asList(entry["techniques"])
		threat := core.Threat{
			Framework: entry["framework"].(string),
			Tactic: core.ThreatTactic{
				ID:        tactic["id"].(string),
				Name:      tactic["name"].(string),
				Reference: tactic["reference"].(string),
			},
			Techniques: make([]core.ThreatTechnique, 0, len(techniques)),
		}
		for _, t := range techniques {
			technique, _ := asObject(t)
			threat.Techniques = append(threat.Techniques, core.ThreatTechnique{
				ID:        technique["id"].(string),
				Name:      technique["name"].(string),
				Reference: technique["reference"].(string),
			})
		}
		out = append(out, threat)
	}
	return out
}
