// Package validation checks untyped detection rule payloads and normalizes
// them into core.RuleUpdate values.
//
// Validation is an ordered pipeline of checks. Each check either passes or
// returns a *ValidationError, and the first error ends the run. Per-field
// shape checks come first; cross-field rules (id XOR rule_id, timeline
// pairing) and nested threat entries are checked afterwards against a
// payload whose top-level shape is already known to be sound.
package validation

import (
	"sort"

	"ruleguard/core"
)

// Mode selects update or create semantics
type Mode int

const (
	// ModeUpdate identifies the rule by exactly one of id and rule_id and
	// requires nothing else.
	ModeUpdate Mode = iota
	// ModeCreate forbids id and requires the fields a new rule cannot do without.
	ModeCreate
)

// createRequired are the fields a create payload must carry
var createRequired = []string{"description", "risk_score", "name", "severity", "type"}

// check is one step of the pipeline
type check func(raw map[string]interface{}) *ValidationError

// Validator validates rule payloads. The zero value is not usable; build one
// with NewValidator. A Validator holds no mutable state and is safe for
// concurrent use.
type Validator struct {
	mode  Mode
	steps []check
}

// NewValidator builds a validator for the given mode
func NewValidator(mode Mode) *Validator {
	v := &Validator{mode: mode}
	v.steps = []check{checkKnownFields}
	if mode == ModeCreate {
		v.steps = append(v.steps, checkCreateIdentity, checkCreateRequired)
	} else {
		v.steps = append(v.steps, checkIdentity)
	}
	v.steps = append(v.steps,
		checkTypes,
		checkEnums,
		checkRanges,
		checkListElements,
		checkTimelinePairing,
		checkThreats,
	)
	return v
}

var (
	updateValidator = NewValidator(ModeUpdate)
	createValidator = NewValidator(ModeCreate)
)

// ValidateRuleUpdate validates an update payload. On failure the error is a
// *ValidationError describing the first violated constraint.
func ValidateRuleUpdate(raw map[string]interface{}) (*core.RuleUpdate, error) {
	return updateValidator.Validate(raw)
}

// ValidateRuleCreate validates a create payload. No defaults are applied; see
// core.NewRule.
func ValidateRuleCreate(raw map[string]interface{}) (*core.RuleUpdate, error) {
	return createValidator.Validate(raw)
}

// Validate runs the pipeline and returns the normalized payload
func (v *Validator) Validate(raw map[string]interface{}) (*core.RuleUpdate, error) {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	for _, step := range v.steps {
		if err := step(raw); err != nil {
			return nil, err
		}
	}
	return normalize(raw), nil
}

// normalize copies the present fields into a RuleUpdate. It runs only on a
// payload that passed every check, so the type assertions cannot fail.
func normalize(raw map[string]interface{}) *core.RuleUpdate {
	u := &core.RuleUpdate{}
	for _, f := range ruleFields {
		if v, ok := raw[f.name]; ok {
			f.assign(u, v)
		}
	}
	return u
}

func checkKnownFields(raw map[string]interface{}) *ValidationError {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		if !knownFields[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return newError(Path{Key(keys[0])}, KindNotAllowedField, "is not allowed")
}

func checkIdentity(raw map[string]interface{}) *ValidationError {
	_, hasID := raw["id"]
	_, hasRuleID := raw["rule_id"]
	switch {
	case !hasID && !hasRuleID:
		return newError(nil, KindRequired, "must contain at least one of [id, rule_id]")
	case hasID && hasRuleID:
		return newError(nil, KindNotAllowedField, "contains a conflict between exclusive peers [id, rule_id]")
	}
	return nil
}

func checkCreateIdentity(raw map[string]interface{}) *ValidationError {
	if _, ok := raw["id"]; ok {
		return newError(Path{Key("id")}, KindNotAllowedField, "is not allowed")
	}
	return nil
}

func checkCreateRequired(raw map[string]interface{}) *ValidationError {
	for _, f := range ruleFields {
		if !contains(createRequired, f.name) {
			continue
		}
		if _, ok := raw[f.name]; !ok {
			return newError(Path{Key(f.name)}, KindRequired, "is required")
		}
	}
	return nil
}

func checkTypes(raw map[string]interface{}) *ValidationError {
	for _, f := range ruleFields {
		v, ok := raw[f.name]
		if !ok {
			continue
		}
		if err := checkType(Path{Key(f.name)}, f, v); err != nil {
			return err
		}
	}
	return nil
}

func checkType(path Path, f fieldSpec, v interface{}) *ValidationError {
	switch f.kind {
	case stringField:
		s, ok := v.(string)
		if !ok {
			return newError(path, KindTypeMismatch, typeDetail(f.kind))
		}
		if s == "" && !f.allowEmpty {
			return newError(path, KindEmptyNotAllowed, "is not allowed to be empty")
		}
	case boolField:
		if _, ok := v.(bool); !ok {
			return newError(path, KindTypeMismatch, typeDetail(f.kind))
		}
	case numberField, integerField:
		n, ok := toFloat(v)
		if !ok {
			return newError(path, KindTypeMismatch, typeDetail(f.kind))
		}
		if f.kind == integerField && !isInteger(n) {
			return newError(path, KindTypeMismatch, "must be an integer")
		}
	case stringListField, arrayField, threatListField:
		if _, ok := asList(v); !ok {
			return newError(path, KindTypeMismatch, typeDetail(f.kind))
		}
	case objectField:
		if _, ok := asObject(v); !ok {
			return newError(path, KindTypeMismatch, typeDetail(f.kind))
		}
	}
	return nil
}

func checkEnums(raw map[string]interface{}) *ValidationError {
	for _, f := range ruleFields {
		if len(f.enum) == 0 {
			continue
		}
		v, ok := raw[f.name]
		if !ok {
			continue
		}
		if !contains(f.enum, v.(string)) {
			return newError(Path{Key(f.name)}, KindEnumMismatch, enumDetail(f.enum))
		}
	}
	return nil
}

func checkRanges(raw map[string]interface{}) *ValidationError {
	for _, f := range ruleFields {
		if f.bound == nil {
			continue
		}
		v, ok := raw[f.name]
		if !ok {
			continue
		}
		n, _ := toFloat(v)
		if detail := f.bound(n); detail != "" {
			return newError(Path{Key(f.name)}, KindRangeViolation, detail)
		}
	}
	return nil
}

func checkListElements(raw map[string]interface{}) *ValidationError {
	for _, f := range ruleFields {
		if f.kind != stringListField {
			continue
		}
		v, ok := raw[f.name]
		if !ok {
			continue
		}
		items, _ := asList(v)
		if err := checkStrings(Path{Key(f.name)}, items); err != nil {
			return err
		}
	}
	return nil
}

func checkStrings(path Path, items []interface{}) *ValidationError {
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return newError(path.Append(Position(i)), KindTypeMismatch, "must be a string")
		}
		if s == "" {
			return newError(path.Append(Position(i)), KindEmptyNotAllowed, "is not allowed to be empty")
		}
	}
	return nil
}

// checkTimelinePairing requires timeline_title whenever timeline_id is set and
// forbids it otherwise. Null and empty values never reach this check: the
// type pass already rejected them.
func checkTimelinePairing(raw map[string]interface{}) *ValidationError {
	_, hasID := raw["timeline_id"]
	_, hasTitle := raw["timeline_title"]
	switch {
	case hasID && !hasTitle:
		return newError(Path{Key("timeline_title")}, KindRequired, "is required")
	case hasTitle && !hasID:
		return newError(Path{Key("timeline_title")}, KindNotAllowedField, "is not allowed")
	}
	return nil
}
