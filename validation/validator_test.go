package validation

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"ruleguard/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queryPayload returns a well-formed update payload identified by id
func queryPayload() map[string]interface{} {
	return map[string]interface{}{
		"id":          "rule-1",
		"description": "some description",
		"from":        "now-5m",
		"to":          "now",
		"index":       []interface{}{"index-1"},
		"name":        "some-name",
		"severity":    "low",
		"interval":    "5m",
		"type":        "query",
		"query":       "some query",
		"language":    "kuery",
	}
}

func savedQueryPayload() map[string]interface{} {
	return map[string]interface{}{
		"id":          "rule-1",
		"description": "some description",
		"from":        "now-5m",
		"to":          "now",
		"index":       []interface{}{"index-1"},
		"name":        "some-name",
		"severity":    "low",
		"interval":    "5m",
		"type":        "saved_query",
		"saved_id":    "some id",
	}
}

func threatEntry() map[string]interface{} {
	return map[string]interface{}{
		"framework": "fake",
		"tactic": map[string]interface{}{
			"id":        "fakeId",
			"name":      "fakeName",
			"reference": "fakeRef",
		},
		"techniques": []interface{}{
			map[string]interface{}{
				"id":        "techniqueId",
				"name":      "techniqueName",
				"reference": "techniqueRef",
			},
		},
	}
}

func with(base map[string]interface{}, kv ...interface{}) map[string]interface{} {
	for i := 0; i+1 < len(kv); i += 2 {
		base[kv[i].(string)] = kv[i+1]
	}
	return base
}

func without(base map[string]interface{}, keys ...string) map[string]interface{} {
	for _, k := range keys {
		delete(base, k)
	}
	return base
}

func requireValidationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %T", err)
	return verr
}

func TestValidateRuleUpdate_Identity(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		wantErr string
	}{
		{
			name:    "empty object requires id or rule_id",
			payload: map[string]interface{}{},
			wantErr: `"value" must contain at least one of [id, rule_id]`,
		},
		{
			name:    "made up values do not validate",
			payload: map[string]interface{}{"madeUp": "hi"},
			wantErr: `child "madeUp" fails because ["madeUp" is not allowed]`,
		},
		{
			name:    "id and rule_id together do not validate",
			payload: map[string]interface{}{"id": "id-1", "rule_id": "rule-1"},
			wantErr: `"value" contains a conflict between exclusive peers [id, rule_id]`,
		},
		{
			name:    "id alone validates",
			payload: map[string]interface{}{"id": "rule-1"},
		},
		{
			name:    "rule_id alone validates",
			payload: map[string]interface{}{"rule_id": "rule-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateRuleUpdate(tt.payload)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestValidateRuleUpdate_IncrementalFields(t *testing.T) {
	order := []struct {
		key   string
		value interface{}
	}{
		{"description", "some description"},
		{"from", "now-5m"},
		{"to", "now"},
		{"name", "some-name"},
		{"severity", "low"},
		{"type", "query"},
		{"interval", "5m"},
		{"index", []interface{}{"index-1"}},
		{"query", "some query"},
		{"language", "kuery"},
	}

	for _, idField := range []string{"id", "rule_id"} {
		payload := map[string]interface{}{idField: "rule-1"}
		for _, field := range order {
			payload[field.key] = field.value
			names := make([]string, 0, len(payload))
			for k := range payload {
				names = append(names, k)
			}
			t.Run(idField+"+"+field.key, func(t *testing.T) {
				_, err := ValidateRuleUpdate(payload)
				assert.NoError(t, err, "fields %v", names)
			})
		}
	}

	t.Run("id with risk_score", func(t *testing.T) {
		_, err := ValidateRuleUpdate(map[string]interface{}{"id": "rule-1", "risk_score": 50})
		assert.NoError(t, err)
	})
}

func TestValidateRuleUpdate_NoDefaulting(t *testing.T) {
	t.Run("references are not defaulted", func(t *testing.T) {
		upd, err := ValidateRuleUpdate(queryPayload())
		require.NoError(t, err)
		assert.Nil(t, upd.References)
	})

	t.Run("interval is not defaulted", func(t *testing.T) {
		upd, err := ValidateRuleUpdate(without(queryPayload(), "interval"))
		require.NoError(t, err)
		assert.Nil(t, upd.Interval)
	})

	t.Run("max_signals is not defaulted", func(t *testing.T) {
		upd, err := ValidateRuleUpdate(queryPayload())
		require.NoError(t, err)
		assert.Nil(t, upd.MaxSignals)
	})

	t.Run("threats are not defaulted", func(t *testing.T) {
		upd, err := ValidateRuleUpdate(with(queryPayload(), "references", []interface{}{"index-1"}, "max_signals", 1))
		require.NoError(t, err)
		assert.Nil(t, upd.Threats)
	})

	t.Run("empty threats stay present and empty", func(t *testing.T) {
		upd, err := ValidateRuleUpdate(with(queryPayload(), "threats", []interface{}{}))
		require.NoError(t, err)
		require.NotNil(t, upd.Threats)
		assert.Empty(t, upd.Threats)
	})

	t.Run("absent fields are absent from the normalized output", func(t *testing.T) {
		upd, err := ValidateRuleUpdate(map[string]interface{}{"rule_id": "rule-1", "name": "n"})
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "rule_id"}, upd.Fields())
	})
}

func TestValidateRuleUpdate_References(t *testing.T) {
	upd, err := ValidateRuleUpdate(with(queryPayload(), "references", []interface{}{"index-1"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"index-1"}, upd.References)

	_, err = ValidateRuleUpdate(with(queryPayload(), "references", []interface{}{5}))
	verr := requireValidationError(t, err)
	assert.Equal(t, `child "references" fails because ["references" at position 0 fails because ["0" must be a string]]`, err.Error())
	assert.Equal(t, KindTypeMismatch, verr.Kind)
	assert.Equal(t, Path{Key("references"), Position(0)}, verr.Path)
}

func TestValidateRuleUpdate_IndexElements(t *testing.T) {
	_, err := ValidateRuleUpdate(with(queryPayload(), "index", []interface{}{5}))
	require.Error(t, err)
	assert.Equal(t, `child "index" fails because ["index" at position 0 fails because ["0" must be a string]]`, err.Error())

	_, err = ValidateRuleUpdate(with(queryPayload(), "index", []interface{}{"a", "b", true}))
	verr := requireValidationError(t, err)
	assert.Equal(t, Path{Key("index"), Position(2)}, verr.Path)
	assert.Equal(t, "index[2]", verr.Path.String())
}

func TestValidateRuleUpdate_SavedQuery(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"saved_id is not required for saved_query", without(savedQueryPayload(), "saved_id")},
		{"saved_id validates with saved_query", savedQueryPayload()},
		{"saved_query can have filters", with(savedQueryPayload(), "filters", []interface{}{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateRuleUpdate(tt.payload)
			assert.NoError(t, err)
		})
	}
}

func TestValidateRuleUpdate_Language(t *testing.T) {
	for _, lang := range []string{"kuery", "lucene"} {
		_, err := ValidateRuleUpdate(with(queryPayload(), "language", lang))
		assert.NoError(t, err, lang)
	}

	_, err := ValidateRuleUpdate(with(queryPayload(), "language", "something-made-up"))
	verr := requireValidationError(t, err)
	assert.Equal(t, `child "language" fails because ["language" must be one of [kuery, lucene]]`, err.Error())
	assert.Equal(t, KindEnumMismatch, verr.Kind)
}

func TestValidateRuleUpdate_Severity(t *testing.T) {
	payload := map[string]interface{}{
		"id":          "rule-1",
		"risk_score":  50,
		"description": "some description",
		"name":        "some-name",
		"severity":    "junk",
		"type":        "query",
		"references":  []interface{}{"index-1"},
		"query":       "some query",
		"language":    "kuery",
		"max_signals": 1,
		"version":     1,
	}
	_, err := ValidateRuleUpdate(payload)
	verr := requireValidationError(t, err)
	assert.Equal(t, `child "severity" fails because ["severity" must be one of [low, medium, high, critical]]`, err.Error())
	assert.Equal(t, `"severity" must be one of [low, medium, high, critical]`, verr.Message)
	assert.Equal(t, "severity", verr.Field())

	for _, sev := range core.Severities {
		payload["severity"] = sev
		_, err := ValidateRuleUpdate(payload)
		assert.NoError(t, err, sev)
	}
}

func TestValidateRuleUpdate_MaxSignals(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		wantErr string
	}{
		{"negative", -1, `child "max_signals" fails because ["max_signals" must be greater than 0]`},
		{"zero", 0, `child "max_signals" fails because ["max_signals" must be greater than 0]`},
		{"one", 1, ""},
		{"large", 10000, ""},
		{"fraction", 1.5, `child "max_signals" fails because ["max_signals" must be an integer]`},
		{"string", "5", `child "max_signals" fails because ["max_signals" must be a number]`},
		{"largest int32", math.MaxInt32, ""},
		{"past int32", int64(math.MaxInt32) + 1, `child "max_signals" fails because ["max_signals" must be less than or equal to 2147483647]`},
		{"exponent literal", json.Number("1e20"), `child "max_signals" fails because ["max_signals" must be less than or equal to 2147483647]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateRuleUpdate(with(queryPayload(), "max_signals", tt.value))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}

	upd, err := ValidateRuleUpdate(with(queryPayload(), "max_signals", 1))
	require.NoError(t, err)
	require.NotNil(t, upd.MaxSignals)
	assert.Equal(t, 1, *upd.MaxSignals)

	upd, err = ValidateRuleUpdate(with(queryPayload(), "max_signals", json.Number("2147483647")))
	require.NoError(t, err)
	require.NotNil(t, upd.MaxSignals)
	assert.Equal(t, math.MaxInt32, *upd.MaxSignals)
}

func TestValidateRuleUpdate_IntegerCeiling(t *testing.T) {
	raw, err := DecodeJSON(strings.NewReader(`{"id":"rule-1","max_signals":1e20,"version":1}`))
	require.NoError(t, err)
	_, err = ValidateRuleUpdate(raw)
	verr := requireValidationError(t, err)
	assert.Equal(t, KindRangeViolation, verr.Kind)
	assert.Equal(t, "max_signals", verr.Field())

	raw, err = DecodeJSON(strings.NewReader(`{"id":"rule-1","version":1e30}`))
	require.NoError(t, err)
	_, err = ValidateRuleUpdate(raw)
	verr = requireValidationError(t, err)
	assert.Equal(t, KindRangeViolation, verr.Kind)
	assert.Equal(t, `child "version" fails because ["version" must be less than or equal to 2147483647]`, err.Error())
}

func TestValidateRuleUpdate_MaxSignalsRangeKind(t *testing.T) {
	for _, n := range []int{0, -1, -100} {
		_, err := ValidateRuleUpdate(map[string]interface{}{"id": "rule-1", "max_signals": n})
		verr := requireValidationError(t, err)
		assert.Equal(t, KindRangeViolation, verr.Kind)
		assert.Equal(t, `"max_signals" must be greater than 0`, verr.Message)
	}
}

func TestValidateRuleUpdate_MetaAndFilters(t *testing.T) {
	_, err := ValidateRuleUpdate(map[string]interface{}{
		"id":   "rule-1",
		"meta": map[string]interface{}{"whateverYouWant": "anything_at_all"},
	})
	assert.NoError(t, err)

	_, err = ValidateRuleUpdate(map[string]interface{}{"id": "rule-1", "meta": "should not work"})
	require.Error(t, err)
	assert.Equal(t, `child "meta" fails because ["meta" must be an object]`, err.Error())

	_, err = ValidateRuleUpdate(map[string]interface{}{"rule_id": "rule-1", "type": "query", "filters": "some string"})
	require.Error(t, err)
	assert.Equal(t, `child "filters" fails because ["filters" must be an array]`, err.Error())
}

func TestValidateRuleUpdate_Threats(t *testing.T) {
	base := func() map[string]interface{} {
		return with(queryPayload(), "references", []interface{}{"index-1"}, "max_signals", 1)
	}

	t.Run("valid with all sub-objects", func(t *testing.T) {
		upd, err := ValidateRuleUpdate(with(base(), "threats", []interface{}{threatEntry()}))
		require.NoError(t, err)
		assert.Equal(t, []core.Threat{{
			Framework: "fake",
			Tactic:    core.ThreatTactic{ID: "fakeId", Name: "fakeName", Reference: "fakeRef"},
			Techniques: []core.ThreatTechnique{
				{ID: "techniqueId", Name: "techniqueName", Reference: "techniqueRef"},
			},
		}}, upd.Threats)
	})

	tests := []struct {
		name    string
		mutate  func(entry map[string]interface{})
		wantErr string
		kind    Kind
	}{
		{
			name:    "missing framework",
			mutate:  func(e map[string]interface{}) { delete(e, "framework") },
			wantErr: `child "threats" fails because ["threats" at position 0 fails because [child "framework" fails because ["framework" is required]]]`,
			kind:    KindRequired,
		},
		{
			name:    "missing tactic",
			mutate:  func(e map[string]interface{}) { delete(e, "tactic") },
			wantErr: `child "threats" fails because ["threats" at position 0 fails because [child "tactic" fails because ["tactic" is required]]]`,
			kind:    KindRequired,
		},
		{
			name:    "missing techniques",
			mutate:  func(e map[string]interface{}) { delete(e, "techniques") },
			wantErr: `child "threats" fails because ["threats" at position 0 fails because [child "techniques" fails because ["techniques" is required]]]`,
			kind:    KindRequired,
		},
		{
			name:    "empty techniques",
			mutate:  func(e map[string]interface{}) { e["techniques"] = []interface{}{} },
			wantErr: `child "threats" fails because ["threats" at position 0 fails because [child "techniques" fails because ["techniques" must contain at least 1 items]]]`,
			kind:    KindRangeViolation,
		},
		{
			name: "tactic missing reference",
			mutate: func(e map[string]interface{}) {
				delete(e["tactic"].(map[string]interface{}), "reference")
			},
			wantErr: `child "threats" fails because ["threats" at position 0 fails because [child "tactic" fails because [child "reference" fails because ["reference" is required]]]]`,
			kind:    KindRequired,
		},
		{
			name: "technique name not a string",
			mutate: func(e map[string]interface{}) {
				e["techniques"].([]interface{})[0].(map[string]interface{})["name"] = 7
			},
			wantErr: `child "threats" fails because ["threats" at position 0 fails because [child "techniques" fails because ["techniques" at position 0 fails because [child "name" fails because ["name" must be a string]]]]]`,
			kind:    KindTypeMismatch,
		},
		{
			name:    "unknown key in entry",
			mutate:  func(e map[string]interface{}) { e["extra"] = true },
			wantErr: `child "threats" fails because ["threats" at position 0 fails because [child "extra" fails because ["extra" is not allowed]]]`,
			kind:    KindNotAllowedField,
		},
		{
			name:    "tactic is a string",
			mutate:  func(e map[string]interface{}) { e["tactic"] = "TA0001" },
			wantErr: `child "threats" fails because ["threats" at position 0 fails because [child "tactic" fails because ["tactic" must be an object]]]`,
			kind:    KindTypeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := threatEntry()
			tt.mutate(entry)
			_, err := ValidateRuleUpdate(with(base(), "threats", []interface{}{entry}))
			verr := requireValidationError(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
			assert.Equal(t, tt.kind, verr.Kind)
		})
	}

	t.Run("reports the position of the first bad entry", func(t *testing.T) {
		bad := threatEntry()
		delete(bad, "framework")
		_, err := ValidateRuleUpdate(with(base(), "threats", []interface{}{threatEntry(), threatEntry(), bad}))
		verr := requireValidationError(t, err)
		assert.Equal(t, "threats[2].framework", verr.Path.String())
		assert.True(t, strings.Contains(err.Error(), `"threats" at position 2`))
	})
}

func TestValidateRuleUpdate_TimelinePairing(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		wantErr string
		kind    Kind
	}{
		{
			name:    "timeline_id and timeline_title validate",
			payload: with(savedQueryPayload(), "timeline_id", "some-id", "timeline_title", "some-title"),
		},
		{
			name:    "timeline_title cannot be omitted when timeline_id is present",
			payload: with(savedQueryPayload(), "timeline_id", "some-id"),
			wantErr: `child "timeline_title" fails because ["timeline_title" is required]`,
			kind:    KindRequired,
		},
		{
			name:    "timeline_title cannot be null when timeline_id is present",
			payload: with(savedQueryPayload(), "timeline_id", "timeline-id", "timeline_title", nil),
			wantErr: `child "timeline_title" fails because ["timeline_title" must be a string]`,
			kind:    KindTypeMismatch,
		},
		{
			name:    "timeline_title cannot be empty when timeline_id is present",
			payload: with(savedQueryPayload(), "timeline_id", "some-id", "timeline_title", ""),
			wantErr: `child "timeline_title" fails because ["timeline_title" is not allowed to be empty]`,
			kind:    KindEmptyNotAllowed,
		},
		{
			name:    "timeline_id cannot be empty when timeline_title is present",
			payload: with(savedQueryPayload(), "timeline_id", "", "timeline_title", "some-title"),
			wantErr: `child "timeline_id" fails because ["timeline_id" is not allowed to be empty]`,
			kind:    KindEmptyNotAllowed,
		},
		{
			name:    "timeline_title is not allowed without timeline_id",
			payload: with(savedQueryPayload(), "timeline_title", "some-title"),
			wantErr: `child "timeline_title" fails because ["timeline_title" is not allowed]`,
			kind:    KindNotAllowedField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateRuleUpdate(tt.payload)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			verr := requireValidationError(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
			assert.Equal(t, tt.kind, verr.Kind)
		})
	}
}

func TestValidateRuleUpdate_SupplementedFields(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   interface{}
		wantErr string
	}{
		{"enabled bool", "enabled", false, ""},
		{"enabled string", "enabled", "yes", `child "enabled" fails because ["enabled" must be a boolean]`},
		{"tags", "tags", []interface{}{"a", "b"}, ""},
		{"tags with empty string", "tags", []interface{}{"a", ""}, `child "tags" fails because ["tags" at position 1 fails because ["1" is not allowed to be empty]]`},
		{"false_positives number", "false_positives", []interface{}{1}, `child "false_positives" fails because ["false_positives" at position 0 fails because ["0" must be a string]]`},
		{"risk_score too high", "risk_score", 101, `child "risk_score" fails because ["risk_score" must be less than 101]`},
		{"risk_score too low", "risk_score", -1, `child "risk_score" fails because ["risk_score" must be greater than -1]`},
		{"risk_score bounds", "risk_score", 100, ""},
		{"version zero", "version", 0, `child "version" fails because ["version" must be larger than or equal to 1]`},
		{"version past int32", "version", json.Number("3000000000"), `child "version" fails because ["version" must be less than or equal to 2147483647]`},
		{"type unknown", "type", "machine_learning", `child "type" fails because ["type" must be one of [query, saved_query]]`},
		{"empty query allowed", "query", "", ""},
		{"empty name rejected", "name", "", `child "name" fails because ["name" is not allowed to be empty]`},
		{"null description rejected", "description", nil, `child "description" fails because ["description" must be a string]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateRuleUpdate(with(queryPayload(), tt.key, tt.value))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestValidateRuleUpdate_CheckOrder(t *testing.T) {
	t.Run("unknown keys win over identity", func(t *testing.T) {
		_, err := ValidateRuleUpdate(map[string]interface{}{"zzz": 1, "aaa": 2})
		verr := requireValidationError(t, err)
		assert.Equal(t, "aaa", verr.Field())
		assert.Equal(t, KindNotAllowedField, verr.Kind)
	})

	t.Run("identity wins over types", func(t *testing.T) {
		_, err := ValidateRuleUpdate(map[string]interface{}{"severity": 5})
		verr := requireValidationError(t, err)
		assert.Empty(t, verr.Path)
		assert.Equal(t, KindRequired, verr.Kind)
	})

	t.Run("types win over enums", func(t *testing.T) {
		_, err := ValidateRuleUpdate(map[string]interface{}{"id": "x", "language": "junk", "to": 5})
		verr := requireValidationError(t, err)
		assert.Equal(t, "to", verr.Field())
	})

	t.Run("declaration order decides between fields", func(t *testing.T) {
		_, err := ValidateRuleUpdate(map[string]interface{}{"id": "x", "severity": "junk", "language": "junk"})
		verr := requireValidationError(t, err)
		assert.Equal(t, "language", verr.Field())
	})
}

func TestValidateRuleUpdate_NilPayload(t *testing.T) {
	_, err := ValidateRuleUpdate(nil)
	verr := requireValidationError(t, err)
	assert.Equal(t, KindRequired, verr.Kind)
}

func TestValidateRuleCreate(t *testing.T) {
	create := func() map[string]interface{} {
		return map[string]interface{}{
			"rule_id":     "rule-1",
			"description": "some description",
			"name":        "some-name",
			"severity":    "high",
			"type":        "query",
			"risk_score":  50,
		}
	}

	upd, err := ValidateRuleCreate(create())
	require.NoError(t, err)
	assert.Nil(t, upd.References)

	_, err = ValidateRuleCreate(without(create(), "rule_id"))
	assert.NoError(t, err)

	_, err = ValidateRuleCreate(with(create(), "id", "abc"))
	require.Error(t, err)
	assert.Equal(t, `child "id" fails because ["id" is not allowed]`, err.Error())

	_, err = ValidateRuleCreate(without(create(), "severity"))
	require.Error(t, err)
	assert.Equal(t, `child "severity" fails because ["severity" is required]`, err.Error())
}
