package validation

import "sort"

// referenceKeys are the members of a tactic or technique object
var referenceKeys = []string{"id", "name", "reference"}

var threatKeys = []string{"framework", "tactic", "techniques"}

// checkThreats validates every threat entry in order. An entry is checked
// member by member (framework, tactic, techniques) before its unknown keys,
// and the first failure anywhere in the list is reported.
func checkThreats(raw map[string]interface{}) *ValidationError {
	v, ok := raw["threats"]
	if !ok {
		return nil
	}
	path := Path{Key("threats")}
	entries, _ := asList(v)
	for i, entry := range entries {
		if err := checkThreatEntry(path.Append(Position(i)), entry); err != nil {
			return err
		}
	}
	return nil
}

func checkThreatEntry(path Path, v interface{}) *ValidationError {
	entry, ok := asObject(v)
	if !ok {
		return newError(path, KindTypeMismatch, "must be an object")
	}

	framework, ok := entry["framework"]
	if !ok {
		return newError(path.Append(Key("framework")), KindRequired, "is required")
	}
	if err := checkNonEmptyString(path.Append(Key("framework")), framework); err != nil {
		return err
	}

	tactic, ok := entry["tactic"]
	if !ok {
		return newError(path.Append(Key("tactic")), KindRequired, "is required")
	}
	if err := checkReference(path.Append(Key("tactic")), tactic); err != nil {
		return err
	}

	techniques, ok := entry["techniques"]
	if !ok {
		return newError(path.Append(Key("techniques")), KindRequired, "is required")
	}
	if err := checkTechniques(path.Append(Key("techniques")), techniques); err != nil {
		return err
	}

	return checkUnknownKeys(path, entry, threatKeys)
}

func checkTechniques(path Path, v interface{}) *ValidationError {
	items, ok := asList(v)
	if !ok {
		return newError(path, KindTypeMismatch, "must be an array")
	}
	if len(items) == 0 {
		return newError(path, KindRangeViolation, "must contain at least 1 items")
	}
	for i, item := range items {
		if err := checkReference(path.Append(Position(i)), item); err != nil {
			return err
		}
	}
	return nil
}

// checkReference validates a {id, name, reference} object
func checkReference(path Path, v interface{}) *ValidationError {
	obj, ok := asObject(v)
	if !ok {
		return newError(path, KindTypeMismatch, "must be an object")
	}
	for _, key := range referenceKeys {
		member, ok := obj[key]
		if !ok {
			return newError(path.Append(Key(key)), KindRequired, "is required")
		}
		if err := checkNonEmptyString(path.Append(Key(key)), member); err != nil {
			return err
		}
	}
	return checkUnknownKeys(path, obj, referenceKeys)
}

func checkNonEmptyString(path Path, v interface{}) *ValidationError {
	s, ok := v.(string)
	if !ok {
		return newError(path, KindTypeMismatch, "must be a string")
	}
	if s == "" {
		return newError(path, KindEmptyNotAllowed, "is not allowed to be empty")
	}
	return nil
}

func checkUnknownKeys(path Path, obj map[string]interface{}, allowed []string) *ValidationError {
	var unknown []string
	for k := range obj {
		if !contains(allowed, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return newError(path.Append(Key(unknown[0])), KindNotAllowedField, "is not allowed")
}
