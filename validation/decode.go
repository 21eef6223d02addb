package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotObject is returned when a payload document is not a single object
var ErrNotObject = errors.New("payload must be a JSON object")

// DecodeJSON reads one JSON object from r. Numbers are kept as json.Number so
// integer checks see the exact literal, and null values stay present.
func DecodeJSON(r io.Reader) (map[string]interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("failed to decode payload: unexpected data after top-level object")
	}

	raw, ok := doc.(map[string]interface{})
	if !ok {
		return nil, ErrNotObject
	}
	return raw, nil
}

// DecodeJSONList reads a JSON array of objects from r, as sent to bulk endpoints
func DecodeJSONList(r io.Reader) ([]map[string]interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var docs []interface{}
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode payload list: %w", err)
	}

	out := make([]map[string]interface{}, 0, len(docs))
	for i, doc := range docs {
		raw, ok := doc.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("item %d: %w", i, ErrNotObject)
		}
		out = append(out, raw)
	}
	return out, nil
}

// DecodeYAML parses a YAML payload document. YAML is a superset of JSON, so
// JSON files decode here as well.
func DecodeYAML(data []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNotObject
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML payload: %w", err)
	}
	doc, err := stringKeys(doc, "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML payload: %w", err)
	}
	raw, ok := doc.(map[string]interface{})
	if !ok {
		return nil, ErrNotObject
	}
	return raw, nil
}

// stringKeys rewrites YAML mappings with non-string keys, such as `1: x` or
// `true: y`, into map[string]interface{} so decoded YAML has the same shape
// as decoded JSON. Null keys are rejected.
func stringKeys(v interface{}, at string) (interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			conv, err := stringKeys(child, at+"."+k)
			if err != nil {
				return nil, err
			}
			t[k] = conv
		}
		return t, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, child := range t {
			if k == nil {
				return nil, fmt.Errorf("null mapping key at %q", pathLabel(at))
			}
			key := fmt.Sprint(k)
			if _, dup := out[key]; dup {
				return nil, fmt.Errorf("duplicate mapping key %q at %q", key, pathLabel(at))
			}
			conv, err := stringKeys(child, at+"."+key)
			if err != nil {
				return nil, err
			}
			out[key] = conv
		}
		return out, nil
	case []interface{}:
		for i, child := range t {
			conv, err := stringKeys(child, fmt.Sprintf("%s[%d]", at, i))
			if err != nil {
				return nil, err
			}
			t[i] = conv
		}
		return t, nil
	default:
		return v, nil
	}
}

func pathLabel(at string) string {
	if at == "" {
		return "."
	}
	return strings.TrimPrefix(at, ".")
}
