package validation

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed update_rules_schema.json
var updateRulesSchema []byte

var (
	compiledSchema     *gojsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

// SchemaDocument returns the JSON Schema describing the update payload shape.
// It mirrors the checks of ValidateRuleUpdate for tooling that cannot call Go
// code; the Go validator remains authoritative and is the only source of
// field-path error messages.
func SchemaDocument() []byte {
	out := make([]byte, len(updateRulesSchema))
	copy(out, updateRulesSchema)
	return out
}

// SchemaViolations checks a JSON document against the schema document and
// returns the schema library's descriptions of every violation. An empty
// result means the document conforms.
func SchemaViolations(doc []byte) ([]string, error) {
	compiledSchemaOnce.Do(func() {
		compiledSchema, compiledSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(updateRulesSchema))
	})
	if compiledSchemaErr != nil {
		return nil, fmt.Errorf("failed to compile update schema: %w", compiledSchemaErr)
	}

	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to validate against update schema: %w", err)
	}

	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}
