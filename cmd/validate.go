package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ruleguard/core"
	"ruleguard/validation"

	"github.com/spf13/cobra"
)

// maxPayloadFileSize bounds how much of a payload file is read
const maxPayloadFileSize = 10 * 1024 * 1024

// ErrValidationFailed is returned when at least one payload file is invalid
var ErrValidationFailed = errors.New("one or more payloads failed validation")

// fileResult is the outcome of validating one payload file
type fileResult struct {
	File             string           `json:"file"`
	Valid            bool             `json:"valid"`
	Error            string           `json:"error,omitempty"`
	Path             validation.Path  `json:"path,omitempty"`
	Kind             validation.Kind  `json:"kind,omitempty"`
	SchemaViolations []string         `json:"schema_violations,omitempty"`
	Normalized       *core.RuleUpdate `json:"normalized,omitempty"`
}

func newValidateCmd() *cobra.Command {
	var (
		create     bool
		jsonSchema bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate detection rule payload files",
		Long: `Validate JSON or YAML detection rule payload files.

Payloads are checked with update semantics unless --create is given. Files
ending in .yaml or .yml are parsed as YAML, everything else as JSON. The
command exits non-zero when any file fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if create && jsonSchema {
				return fmt.Errorf("--json-schema describes update payloads and cannot be combined with --create")
			}

			mode := validation.ModeUpdate
			if create {
				mode = validation.ModeCreate
			}
			validator := validation.NewValidator(mode)

			results := make([]fileResult, 0, len(args))
			failed := false
			for _, file := range args {
				res := validateFile(validator, file, jsonSchema)
				if !res.Valid {
					failed = true
				}
				results = append(results, res)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				if err := outputAsJSON(out, results); err != nil {
					return err
				}
			} else {
				renderValidationResults(out, results)
			}

			if failed {
				return ErrValidationFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "Validate with create semantics")
	cmd.Flags().BoolVar(&jsonSchema, "json-schema", false, "Also lint against the JSON Schema document")

	return cmd
}

func validateFile(validator *validation.Validator, file string, lintSchema bool) fileResult {
	res := fileResult{File: file}

	raw, err := readPayload(file)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	update, err := validator.Validate(raw)
	if err != nil {
		res.Error = err.Error()
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			res.Path = verr.Path
			res.Kind = verr.Kind
		}
		return res
	}
	res.Normalized = update

	if lintSchema {
		doc, err := json.Marshal(raw)
		if err != nil {
			res.Error = fmt.Sprintf("failed to encode payload for schema check: %v", err)
			return res
		}
		violations, err := validation.SchemaViolations(doc)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		if len(violations) > 0 {
			res.SchemaViolations = violations
			res.Error = "payload does not conform to the JSON Schema document"
			return res
		}
	}

	res.Valid = true
	return res
}

// readPayload loads one payload object from file
func readPayload(file string) (map[string]interface{}, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxPayloadFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > maxPayloadFileSize {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", maxPayloadFileSize)
	}

	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return validation.DecodeYAML(data)
	default:
		return validation.DecodeJSON(bytes.NewReader(data))
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the rule update payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(validation.SchemaDocument())
			return err
		},
	}
}
