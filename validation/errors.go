package validation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies the constraint a payload violated
type Kind string

const (
	// KindRequired indicates a missing mandatory field
	KindRequired Kind = "required"
	// KindTypeMismatch indicates a value of the wrong JSON type, null included
	KindTypeMismatch Kind = "type_mismatch"
	// KindEnumMismatch indicates a value outside the accepted set
	KindEnumMismatch Kind = "enum_mismatch"
	// KindRangeViolation indicates a numeric or length bound was crossed
	KindRangeViolation Kind = "range_violation"
	// KindEmptyNotAllowed indicates an empty string where one is not accepted
	KindEmptyNotAllowed Kind = "empty_not_allowed"
	// KindNotAllowedField indicates an unknown or forbidden field
	KindNotAllowedField Kind = "not_allowed"
)

// Segment is one step of a Path: either a field name or a zero-based position.
type Segment struct {
	Field string
	Index int
}

// Key returns a field segment
func Key(name string) Segment {
	return Segment{Field: name}
}

// Position returns a position segment
func Position(i int) Segment {
	return Segment{Index: i}
}

// IsPosition reports whether the segment addresses an array element
func (s Segment) IsPosition() bool {
	return s.Field == ""
}

func (s Segment) label() string {
	if s.IsPosition() {
		return strconv.Itoa(s.Index)
	}
	return s.Field
}

// Path locates a value from the payload root
type Path []Segment

// Append returns a new path extended with seg. The receiver is not modified.
func (p Path) Append(seg Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// String renders the path in dotted form, e.g. threats[0].tactic.id
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if seg.IsPosition() {
			fmt.Fprintf(&b, "[%d]", seg.Index)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Field)
	}
	return b.String()
}

// MarshalJSON encodes the path as an array of field names and integer positions
func (p Path) MarshalJSON() ([]byte, error) {
	out := make([]interface{}, 0, len(p))
	for _, seg := range p {
		if seg.IsPosition() {
			out = append(out, seg.Index)
		} else {
			out = append(out, seg.Field)
		}
	}
	return json.Marshal(out)
}

// ValidationError describes the first constraint a payload violated
type ValidationError struct {
	Path    Path   `json:"path"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func newError(path Path, kind Kind, detail string) *ValidationError {
	label := "value"
	if len(path) > 0 {
		label = path[len(path)-1].label()
	}
	return &ValidationError{
		Path:    path,
		Kind:    kind,
		Message: fmt.Sprintf("%q %s", label, detail),
	}
}

// Error renders the violation nested from the payload root, one level per
// path segment:
//
//	child "threats" fails because ["threats" at position 0 fails because [child "framework" fails because ["framework" is required]]]
func (e *ValidationError) Error() string {
	msg := e.Message
	for i := len(e.Path) - 1; i >= 0; i-- {
		seg := e.Path[i]
		if !seg.IsPosition() {
			msg = fmt.Sprintf("child %q fails because [%s]", seg.Field, msg)
			continue
		}
		parent := "value"
		if i > 0 {
			parent = e.Path[i-1].label()
		}
		msg = fmt.Sprintf("%q at position %d fails because [%s]", parent, seg.Index, msg)
	}
	return msg
}

// Field returns the top-level field the violation belongs to, or "" for
// violations of the payload as a whole.
func (e *ValidationError) Field() string {
	if len(e.Path) == 0 || e.Path[0].IsPosition() {
		return ""
	}
	return e.Path[0].Field
}
