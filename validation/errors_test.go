package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "root",
			err:  newError(nil, KindRequired, "must contain at least one of [id, rule_id]"),
			want: `"value" must contain at least one of [id, rule_id]`,
		},
		{
			name: "field",
			err:  newError(Path{Key("meta")}, KindTypeMismatch, "must be an object"),
			want: `child "meta" fails because ["meta" must be an object]`,
		},
		{
			name: "position",
			err:  newError(Path{Key("index"), Position(3)}, KindTypeMismatch, "must be a string"),
			want: `child "index" fails because ["index" at position 3 fails because ["3" must be a string]]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestPath(t *testing.T) {
	base := Path{Key("threats")}
	extended := base.Append(Position(0)).Append(Key("tactic"))

	assert.Len(t, base, 1, "Append must not modify the receiver")
	assert.Equal(t, "threats[0].tactic", extended.String())

	out, err := json.Marshal(extended)
	require.NoError(t, err)
	assert.JSONEq(t, `["threats",0,"tactic"]`, string(out))
}

func TestValidationError_JSON(t *testing.T) {
	verr := newError(Path{Key("severity")}, KindEnumMismatch, enumDetail([]string{"low", "high"}))
	out, err := json.Marshal(verr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":["severity"],"kind":"enum_mismatch","message":"\"severity\" must be one of [low, high]"}`, string(out))
	assert.Equal(t, "severity", verr.Field())
}
