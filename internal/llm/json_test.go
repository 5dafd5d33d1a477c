package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced with tag", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced without tag", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around", "Here you go:\n{\"a\": 1}\nHope it helps.", `{"a": 1}`},
		{"array", `[1, 2]`, `[1, 2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanJSON_NoJSON(t *testing.T) {
	for _, in := range []string{"", "no json here", "{broken", "```json\n{\"a\": \n```"} {
		_, err := CleanJSON(in)
		assert.True(t, errors.Is(err, ErrNoJSON), "input %q", in)
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Claims []string `json:"claims"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"claims\": [\"A\", \"B\"]}\n```", &out))
	assert.Equal(t, []string{"A", "B"}, out.Claims)

	assert.Error(t, DecodeJSON(`{"claims": "not a list"}`, &out))
}

func TestObjectPairs_PreservesOrder(t *testing.T) {
	pairs, err := ObjectPairs(`{"zeta": "1", "alpha": "2", "mid": {"x": 3}}`)
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, "zeta", pairs[0].Key)
	assert.Equal(t, "alpha", pairs[1].Key)
	assert.Equal(t, "mid", pairs[2].Key)
	assert.Equal(t, "2", pairs[1].Value.String())
	assert.Equal(t, int64(3), pairs[2].Value.Get("x").Int())

	_, err = ObjectPairs(`["not", "an", "object"]`)
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestLookup(t *testing.T) {
	v, err := Lookup("```json\n{\"evidence_2\": {\"relationship\": \"REFUTES\"}}\n```", "evidence_2.relationship")
	require.NoError(t, err)
	assert.Equal(t, "REFUTES", v.String())
}
