package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_FencedBlock(t *testing.T) {
	text := "Here is the corrected query:\n```json\n{\"sql\": \"SELECT 1\"}\n```\nLet me know if that helps."
	obj, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", obj["sql"])
}

func TestExtractJSON_BraceSlice(t *testing.T) {
	text := `The answer is {"sql": "SELECT name FROM frpm WHERE rate > 0.5"} as requested.`
	obj, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM frpm WHERE rate > 0.5", obj["sql"])
}

func TestExtractJSON_TrailingSemicolonRepair(t *testing.T) {
	// Model appended a statement terminator inside the JSON object.
	text := `{"sql": "SELECT COUNT(*) FROM schools";}`
	obj, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM schools", obj["sql"])
}

func TestExtractJSON_MissingClosingQuoteRepair(t *testing.T) {
	text := `{"sql": "SELECT * FROM satscores
}`
	obj, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Contains(t, obj["sql"], "SELECT * FROM satscores")
}

func TestExtractJSON_NoObject(t *testing.T) {
	_, err := ExtractJSON("I cannot produce a query for this question.")
	require.Error(t, err)
	var ee *ExtractError
	assert.ErrorAs(t, err, &ee)
}

func TestExtractJSON_NestedBraces(t *testing.T) {
	text := `{"sql": "SELECT '{x}' FROM t", "note": "literal braces"}`
	obj, err := ExtractJSON(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT '{x}' FROM t", obj["sql"])
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean", `{"sql": "SELECT 1"}`, "SELECT 1"},
		{"fenced", "```json\n{\"sql\": \"SELECT 2\"}\n```", "SELECT 2"},
		{"whitespace", `{"sql": "  SELECT 3  "}`, "SELECT 3"},
		{"missing key", `{"query": "SELECT 4"}`, ""},
		{"not a string", `{"sql": 5}`, ""},
		{"garbage", "no json here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSQL(tt.in))
		})
	}
}

func TestExtractField(t *testing.T) {
	text := `{"judgment": "The query ignores the charter filter", "sql": "SELECT 1"}`
	assert.Equal(t, "The query ignores the charter filter", ExtractField(text, "judgment"))
}
