package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionlab/fusionlab/internal/ailink/prompt"
	"github.com/fusionlab/fusionlab/internal/counter"
	"github.com/fusionlab/fusionlab/internal/fusion"
	"github.com/fusionlab/fusionlab/internal/store"
)

func render(t *testing.T, format Format, doc Document) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, format, doc))
	return buf.String()
}

func TestParseFormat(t *testing.T) {
	for input, want := range map[string]Format{
		"":         FormatTable,
		"table":    FormatTable,
		"JSON":     FormatJSON,
		"markdown": FormatMarkdown,
		" md ":     FormatMarkdown,
	} {
		got, err := ParseFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseFormat("csv")
	require.Error(t, err)
}

func TestPolicyDocument(t *testing.T) {
	doc := PolicyDocument(fusion.DefaultSettings(), "memory")

	table := render(t, FormatTable, doc)
	assert.Contains(t, table, "image")
	assert.Contains(t, table, "suggestion")
	assert.Contains(t, table, "1m0s")

	var decoded struct {
		Backend  string       `json:"backend"`
		Policies []PolicyJSON `json:"policies"`
	}
	require.NoError(t, json.Unmarshal([]byte(render(t, FormatJSON, doc)), &decoded))
	assert.Equal(t, "memory", decoded.Backend)
	require.Len(t, decoded.Policies, 3)
	assert.Equal(t, PolicyJSON{Capability: "image", RequestsPerWindow: 10, Window: "1m0s", MaxRetries: 5, BaseDelay: "1s"}, decoded.Policies[0])
	assert.Equal(t, 15, decoded.Policies[1].RequestsPerWindow)
	assert.Equal(t, 20, decoded.Policies[2].RequestsPerWindow)
}

func TestWindowsDocument(t *testing.T) {
	reset := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	doc := WindowsDocument([]store.RateLimitEntry{
		{Class: "image", ClientID: "203.0.113.7", RequestCount: 4, ResetAt: reset},
	})

	assert.Contains(t, render(t, FormatTable, doc), "203.0.113.7")
	assert.Contains(t, render(t, FormatMarkdown, doc), "| image |")

	var decoded []WindowJSON
	require.NoError(t, json.Unmarshal([]byte(render(t, FormatJSON, doc)), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, 4, decoded[0].RequestCount)
	assert.True(t, reset.Equal(decoded[0].ResetAt))
}

func TestEmptyWindowsDocument(t *testing.T) {
	doc := WindowsDocument(nil)

	assert.Equal(t, "(no stored rate limit windows)\n", render(t, FormatTable, doc))
	assert.Equal(t, "[]\n", render(t, FormatJSON, doc))
}

func TestResetDocument(t *testing.T) {
	assert.Contains(t, render(t, FormatTable, ResetDocument(3, 0, true)), "Would delete 3")
	assert.Contains(t, render(t, FormatTable, ResetDocument(3, 2, false)), "Deleted 2/3")
	assert.JSONEq(t, `{"matched":3,"deleted":2,"dry_run":false}`, render(t, FormatJSON, ResetDocument(3, 2, false)))
}

func TestCountAndSuggestionDocuments(t *testing.T) {
	count := render(t, FormatTable, CountDocument(counter.Snapshot{Count: 42}))
	assert.Contains(t, count, "42")
	assert.Contains(t, count, "never")

	suggestion := render(t, FormatJSON, SuggestionDocument(&fusion.Suggestion{Item1: "Teapot", Item2: "Volcano"}))
	assert.JSONEq(t, `{"item1":"Teapot","item2":"Volcano"}`, suggestion)
}

func TestChecksDocument(t *testing.T) {
	doc := ChecksDocument("unhealthy", []string{"counter", "credential"}, map[string]string{
		"counter":    "healthy",
		"credential": "unhealthy",
	})
	table := render(t, FormatTable, doc)
	assert.Contains(t, table, "credential")
	assert.Contains(t, table, "unhealthy")
}

func TestPromptsDocument(t *testing.T) {
	registry, err := prompt.DefaultRegistry()
	require.NoError(t, err)

	table := render(t, FormatTable, PromptsDocument(registry.List()))
	assert.Contains(t, table, prompt.SlugImage)
	assert.Contains(t, table, prompt.SlugSuggestion)

	var configs []prompt.Config
	require.NoError(t, json.Unmarshal([]byte(render(t, FormatJSON, PromptsDocument(registry.List()))), &configs))
	assert.Len(t, configs, 3)
}
