package tools

import (
	"context"
	"testing"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDispatcher_ListToolsBySessionType(t *testing.T) {
	d := NewDispatcher()

	names := func(sessionType domain.SessionType) []string {
		var out []string
		for _, desc := range d.ListTools(sessionType) {
			out = append(out, desc.Name)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"analyze_config", "analyze_error"}, names(domain.SessionTypeDevops))
	assert.ElementsMatch(t, []string{"analyze_error", "format_json"}, names(domain.SessionTypeDevelopment))
	assert.ElementsMatch(t, []string{"text_stats"}, names(domain.SessionTypeWriting))
	assert.ElementsMatch(t, []string{"format_json", "text_stats"}, names(domain.SessionTypeGeneral))
}

func TestDispatcher_UnknownToolNeverThrows(t *testing.T) {
	d := NewDispatcher()

	result := d.Execute(context.Background(), "launch_missiles", nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown tool")
}

func TestAnalyzeConfig_EmptyContent(t *testing.T) {
	d := NewDispatcher()

	result := d.Execute(context.Background(), "analyze_config", map[string]any{
		"content": "",
		"type":    "auto",
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "content is empty")
}

func TestAnalyzeConfig_DetectsAndParses(t *testing.T) {
	d := NewDispatcher()
	ctx := context.Background()

	t.Run("auto detects json", func(t *testing.T) {
		result := d.AnalyzeConfig(ctx, `{"replicas": 3, "image": "nginx"}`, "")
		assert.True(t, result.Success)

		report := result.Result.(map[string]any)
		assert.Equal(t, "json", report["format"])
		assert.ElementsMatch(t, []string{"replicas", "image"}, report["top_level_keys"])
	})

	t.Run("auto detects yaml", func(t *testing.T) {
		result := d.AnalyzeConfig(ctx, "replicas: 3\nimage: nginx\n", "auto")
		assert.True(t, result.Success)

		report := result.Result.(map[string]any)
		assert.Equal(t, "yaml", report["format"])
	})

	t.Run("invalid yaml", func(t *testing.T) {
		result := d.AnalyzeConfig(ctx, "a: [unclosed", "yaml")
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "invalid YAML")
	})

	t.Run("unsupported type", func(t *testing.T) {
		result := d.AnalyzeConfig(ctx, "whatever", "toml")
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "unsupported config type")
	})
}

func TestAnalyzeError_Categorizes(t *testing.T) {
	d := NewDispatcher()

	result := d.AnalyzeError(context.Background(),
		"Error: connection refused\npanic: runtime error\nall good here\n")

	assert.True(t, result.Success)
	report := result.Result.(map[string]any)
	assert.ElementsMatch(t, []string{"panic", "connection"}, report["categories"])
	assert.Len(t, report["failing_lines"], 2)
}

func TestAnalyzeError_UnknownCategory(t *testing.T) {
	d := NewDispatcher()

	result := d.AnalyzeError(context.Background(), "something vague happened")

	assert.True(t, result.Success)
	report := result.Result.(map[string]any)
	assert.Equal(t, []string{"unknown"}, report["categories"])
}

func TestFormatJSON(t *testing.T) {
	d := NewDispatcher()
	ctx := context.Background()

	result := d.Execute(ctx, "format_json", map[string]any{"content": `{"a":1}`})
	assert.True(t, result.Success)
	assert.Equal(t, "{\n  \"a\": 1\n}", result.Result)

	result = d.Execute(ctx, "format_json", map[string]any{"content": "not json"})
	assert.False(t, result.Success)
}

func TestTextStats(t *testing.T) {
	d := NewDispatcher()

	result := d.Execute(context.Background(), "text_stats", map[string]any{
		"text": "One two three. Four five!\n\nSecond paragraph here.",
	})

	assert.True(t, result.Success)
	stats := result.Result.(map[string]any)
	assert.Equal(t, 8, stats["words"])
	assert.Equal(t, 3, stats["sentences"])
	assert.Equal(t, 2, stats["paragraphs"])
}
