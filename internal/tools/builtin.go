package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/calderhq/sidechat/internal/domain"
	"gopkg.in/yaml.v3"
)

func registerBuiltins(d *Dispatcher) {
	d.Register(Descriptor{
		Name:        "analyze_config",
		Description: "Parse and lint a YAML or JSON configuration document",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{"type": "string", "description": "the raw configuration text"},
				"type":    map[string]any{"type": "string", "description": "auto, yaml or json"},
			},
			"required": []string{"content"},
		},
	}, analyzeConfig, domain.SessionTypeDevops)

	d.Register(Descriptor{
		Name:        "analyze_error",
		Description: "Classify an error message or log excerpt and extract the failing lines",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string", "description": "the error output to analyze"},
			},
			"required": []string{"text"},
		},
	}, analyzeError, domain.SessionTypeDevops, domain.SessionTypeDevelopment)

	d.Register(Descriptor{
		Name:        "format_json",
		Description: "Pretty-print a JSON document",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{"type": "string", "description": "the JSON text to format"},
			},
			"required": []string{"content"},
		},
	}, formatJSON, domain.SessionTypeDevelopment, domain.SessionTypeGeneral)

	d.Register(Descriptor{
		Name:        "text_stats",
		Description: "Count words, sentences and paragraphs in a text",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string", "description": "the text to measure"},
			},
			"required": []string{"text"},
		},
	}, textStats, domain.SessionTypeWriting, domain.SessionTypeGeneral)
}

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func analyzeConfig(_ context.Context, params map[string]any) (any, error) {
	content := stringParam(params, "content")
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content is empty")
	}

	configType := stringParam(params, "type")
	if configType == "" || configType == "auto" {
		configType = detectConfigType(content)
	}

	switch configType {
	case "json":
		var doc any
		if err := json.Unmarshal([]byte(content), &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %v", err)
		}
		return configReport("json", doc), nil
	case "yaml":
		var doc any
		if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %v", err)
		}
		return configReport("yaml", doc), nil
	default:
		return nil, fmt.Errorf("unsupported config type: %s", configType)
	}
}

func detectConfigType(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return "json"
	}
	return "yaml"
}

func configReport(format string, doc any) map[string]any {
	report := map[string]any{
		"format": format,
		"valid":  true,
	}
	if m, ok := doc.(map[string]any); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		report["top_level_keys"] = keys
		report["key_count"] = len(keys)
	}
	return report
}

var errorPatterns = []struct {
	category string
	re       *regexp.Regexp
}{
	{"panic", regexp.MustCompile(`(?i)panic:|fatal error:`)},
	{"out_of_memory", regexp.MustCompile(`(?i)out of memory|oom[- ]?kill|cannot allocate`)},
	{"connection", regexp.MustCompile(`(?i)connection refused|connection reset|no such host|timeout`)},
	{"permission", regexp.MustCompile(`(?i)permission denied|access denied|forbidden`)},
	{"not_found", regexp.MustCompile(`(?i)not found|no such file|404`)},
	{"crash_loop", regexp.MustCompile(`(?i)crashloopbackoff|back-off restarting`)},
}

func analyzeError(_ context.Context, params map[string]any) (any, error) {
	text := stringParam(params, "text")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is empty")
	}

	categories := []string{}
	for _, p := range errorPatterns {
		if p.re.MatchString(text) {
			categories = append(categories, p.category)
		}
	}
	if len(categories) == 0 {
		categories = append(categories, "unknown")
	}

	var failing []string
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "fail") || strings.Contains(lower, "panic") {
			failing = append(failing, strings.TrimSpace(line))
		}
		if len(failing) >= 10 {
			break
		}
	}

	return map[string]any{
		"categories":    categories,
		"failing_lines": failing,
	}, nil
}

func formatJSON(_ context.Context, params map[string]any) (any, error) {
	content := stringParam(params, "content")
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content is empty")
	}

	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}
	pretty, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return string(pretty), nil
}

var sentenceEnd = regexp.MustCompile(`[.!?]+(\s|$)`)

func textStats(_ context.Context, params map[string]any) (any, error) {
	text := stringParam(params, "text")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is empty")
	}

	paragraphs := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}

	return map[string]any{
		"words":      len(strings.Fields(text)),
		"characters": len(text),
		"sentences":  len(sentenceEnd.FindAllString(text, -1)),
		"paragraphs": paragraphs,
	}, nil
}
