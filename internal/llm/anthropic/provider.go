package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/calderhq/sidechat/internal/llm"
)

// Provider implements llm.Provider for Anthropic
type Provider struct {
	apiKey       string
	defaultModel string
	client       *http.Client
	baseURL      string
}

// NewProvider creates a new Anthropic provider
func NewProvider(apiKey, defaultModel string) *Provider {
	if defaultModel == "" {
		defaultModel = "claude-3-5-sonnet-20241022"
	}
	return &Provider{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: 10 * time.Minute},
		baseURL:      "https://api.anthropic.com/v1",
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "anthropic"
}

// Models returns the provider's selectable models
func (p *Provider) Models() []domain.ModelInfo {
	models := []domain.ModelInfo{
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Provider: "anthropic", Available: true, PricingTier: domain.TierCheap, PricingMultiplier: 1.5},
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Provider: "anthropic", Available: true, PricingTier: domain.TierStandard, PricingMultiplier: 5.0},
		{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", Provider: "anthropic", Available: true, PricingTier: domain.TierPremium, PricingMultiplier: 15.0},
	}
	for i := range models {
		if models[i].ID == p.defaultModel {
			models[i].IsDefault = true
		}
	}
	return models
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if provider has valid credentials
func (p *Provider) IsConfigured() bool {
	return p.apiKey != ""
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []wireMessage `json:"messages"`
	Tools     []wireTool    `json:"tools,omitempty"`
	Stream    bool          `json:"stream"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// StreamChat opens one streaming completion round
func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.Stream, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("anthropic provider is not configured (missing API key)")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	wireReq := messagesRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  toWireMessages(req.Messages),
		Stream:    true,
	}
	for _, t := range req.Tools {
		wireReq.Tools = append(wireReq.Tools, wireTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(msg))
	}

	return &stream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

func toWireMessages(messages []llm.ChatMessage) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.ChatRoleAssistant:
			blocks := []wireBlock{}
			if m.Content != "" {
				blocks = append(blocks, wireBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := json.RawMessage(tc.Arguments)
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, wireBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
			}
			out = append(out, wireMessage{Role: "assistant", Content: blocks})
		case llm.ChatRoleTool:
			out = append(out, wireMessage{Role: "user", Content: []wireBlock{
				{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content},
			}})
		default:
			out = append(out, wireMessage{Role: "user", Content: []wireBlock{
				{Type: "text", Text: m.Content},
			}})
		}
	}
	return out
}

// stream parses the Anthropic SSE wire format. Text deltas are surfaced as
// they arrive; tool_use blocks are assembled from input_json_delta events
// and delivered as one chunk when the message stops.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner

	toolCalls      []llm.ToolCallRequest
	partial        *llm.ToolCallRequest
	partialInput   strings.Builder
	toolsDelivered bool
}

type sseEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *stream) Recv() (*llm.Chunk, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev sseEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "content_block_start":
			if ev.ContentBlock.Type == "tool_use" {
				s.partial = &llm.ToolCallRequest{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name}
				s.partialInput.Reset()
			}
		case "content_block_delta":
			switch ev.Delta.Type {
			case "text_delta":
				if ev.Delta.Text != "" {
					return &llm.Chunk{Text: ev.Delta.Text}, nil
				}
			case "input_json_delta":
				s.partialInput.WriteString(ev.Delta.PartialJSON)
			}
		case "content_block_stop":
			if s.partial != nil {
				s.partial.Arguments = s.partialInput.String()
				if s.partial.Arguments == "" {
					s.partial.Arguments = "{}"
				}
				s.toolCalls = append(s.toolCalls, *s.partial)
				s.partial = nil
			}
		case "message_stop":
			return s.finish()
		case "error":
			return nil, fmt.Errorf("anthropic stream error: %s: %s", ev.Error.Type, ev.Error.Message)
		}
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("anthropic stream read: %w", err)
	}
	return s.finish()
}

func (s *stream) finish() (*llm.Chunk, error) {
	if !s.toolsDelivered && len(s.toolCalls) > 0 {
		s.toolsDelivered = true
		return &llm.Chunk{ToolCalls: s.toolCalls}, nil
	}
	return nil, io.EOF
}

func (s *stream) Close() error {
	return s.body.Close()
}
