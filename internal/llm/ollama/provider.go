package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/calderhq/sidechat/internal/llm"
	"github.com/google/uuid"
)

// Provider implements llm.Provider for a local Ollama instance
type Provider struct {
	host         string
	defaultModel string
	client       *http.Client
}

// NewProvider creates a new Ollama provider
func NewProvider(host, defaultModel string) *Provider {
	if defaultModel == "" {
		defaultModel = "llama3"
	}
	return &Provider{
		host:         host,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: 10 * time.Minute},
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "ollama"
}

// Models returns the provider's selectable models. Local models cost nothing.
func (p *Provider) Models() []domain.ModelInfo {
	ids := []string{p.defaultModel}
	for _, id := range []string{"llama3", "qwen2.5", "mistral"} {
		if id != p.defaultModel {
			ids = append(ids, id)
		}
	}

	models := make([]domain.ModelInfo, 0, len(ids))
	for i, id := range ids {
		models = append(models, domain.ModelInfo{
			ID:                id,
			Name:              id,
			Provider:          "ollama",
			Available:         true,
			IsDefault:         i == 0,
			PricingTier:       domain.TierFree,
			PricingMultiplier: 0,
		})
	}
	return models
}

// DefaultModel returns the default model
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// IsConfigured checks if a host is set
func (p *Provider) IsConfigured() bool {
	return p.host != ""
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Tools    []wireTool    `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

type wireMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatChunk struct {
	Message struct {
		Role      string         `json:"role"`
		Content   string         `json:"content"`
		ToolCalls []wireToolCall `json:"tool_calls"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// StreamChat opens one streaming completion round
func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.Stream, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("ollama provider is not configured (missing host)")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	wireReq := chatRequest{Model: model, Stream: true}
	if req.System != "" {
		wireReq.Messages = append(wireReq.Messages, wireMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		wm := wireMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Arguments), &args)
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{Function: wireFunctionCall{Name: tc.Name, Arguments: args}})
		}
		wireReq.Messages = append(wireReq.Messages, wm)
	}
	for _, t := range req.Tools {
		wireReq.Tools = append(wireReq.Tools, wireTool{
			Type:     "function",
			Function: wireFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(msg))
	}

	return &stream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

// stream parses ollama's newline-delimited JSON chat stream
type stream struct {
	body           io.ReadCloser
	scanner        *bufio.Scanner
	toolCalls      []llm.ToolCallRequest
	toolsDelivered bool
	done           bool
}

func (s *stream) Recv() (*llm.Chunk, error) {
	for !s.done && s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("ollama stream decode: %w", err)
		}
		if chunk.Error != "" {
			return nil, fmt.Errorf("ollama stream error: %s", chunk.Error)
		}

		for _, tc := range chunk.Message.ToolCalls {
			args, _ := json.Marshal(tc.Function.Arguments)
			s.toolCalls = append(s.toolCalls, llm.ToolCallRequest{
				ID:        tc.Function.Name + "-" + uuid.NewString()[:8],
				Name:      tc.Function.Name,
				Arguments: string(args),
			})
		}

		if chunk.Done {
			s.done = true
			break
		}
		if chunk.Message.Content != "" {
			return &llm.Chunk{Text: chunk.Message.Content}, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("ollama stream read: %w", err)
	}

	if !s.toolsDelivered && len(s.toolCalls) > 0 {
		s.toolsDelivered = true
		return &llm.Chunk{ToolCalls: s.toolCalls}, nil
	}
	return nil, io.EOF
}

func (s *stream) Close() error {
	return s.body.Close()
}
