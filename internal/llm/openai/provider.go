package openai

import (
	"context"
	"fmt"
	"io"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/calderhq/sidechat/internal/llm"
	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
)

// Provider implements llm.Provider for OpenAI
type Provider struct {
	apiKey       string
	defaultModel string
	client       openaisdk.Client
}

// NewProvider creates a new OpenAI provider
func NewProvider(apiKey, defaultModel string) *Provider {
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &Provider{
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       openaisdk.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "openai"
}

// Models returns the provider's selectable models
func (p *Provider) Models() []domain.ModelInfo {
	models := []domain.ModelInfo{
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", Provider: "openai", Available: true, PricingTier: domain.TierCheap, PricingMultiplier: 1.0},
		{ID: "gpt-4o", Name: "GPT-4o", Provider: "openai", Available: true, PricingTier: domain.TierStandard, PricingMultiplier: 4.0},
		{ID: "gpt-4.1", Name: "GPT-4.1", Provider: "openai", Available: true, PricingTier: domain.TierStandard, PricingMultiplier: 5.0},
		{ID: "o3", Name: "o3", Provider: "openai", Available: true, PricingTier: domain.TierPremium, PricingMultiplier: 10.0},
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

// StreamChat opens one streaming completion round
func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.Stream, error) {
	if !p.IsConfigured() {
		return nil, fmt.Errorf("openai provider is not configured (missing API key)")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaisdk.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		messages = append(messages, toMessageParam(m))
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = toToolParams(req.Tools)
	}

	raw := p.client.Chat.Completions.NewStreaming(ctx, params)
	return &stream{raw: raw}, nil
}

func toMessageParam(m llm.ChatMessage) openaisdk.ChatCompletionMessageParamUnion {
	switch m.Role {
	case llm.ChatRoleAssistant:
		if len(m.ToolCalls) > 0 {
			assistant := openaisdk.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = openaisdk.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					},
				})
			}
			return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
		}
		return openaisdk.AssistantMessage(m.Content)
	case llm.ChatRoleTool:
		return openaisdk.ToolMessage(m.Content, m.ToolCallID)
	default:
		return openaisdk.UserMessage(m.Content)
	}
}

func toToolParams(tools []llm.ToolDef) []openaisdk.ChatCompletionToolUnionParam {
	out := make([]openaisdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openaisdk.ChatCompletionFunctionTool(openaisdk.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openaisdk.String(t.Description),
			Parameters:  openaisdk.FunctionParameters(t.Parameters),
		}))
	}
	return out
}

// stream adapts the SDK's SSE stream to llm.Stream. Tool calls are
// assembled by the accumulator and delivered as one final chunk.
type stream struct {
	raw            *ssestream.Stream[openaisdk.ChatCompletionChunk]
	acc            openaisdk.ChatCompletionAccumulator
	toolsDelivered bool
}

func (s *stream) Recv() (*llm.Chunk, error) {
	for s.raw.Next() {
		chunk := s.raw.Current()
		s.acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			return &llm.Chunk{Text: chunk.Choices[0].Delta.Content}, nil
		}
	}
	if err := s.raw.Err(); err != nil {
		return nil, fmt.Errorf("openai stream error: %w", err)
	}

	if !s.toolsDelivered {
		s.toolsDelivered = true
		if calls := s.accumulatedToolCalls(); len(calls) > 0 {
			return &llm.Chunk{ToolCalls: calls}, nil
		}
	}
	return nil, io.EOF
}

func (s *stream) accumulatedToolCalls() []llm.ToolCallRequest {
	if len(s.acc.Choices) == 0 {
		return nil
	}
	var calls []llm.ToolCallRequest
	for _, tc := range s.acc.Choices[0].Message.ToolCalls {
		fn := tc.AsFunction()
		calls = append(calls, llm.ToolCallRequest{
			ID:        fn.ID,
			Name:      fn.Function.Name,
			Arguments: fn.Function.Arguments,
		})
	}
	return calls
}

func (s *stream) Close() error {
	return s.raw.Close()
}
