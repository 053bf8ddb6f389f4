package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/calderhq/sidechat/internal/llm"
	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Provider implements llm.Provider for Google Gemini
type Provider struct {
	apiKey       string
	defaultModel string
}

// NewProvider creates a new Gemini provider
func NewProvider(apiKey, defaultModel string) *Provider {
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
	}
	return &Provider{
		apiKey:       apiKey,
		defaultModel: defaultModel,
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string {
	return "gemini"
}

// Models returns the provider's selectable models
func (p *Provider) Models() []domain.ModelInfo {
	models := []domain.ModelInfo{
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: "gemini", Available: true, PricingTier: domain.TierCheap, PricingMultiplier: 0.8},
		{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Provider: "gemini", Available: true, PricingTier: domain.TierCheap, PricingMultiplier: 0.6},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Provider: "gemini", Available: true, PricingTier: domain.TierStandard, PricingMultiplier: 3.5},
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
		return nil, fmt.Errorf("gemini provider is not configured (missing API key)")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	gm := client.GenerativeModel(model)
	if req.System != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		gm.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
	}

	history, last := toContents(req.Messages)
	cs := gm.StartChat()
	cs.History = history

	iter := cs.SendMessageStream(ctx, last...)
	return &stream{client: client, iter: iter}, nil
}

func toDeclarations(tools []llm.ToolDef) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toSchema(t.Parameters),
		})
	}
	return decls
}

// toSchema converts a JSON-schema-shaped parameter map into genai.Schema.
// Only the subset the built-in tools use is supported.
func toSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return nil
	}
	schema := &genai.Schema{Type: toSchemaType(params["type"])}
	if desc, ok := params["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				schema.Properties[name] = toSchema(sub)
			}
		}
	}
	if required, ok := params["required"].([]string); ok {
		schema.Required = required
	} else if rawRequired, ok := params["required"].([]any); ok {
		for _, r := range rawRequired {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

func toSchemaType(raw any) genai.Type {
	t, _ := raw.(string)
	switch t {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	}
	return genai.TypeUnspecified
}

// toContents maps provider-neutral messages onto gemini chat history. The
// final message's parts are returned separately because SendMessageStream
// takes them as the outgoing message.
func toContents(messages []llm.ChatMessage) ([]*genai.Content, []genai.Part) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		contents = append(contents, toContent(m))
	}
	if len(contents) == 0 {
		return nil, []genai.Part{genai.Text("")}
	}
	last := contents[len(contents)-1]
	return contents[:len(contents)-1], last.Parts
}

func toContent(m llm.ChatMessage) *genai.Content {
	switch m.Role {
	case llm.ChatRoleAssistant:
		parts := []genai.Part{}
		if m.Content != "" {
			parts = append(parts, genai.Text(m.Content))
		}
		for _, tc := range m.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Arguments), &args)
			parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: args})
		}
		return &genai.Content{Role: "model", Parts: parts}
	case llm.ChatRoleTool:
		name := m.ToolName
		if name == "" {
			name = m.ToolCallID
		}
		return &genai.Content{Role: "user", Parts: []genai.Part{
			genai.FunctionResponse{
				Name:     name,
				Response: map[string]any{"result": m.Content},
			},
		}}
	default:
		return &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}}
	}
}

// stream adapts the genai response iterator to llm.Stream
type stream struct {
	client         *genai.Client
	iter           *genai.GenerateContentResponseIterator
	toolCalls      []llm.ToolCallRequest
	toolsDelivered bool
}

func (s *stream) Recv() (*llm.Chunk, error) {
	for {
		resp, err := s.iter.Next()
		if err == iterator.Done {
			if !s.toolsDelivered && len(s.toolCalls) > 0 {
				s.toolsDelivered = true
				return &llm.Chunk{ToolCalls: s.toolCalls}, nil
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("gemini stream error: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}

		var text string
		for _, part := range resp.Candidates[0].Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				text += string(v)
			case genai.FunctionCall:
				args, _ := json.Marshal(v.Args)
				s.toolCalls = append(s.toolCalls, llm.ToolCallRequest{
					// gemini keys calls by function name, not id
					ID:        v.Name + "-" + uuid.NewString()[:8],
					Name:      v.Name,
					Arguments: string(args),
				})
			}
		}
		if text != "" {
			return &llm.Chunk{Text: text}, nil
		}
	}
}

func (s *stream) Close() error {
	return s.client.Close()
}
