package llm

import (
	"context"

	"github.com/calderhq/sidechat/internal/domain"
)

// ChatMessage is one prompt message sent to a provider
type ChatMessage struct {
	Role       string
	Content    string
	ToolCallID string            // set on tool result messages
	ToolName   string            // set on tool result messages
	ToolCalls  []ToolCallRequest // set on assistant messages that requested tools
}

// Message roles understood by every provider adapter
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleTool      = "tool"
)

// ToolDef describes one invocable tool in provider-neutral form
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatRequest contains everything a provider needs for one streaming round
type ChatRequest struct {
	Model     string
	System    string
	Messages  []ChatMessage
	Tools     []ToolDef
	MaxTokens int
}

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// Models returns the provider's selectable models
	Models() []domain.ModelInfo

	// DefaultModel returns the default model id
	DefaultModel() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// StreamChat opens one streaming completion round
	StreamChat(ctx context.Context, req ChatRequest) (Stream, error)
}
