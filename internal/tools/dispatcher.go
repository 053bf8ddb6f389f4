package tools

import (
	"context"
	"fmt"

	"github.com/calderhq/sidechat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Descriptor describes one invocable tool
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Result is the uniform execution envelope. Execute never returns a Go
// error: every failure mode lands here as Success=false.
type Result struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler executes one tool. Returning an error is allowed for tool
// authors' convenience; the dispatcher folds it into the envelope.
type Handler func(ctx context.Context, params map[string]any) (any, error)

type tool struct {
	descriptor Descriptor
	handler    Handler
}

// Dispatcher routes tool executions and scopes tool visibility by session type
type Dispatcher struct {
	tools  map[string]tool
	byType map[domain.SessionType][]string
}

// NewDispatcher creates a dispatcher with the built-in tools registered
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		tools:  make(map[string]tool),
		byType: make(map[domain.SessionType][]string),
	}
	registerBuiltins(d)
	return d
}

// Register adds a tool and the session types it is visible to
func (d *Dispatcher) Register(descriptor Descriptor, handler Handler, types ...domain.SessionType) {
	d.tools[descriptor.Name] = tool{descriptor: descriptor, handler: handler}
	for _, t := range types {
		d.byType[t] = append(d.byType[t], descriptor.Name)
	}
}

// ListTools returns the tool descriptors available to a session type.
// Pure lookup, no side effects.
func (d *Dispatcher) ListTools(sessionType domain.SessionType) []Descriptor {
	names := d.byType[sessionType]
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		out = append(out, d.tools[name].descriptor)
	}
	return out
}

// Execute runs a named tool. Unknown tools, bad params and tool-internal
// failures are all normalized into the Result envelope.
func (d *Dispatcher) Execute(ctx context.Context, name string, params map[string]any) Result {
	t, ok := d.tools[name]
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown tool: %s", name)}
	}

	value, err := t.handler(ctx, params)
	if err != nil {
		log.Debug().Str("tool", name).Err(err).Msg("tool execution failed")
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Result: value}
}

// AnalyzeConfig is a parameter-shaping convenience over Execute
func (d *Dispatcher) AnalyzeConfig(ctx context.Context, content, configType string) Result {
	if configType == "" {
		configType = "auto"
	}
	return d.Execute(ctx, "analyze_config", map[string]any{
		"content": content,
		"type":    configType,
	})
}

// AnalyzeError is a parameter-shaping convenience over Execute
func (d *Dispatcher) AnalyzeError(ctx context.Context, text string) Result {
	return d.Execute(ctx, "analyze_error", map[string]any{"text": text})
}
