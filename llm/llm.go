// Package llm defines the two external capabilities the retrieval core depends
// on, embedding and chat completion, together with the concrete backends.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a backend answers with neither text nor tool calls.
var ErrEmptyResponse = errors.New("llm: empty response")

// Embedder turns text into a fixed-length vector. Implementations must be
// deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder is implemented by backends that can embed several texts per request.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces either final text or a list of tool calls for a conversation.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the transcript sent to the model. Assistant messages
// may carry ToolCalls; tool messages carry ToolResults tagged with the call id.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// ParamType is the JSON-schema type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
)

type ToolParameter struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// ToolDefinition is the schema advertised to the model for one tool.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// JSONSchema renders the parameters as a JSON-schema object.
func (d ToolDefinition) JSONSchema() map[string]any {
	props := make(map[string]any, len(d.Parameters))
	required := []string{}
	for _, p := range d.Parameters {
		props[p.Name] = map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// CompletionRequest is one round sent to the model. When DisableTools is set
// the tool schemas are still sent so earlier calls in the transcript stay
// valid, but the model is told it must not call any of them.
type CompletionRequest struct {
	System       string
	Messages     []Message
	Tools        []ToolDefinition
	DisableTools bool
}

// Completion is the model's answer for one round.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

// WantsTools reports whether the model asked for at least one tool invocation.
func (c *Completion) WantsTools() bool {
	return c != nil && len(c.ToolCalls) > 0
}
