// Package model normalizes model providers behind a single interface. A
// provider receives instructions, conversation contents and tool definitions,
// and answers with exactly one of three output shapes: plain text, a single
// tool call, or a delegation to a named agent.
package model

import (
	"context"

	"github.com/JasonXSong/adk-demos/core"
)

// TransferToolName is the reserved function name providers use to surface a
// delegation decision. Adapters fold calls to this function into an
// OutputTransfer before the response reaches the orchestrator.
const TransferToolName = "transfer_to_agent"

// OutputKind discriminates the three possible shapes of a model turn output.
type OutputKind int

const (
	// OutputText is a plain conversational answer.
	OutputText OutputKind = iota
	// OutputToolCall requests execution of a single named tool.
	OutputToolCall
	// OutputTransfer hands the turn to a named delegate agent.
	OutputTransfer
)

// String returns the wire name of the output kind.
func (k OutputKind) String() string {
	switch k {
	case OutputText:
		return "text"
	case OutputToolCall:
		return "tool_call"
	case OutputTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// ToolCall identifies one requested function invocation.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded argument object
}

// Output is the tagged union a provider produces for one generation. Exactly
// one variant is meaningful, selected by Kind:
//
//	OutputText     -> Text
//	OutputToolCall -> ToolCall
//	OutputTransfer -> Target
type Output struct {
	Kind     OutputKind `json:"kind"`
	Text     string     `json:"text,omitempty"`
	ToolCall *ToolCall  `json:"tool_call,omitempty"`
	Target   string     `json:"target,omitempty"`
}

// NewTextOutput builds a plain text output.
func NewTextOutput(text string) Output { return Output{Kind: OutputText, Text: text} }

// NewToolCallOutput builds a tool call output.
func NewToolCallOutput(id, name, arguments string) Output {
	return Output{Kind: OutputToolCall, ToolCall: &ToolCall{ID: id, Name: name, Arguments: arguments}}
}

// NewTransferOutput builds a delegation output targeting the named agent.
func NewTransferOutput(target string) Output { return Output{Kind: OutputTransfer, Target: target} }

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the turn executor.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// LastUserText returns the text of the newest user content in the request, or
// "" when no user content is present. Guardrails use this to inspect the
// message that started the turn.
func (r Request) LastUserText() string {
	for i := len(r.Contents) - 1; i >= 0; i-- {
		if r.Contents[i].Role != "user" {
			continue
		}
		if text := r.Contents[i].FirstText(); text != "" {
			return text
		}
	}
	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the complete result of one generation.
type Response struct {
	ID           string      `json:"id"`
	Output       Output      `json:"output"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the turn executor to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// OutputFromParts folds a provider's content parts into the tagged Output.
// The first function call part wins (one tool call per turn); a call to the
// transfer function is normalized into a transfer output. With no function
// calls the concatenated text parts form a text output.
func OutputFromParts(parts []core.Part) (Output, error) {
	var text string
	for _, p := range parts {
		switch part := p.(type) {
		case core.FunctionCallPart:
			fc := part.FunctionCall
			if fc.Name == TransferToolName {
				target, err := ParseTransferTarget(fc.Arguments)
				if err != nil {
					return Output{}, err
				}
				return NewTransferOutput(target), nil
			}
			return NewToolCallOutput(fc.ID, fc.Name, fc.Arguments), nil
		case core.TextPart:
			text += part.Text
		}
	}
	return NewTextOutput(text), nil
}
