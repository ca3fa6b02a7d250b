// Package guardrail implements the two safety checkpoints of a turn. A
// pre-model guardrail inspects the outgoing model request and may veto the
// model call, substituting its own final answer. A pre-tool guardrail
// inspects a requested tool invocation and may veto execution, substituting
// its own result. Guardrails run in declaration order and the first blocking
// verdict wins; a nil verdict means allow.
package guardrail

import (
	"github.com/JasonXSong/adk-demos/core"
	"github.com/JasonXSong/adk-demos/model"
)

// ModelVerdict is a blocking decision from a pre-model guardrail. Text becomes
// the turn's final response in place of a model answer.
type ModelVerdict struct {
	Text string
}

// ToolVerdict is a blocking decision from a pre-tool guardrail. Result is
// recorded as the tool's response in place of real execution.
type ToolVerdict struct {
	Result map[string]any
}

// ModelFunc inspects a model request before it is sent. Returning nil allows
// the call; a non-nil verdict blocks it. State written through cc travels on
// the substituted event.
type ModelFunc func(cc *core.CallbackContext, req *model.Request) *ModelVerdict

// ToolFunc inspects a requested tool invocation before execution. Returning
// nil allows the call; a non-nil verdict blocks it.
type ToolFunc func(cc *core.CallbackContext, call model.ToolCall, args map[string]any) *ToolVerdict

// ModelChain evaluates pre-model guardrails in order, stopping at the first
// blocking verdict.
type ModelChain []ModelFunc

// Evaluate runs the chain. It returns the first non-nil verdict, or nil when
// every guardrail allows the call.
func (c ModelChain) Evaluate(cc *core.CallbackContext, req *model.Request) *ModelVerdict {
	for _, g := range c {
		if g == nil {
			continue
		}
		if verdict := g(cc, req); verdict != nil {
			return verdict
		}
	}
	return nil
}

// ToolChain evaluates pre-tool guardrails in order, stopping at the first
// blocking verdict.
type ToolChain []ToolFunc

// Evaluate runs the chain. It returns the first non-nil verdict, or nil when
// every guardrail allows the call.
func (c ToolChain) Evaluate(cc *core.CallbackContext, call model.ToolCall, args map[string]any) *ToolVerdict {
	for _, g := range c {
		if g == nil {
			continue
		}
		if verdict := g(cc, call, args); verdict != nil {
			return verdict
		}
	}
	return nil
}
