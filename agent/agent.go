// Package agent defines the immutable agent descriptor: a name, an
// instruction, a model reference, a tool subset, an optional set of delegate
// sub-agents and the guardrail chains guarding its checkpoints. Descriptors
// carry no execution state; the runner interprets them per turn.
package agent

import (
	"github.com/JasonXSong/adk-demos/guardrail"
	"github.com/JasonXSong/adk-demos/model"
	"github.com/JasonXSong/adk-demos/tool"
)

// Options configure an Agent at construction time.
type Options struct {
	// Description is a short capability summary. Delegating parents surface it
	// to their model, so it drives routing decisions.
	Description string
	// Instruction is the system prompt (static or provider-backed).
	Instruction Instruction
	// Tools is the subset of tools this agent may call.
	Tools []tool.Tool
	// SubAgents are the delegates this agent may hand a turn to.
	SubAgents []*Agent
	// OutputKey names the session state key that receives the agent's final
	// text. Empty disables the write-back.
	OutputKey string
	// BeforeModel guards the pre-model checkpoint.
	BeforeModel guardrail.ModelChain
	// BeforeTool guards the pre-tool checkpoint.
	BeforeTool guardrail.ToolChain
}

// Agent is an immutable descriptor interpreted by the runner. Construct with
// New; the zero value is not usable.
type Agent struct {
	name        string
	description string
	model       model.Model
	instruction Instruction
	tools       *tool.Registry
	subAgents   []*Agent
	outputKey   string
	beforeModel guardrail.ModelChain
	beforeTool  guardrail.ToolChain
}

// New constructs an agent descriptor bound to a model.
func New(name string, m model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{
		name:        name,
		description: opts.Description,
		model:       m,
		instruction: opts.Instruction,
		tools:       tool.NewRegistry(opts.Tools...),
		subAgents:   opts.SubAgents,
		outputKey:   opts.OutputKey,
		beforeModel: opts.BeforeModel,
		beforeTool:  opts.BeforeTool,
	}
}

// Name returns the unique agent name used for delegation routing.
func (a *Agent) Name() string { return a.name }

// Description returns the capability summary shown to delegating parents.
func (a *Agent) Description() string { return a.description }

// Model returns the model backing this agent.
func (a *Agent) Model() model.Model { return a.model }

// Instruction returns the agent's instruction.
func (a *Agent) Instruction() Instruction { return a.instruction }

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *tool.Registry { return a.tools }

// SubAgents returns the direct delegates of this agent.
func (a *Agent) SubAgents() []*Agent { return a.subAgents }

// SubAgentNames returns the names of the direct delegates.
func (a *Agent) SubAgentNames() []string {
	names := make([]string, len(a.subAgents))
	for i, sub := range a.subAgents {
		names[i] = sub.name
	}
	return names
}

// FindSubAgent resolves a direct delegate by name. Delegation is strictly
// name-based and limited to declared children; it never searches deeper.
func (a *Agent) FindSubAgent(name string) *Agent {
	for _, sub := range a.subAgents {
		if sub.name == name {
			return sub
		}
	}
	return nil
}

// OutputKey returns the state key receiving the agent's final text ("" = none).
func (a *Agent) OutputKey() string { return a.outputKey }

// BeforeModel returns the pre-model guardrail chain.
func (a *Agent) BeforeModel() guardrail.ModelChain { return a.beforeModel }

// BeforeTool returns the pre-tool guardrail chain.
func (a *Agent) BeforeTool() guardrail.ToolChain { return a.beforeTool }
