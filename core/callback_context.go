package core

import (
	"context"

	"github.com/JasonXSong/adk-demos/logging"
)

// CallbackContext is the surface handed to guardrail checkpoints. Like
// ToolContext it stages state mutations as EventActions rather than writing
// the session directly, but it exists before any function call id has been
// assigned.
type CallbackContext struct {
	runCtx       *RunContext
	agentName    string
	eventActions EventActions

	*loggerAdapter
}

// NewCallbackContext constructs a callback context bound to a parent RunContext.
func NewCallbackContext(runCtx *RunContext) *CallbackContext {
	return &CallbackContext{
		runCtx:        runCtx,
		agentName:     runCtx.AgentName,
		eventActions:  EventActions{},
		loggerAdapter: newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the context associated with the turn.
func (cc *CallbackContext) Context() context.Context { return cc.runCtx.Context }

// SessionKey returns the session key associated with the turn.
func (cc *CallbackContext) SessionKey() SessionKey { return cc.runCtx.Key }

// RunID returns the run ID associated with the turn.
func (cc *CallbackContext) RunID() string { return cc.runCtx.RunID }

// AgentName returns the name of the agent being guarded.
func (cc *CallbackContext) AgentName() string { return cc.agentName }

// Logger returns the logger associated with the turn.
func (cc *CallbackContext) Logger() logging.Logger { return cc.loggerAdapter.Logger() }

// UserContent returns the user content that started the turn.
func (cc *CallbackContext) UserContent() Content { return cc.runCtx.UserContent }

// GetState retrieves the state associated with the given key.
func (cc *CallbackContext) GetState(k string) (any, bool) {
	return cc.runCtx.GetState(k)
}

// SetState records a state mutation both on the underlying run context and in
// the local EventActions delta, so a blocking verdict carries its flag on the
// substituted event.
func (cc *CallbackContext) SetState(k string, v any) {
	cc.runCtx.SetState(k, v)
	if cc.eventActions.StateDelta == nil {
		cc.eventActions.StateDelta = map[string]any{}
	}

	cc.eventActions.StateDelta[k] = v
}

// Actions returns the event actions accumulated in the callback context.
func (cc *CallbackContext) Actions() *EventActions { return &cc.eventActions }

// InternalApplyActions merges accumulated EventActions into the provided event.
func (cc *CallbackContext) InternalApplyActions(ev *Event) {
	if len(cc.eventActions.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		for k, v := range cc.eventActions.StateDelta {
			ev.Actions.StateDelta[k] = v
		}
	}
}
