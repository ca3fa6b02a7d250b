package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/JasonXSong/adk-demos/logging"
)

// RunContext carries execution state & helpers for a single turn. It
// encapsulates the mutable, per-invocation execution scope passed to the turn
// executor. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (session Key, RunID, active AgentName)
//   - Input user Content
//   - Emission / resumption coordination channels
//   - The backing SessionStore for persistence concerns
//   - A working Session snapshot and pending StateDelta to commit
//   - The delegation Depth for recursion guarding
//
// State mutations performed via SetState accumulate in StateDelta until
// EmitEvent attaches them to the next emitted event.
type RunContext struct {
	Context      context.Context
	Key          SessionKey
	RunID        string
	AgentName    string
	UserContent  Content
	Emit         chan<- Event
	Resume       <-chan struct{}
	SessionStore SessionStore
	Session      *Session
	StateDelta   map[string]any
	Depth        int

	*loggerAdapter
}

// NewRunContext constructs a RunContext with an empty state delta.
func NewRunContext(
	ctx context.Context,
	key SessionKey,
	runID string,
	agentName string,
	userContent Content,
	emit chan<- Event,
	resume <-chan struct{},
	sess *Session,
	store SessionStore,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		Key:           key,
		RunID:         runID,
		AgentName:     agentName,
		UserContent:   userContent,
		Emit:          emit,
		Resume:        resume,
		Session:       sess,
		SessionStore:  store,
		StateDelta:    map[string]any{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged (delta) value if present, else the persisted session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}

	if rc.Session != nil {
		return rc.Session.GetState(k)
	}

	return nil, false
}

// SetState stages a state mutation in the in-memory delta buffer.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// ApplyStateDelta merges all pairs from d into the staged StateDelta.
func (rc *RunContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(rc.StateDelta, d)
}

// StateSnapshot returns a merged view of persisted state overlaid with the
// staged delta. The returned map is owned by the caller.
func (rc *RunContext) StateSnapshot() map[string]any {
	snap := map[string]any{}
	if rc.Session != nil {
		for k, v := range rc.Session.Clone().State {
			snap[k] = v
		}
	}
	maps.Copy(snap, rc.StateDelta)
	return snap
}

// RefreshSession reloads the session snapshot from the SessionStore.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	s, err := rc.SessionStore.Get(rc.Key)
	if err != nil {
		return err
	}

	rc.Session = s

	return nil
}

// NewChildContext derives a context for a delegated agent. The child shares
// the emit/resume channels and session but gets a fresh delta buffer and an
// incremented depth.
func (rc *RunContext) NewChildContext(agentName string) *RunContext {
	return &RunContext{
		Context:       rc.Context,
		Key:           rc.Key,
		RunID:         rc.RunID,
		AgentName:     agentName,
		UserContent:   rc.UserContent,
		Emit:          rc.Emit,
		Resume:        rc.Resume,
		SessionStore:  rc.SessionStore,
		Session:       rc.Session,
		StateDelta:    map[string]any{},
		Depth:         rc.Depth + 1,
		loggerAdapter: rc.loggerAdapter,
	}
}

// EmitEvent merges the pending StateDelta into the event and emits it.
func (rc *RunContext) EmitEvent(ev Event) error {
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}
		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	rc.StateDelta = map[string]any{}

	return nil
}

// WaitForResume blocks until Resume signals or context cancellation. The
// runner signals resume after an emitted event has been persisted, so a
// following RefreshSession observes the event's effects.
func (rc *RunContext) WaitForResume() error {
	if rc.Resume == nil {
		return nil
	}

	select {
	case <-rc.Resume:
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}
