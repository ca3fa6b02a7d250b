// Package runner coordinates turn execution: it resolves the session,
// persists the user message, drives the active agent through the turn state
// machine and streams resulting events to the caller. Public methods are safe
// for concurrent use.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/JasonXSong/adk-demos/agent"
	"github.com/JasonXSong/adk-demos/core"
	"github.com/JasonXSong/adk-demos/logging"
	"github.com/JasonXSong/adk-demos/session"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// AppName scopes every session this runner touches.
	AppName string
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxDelegationDepth bounds transitive delegation within one turn.
	MaxDelegationDepth int
	// MaxHistoryMessages caps the conversation window sent to models.
	MaxHistoryMessages int
	// SessionStore persists sessions, state and event history.
	SessionStore core.SessionStore
	// Logger receives structured execution logs.
	Logger logging.Logger
}

// Runner executes turns against a root agent. It creates run contexts,
// streams events, applies event side-effects and persists history.
type Runner struct {
	root *agent.Agent

	appName            string
	eventBufferSize    int
	maxDelegationDepth int
	maxHistoryMessages int

	sessionStore core.SessionStore
	logger       logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(root *agent.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		AppName:            "app",
		EventBufferSize:    100,
		MaxDelegationDepth: 8,
		MaxHistoryMessages: 50,
		SessionStore:       session.NewInMemoryStore(),
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		root:               root,
		appName:            opts.AppName,
		eventBufferSize:    opts.EventBufferSize,
		maxDelegationDepth: opts.MaxDelegationDepth,
		maxHistoryMessages: opts.MaxHistoryMessages,
		sessionStore:       opts.SessionStore,
		logger:             opts.Logger,
		activeRuns:         make(map[string]context.CancelFunc),
	}
}

// SessionStore exposes the backing store, e.g. for session bootstrap.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// AppName returns the application scope of this runner.
func (r *Runner) AppName() string { return r.appName }

// Run starts an asynchronous turn for the user's content. The session must
// already exist; a missing session fails synchronously with
// core.ErrSessionNotFound. The returned channels are closed when the turn
// completes.
func (r *Runner) Run(
	ctx context.Context,
	userID, sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	key := core.SessionKey{AppName: r.appName, UserID: userID, SessionID: sessionID}

	sess, err := r.sessionStore.Get(key)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	runCtx := core.NewRunContext(
		ctx,
		key,
		runID,
		r.root.Name(),
		userContent,
		agentEmit,
		resumeCh,
		sess,
		r.sessionStore,
		r.logger,
	)

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.sessionStore.AppendEvent(key, userEvent); err != nil {
		cancel()
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	r.logger.Debug("runner.turn.start", "run_id", runID, "session_id", sessionID, "agent", r.root.Name())

	go func() {
		defer func() {
			// Cancel before closing so the event loop can only wind down
			// after the run's context registration is released.
			cancel()
			close(agentEmit)
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
		}()

		if err := r.executeTurn(runCtx, r.root); err != nil {
			select {
			case <-runCtx.Done():
				return
			case errorsCh <- fmt.Errorf("turn execution failed: %w", err):
			}
		}
	}()

	go func() {
		defer func() { close(eventsCh); close(errorsCh) }()

		r.processEvents(runCtx, key, agentEmit, resumeCh, eventsCh, errorsCh)
	}()

	return runID, eventsCh, errorsCh, nil
}

// Cancel cancels a running turn by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// processEvents applies event side-effects, persists each event and forwards
// it to the caller. After persistence it signals resume so the executor can
// refresh its session snapshot and observe the event's effects.
func (r *Runner) processEvents(
	runCtx *core.RunContext,
	key core.SessionKey,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	for {
		select {
		case <-runCtx.Done():
			return
		case ev, ok := <-agentEmit:
			if !ok {
				return
			}
			if err := r.applyEventActions(key, ev); err != nil {
				select {
				case <-runCtx.Done():
					return
				case errorsCh <- fmt.Errorf("failed to process event actions: %w", err):
				}
				return
			}
			if err := r.sessionStore.AppendEvent(key, ev); err != nil {
				select {
				case <-runCtx.Done():
					return
				case errorsCh <- fmt.Errorf("failed to append event to session: %w", err):
				}
				return
			}
			select {
			case <-runCtx.Done():
				return
			case eventsCh <- ev:
				r.logger.Debug("runner.event.delivered", "event_id", ev.ID, "author", ev.Author)
			}
			select {
			case <-runCtx.Done():
				return
			case resumeCh <- struct{}{}:
			default:
			}
		}
	}
}

func (r *Runner) applyEventActions(key core.SessionKey, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(key, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "" {
		r.logger.Debug("runner.event.transfer_to_agent", "target", *ev.Actions.TransferToAgent, "session_id", key.SessionID)
	}

	if ev.IsEscalation() {
		r.logger.Debug("runner.event.escalate", "session_id", key.SessionID)
	}

	return nil
}
