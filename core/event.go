package core

import (
	"time"

	"github.com/google/uuid"
)

// Error codes attached to escalation events. These mark faults that terminate
// a turn without producing a conversational answer; the runner never retries
// them.
const (
	ErrorCodeUnknownTool     = "UNKNOWN_TOOL"
	ErrorCodeUnknownDelegate = "UNKNOWN_DELEGATE"
	ErrorCodeModelFailure    = "MODEL_INVOCATION_FAILURE"
	ErrorCodeDepthExceeded   = "DELEGATION_DEPTH_EXCEEDED"
)

// EventActions encodes side-effects or orchestration signals attached to an
// Event. All fields are optional pointers / maps so absence can be
// distinguished from zero values. The runner interprets these after
// persistence (see runner.applyEventActions).
type EventActions struct {
	StateDelta      map[string]any `json:"state_delta,omitempty"`
	TransferToAgent *string        `json:"transfer_to_agent,omitempty"`
	Escalate        *bool          `json:"escalate,omitempty"`
}

// Event is the primary unit of communication between agents, the runner and
// external clients. After emission it should be treated as immutable. It
// captures:
//   - Correlation (InvocationID, ID, Author)
//   - Conversational content (optional role-based Parts)
//   - Orchestration directives (Actions)
//   - Turn completion / error metadata
//   - High precision UTC timestamp
//
// Content may be nil for control or error-only events. Exactly one event per
// turn carries the final-response marker (TurnComplete or Escalate).
type Event struct {
	ID           string       `json:"id"`
	InvocationID string       `json:"invocation_id"`
	Author       string       `json:"author"`
	Actions      EventActions `json:"actions"`
	Timestamp    time.Time    `json:"timestamp"`
	Content      *Content     `json:"content,omitempty"`
	TurnComplete *bool        `json:"turn_complete,omitempty"`
	ErrorCode    *string      `json:"error_code,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to an invocation.
// Prefer helper constructors for common semantic categories (message, function
// call/response, escalation).
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
		Actions:      EventActions{},
	}
}

// NewMessageEvent creates a non-user assistant message event with a single text part.
func NewMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewFinalMessageEvent creates an assistant message event carrying the
// turn-completion marker. Each turn terminates in exactly one such event
// (or an escalation event).
func NewFinalMessageEvent(invocationID, author, message string) Event {
	e := NewMessageEvent(invocationID, author, message)
	done := true
	e.TurnComplete = &done
	return e
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
func NewUserContentEvent(invocationID string, content *Content) Event {
	e := NewEvent(invocationID, "user")
	e.Content = content
	return e
}

// NewFunctionCallEvent represents an agent requesting execution of a named function/tool.
func NewFunctionCallEvent(invocationID, author, id, functionName, args string) Event {
	e := NewEvent(invocationID, author)
	e.Content = &Content{
		Role: "assistant",
		Parts: []Part{
			FunctionCallPart{
				FunctionCall: FunctionCall{
					ID:        id,
					Name:      functionName,
					Arguments: args,
				},
			},
		},
	}
	return e
}

// NewFunctionResponseEvent records the completion result (or error) of a
// tool/function invocation. If err is non-nil its message is copied into the
// response.Error field.
func NewFunctionResponseEvent(invocationID, author, id, functionName string, result interface{}, err error) Event {
	e := NewEvent(invocationID, author)
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
	return e
}

// NewEscalationEvent creates the terminal event for a turn that hit a fatal
// fault (unknown tool, unknown delegate, model invocation failure).
func NewEscalationEvent(invocationID, author, code, message string) Event {
	e := NewEvent(invocationID, author)
	esc := true
	e.Actions.Escalate = &esc
	e.ErrorCode = &code
	e.ErrorMessage = &message
	return e
}

// NewID generates a new unique identifier for events and runs.
func NewID() string { return uuid.NewString() }

// GetFunctionCalls returns any FunctionCall parts contained within the event
// content preserving their original order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	var calls []FunctionCall
	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// GetFunctionResponses returns any FunctionResponse parts contained within the
// event content preserving their original order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	var responses []FunctionResponse
	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// IsEscalation reports whether this event terminates a turn with a fatal fault.
func (e Event) IsEscalation() bool { return e.Actions.Escalate != nil && *e.Actions.Escalate }

// IsFinalResponse reports whether this event is the turn's terminal event.
// Intermediate events (function calls/responses, delegation handoffs) return
// false.
func (e Event) IsFinalResponse() bool {
	if e.IsEscalation() {
		return true
	}
	return e.TurnComplete != nil && *e.TurnComplete
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
