package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonXSong/adk-demos/agent"
	"github.com/JasonXSong/adk-demos/core"
	"github.com/JasonXSong/adk-demos/guardrail"
	"github.com/JasonXSong/adk-demos/model"
	"github.com/JasonXSong/adk-demos/session"
	"github.com/JasonXSong/adk-demos/tool"
)

const (
	testAppName   = "test_app"
	testUserID    = "user-1"
	testSessionID = "sess-1"
)

func newTestRunner(t *testing.T, root *agent.Agent, initialState map[string]any, optFns ...func(o *Options)) (*Runner, core.SessionStore) {
	t.Helper()

	store := session.NewInMemoryStore()
	key := core.SessionKey{AppName: testAppName, UserID: testUserID, SessionID: testSessionID}
	_, err := store.Create(key, initialState)
	require.NoError(t, err)

	fns := append([]func(o *Options){func(o *Options) {
		o.AppName = testAppName
		o.SessionStore = store
	}}, optFns...)

	return New(root, fns...), store
}

// collect drains both channels of a run until they close.
func collect(t *testing.T, events <-chan core.Event, errs <-chan error) ([]core.Event, []error) {
	t.Helper()

	var evs []core.Event
	var errList []error
	timeout := time.After(5 * time.Second)

	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			evs = append(evs, ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			errList = append(errList, err)
		case <-timeout:
			t.Fatal("timed out waiting for run to finish")
		}
	}
	return evs, errList
}

func runTurn(t *testing.T, r *Runner, text string) ([]core.Event, []error) {
	t.Helper()
	_, events, errs, err := r.Run(context.Background(), testUserID, testSessionID, core.NewUserText(text))
	require.NoError(t, err)
	return collect(t, events, errs)
}

func finalEvent(t *testing.T, evs []core.Event) core.Event {
	t.Helper()
	var finals []core.Event
	for _, ev := range evs {
		if ev.IsFinalResponse() {
			finals = append(finals, ev)
		}
	}
	require.Len(t, finals, 1, "expected exactly one final event")
	return finals[0]
}

func sessionState(t *testing.T, store core.SessionStore) map[string]any {
	t.Helper()
	sess, err := store.Get(core.SessionKey{AppName: testAppName, UserID: testUserID, SessionID: testSessionID})
	require.NoError(t, err)
	return sess.State
}

func TestRunner_TextTurn(t *testing.T) {
	m := model.NewMockModel("test", "mock").AddText("Nice to meet you.")
	root := agent.New("assistant", m, func(o *agent.Options) {
		o.Instruction = agent.NewInstructionFromText("Be helpful.")
	})
	r, store := newTestRunner(t, root, nil)

	evs, errList := runTurn(t, r, "hi")

	assert.Empty(t, errList)
	final := finalEvent(t, evs)
	assert.Equal(t, "assistant", final.Author)
	assert.Equal(t, "Nice to meet you.", final.Content.FirstText())
	assert.Equal(t, 1, m.CallCount())

	// The user message and the final answer are both persisted.
	sess, err := store.Get(core.SessionKey{AppName: testAppName, UserID: testUserID, SessionID: testSessionID})
	require.NoError(t, err)
	history := sess.GetConversationHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Content.Role)
	assert.Equal(t, "assistant", history[1].Content.Role)
}

func TestRunner_MissingSessionFailsSynchronously(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	r := New(agent.New("assistant", m), func(o *Options) { o.AppName = testAppName })

	_, _, _, err := r.Run(context.Background(), testUserID, "never-created", core.NewUserText("hi"))
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestRunner_ToolTurn(t *testing.T) {
	executed := false
	echo := tool.NewFunctionTool("echo_city", "echoes the city",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"city": map[string]any{"type": "string"}},
			"required":   []string{"city"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			executed = true
			tc.SetState("last_city", args["city"])
			return map[string]any{"status": "success", "report": "sunny in " + args["city"].(string)}, nil
		})

	m := model.NewMockModel("test", "mock").
		AddToolCall("fc-1", "echo_city", `{"city":"London"}`).
		AddText("It is sunny in London.")

	root := agent.New("assistant", m, func(o *agent.Options) {
		o.Tools = []tool.Tool{echo}
	})
	r, store := newTestRunner(t, root, nil)

	evs, errList := runTurn(t, r, "weather in London?")

	assert.Empty(t, errList)
	assert.True(t, executed)
	assert.Equal(t, 2, m.CallCount())

	var calls, responses int
	for _, ev := range evs {
		calls += len(ev.GetFunctionCalls())
		responses += len(ev.GetFunctionResponses())
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, responses)

	final := finalEvent(t, evs)
	assert.Equal(t, "It is sunny in London.", final.Content.FirstText())

	// Tool state writes are persisted before the final answer.
	assert.Equal(t, "London", sessionState(t, store)["last_city"])

	// The second model request contains the tool outcome.
	secondReq := m.Requests()[1]
	var sawResponse bool
	for _, c := range secondReq.Contents {
		if c.Role == "tool" {
			sawResponse = true
		}
	}
	assert.True(t, sawResponse, "second request must carry the tool response")
}

func TestRunner_ToolError_FoldsIntoConversation(t *testing.T) {
	failing := tool.NewFunctionTool("broken", "always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		})

	m := model.NewMockModel("test", "mock").
		AddToolCall("fc-1", "broken", `{}`).
		AddText("Sorry, the lookup failed.")

	root := agent.New("assistant", m, func(o *agent.Options) {
		o.Tools = []tool.Tool{failing}
	})
	r, _ := newTestRunner(t, root, nil)

	evs, errList := runTurn(t, r, "try it")

	// A tool error is conversational, not fatal.
	assert.Empty(t, errList)
	final := finalEvent(t, evs)
	assert.Equal(t, "Sorry, the lookup failed.", final.Content.FirstText())

	var resp core.FunctionResponse
	for _, ev := range evs {
		if frs := ev.GetFunctionResponses(); len(frs) > 0 {
			resp = frs[0]
		}
	}
	assert.Contains(t, resp.Error, "backend unavailable")
}

func TestRunner_PreModelGuardrailBlocks(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	root := agent.New("assistant", m, func(o *agent.Options) {
		o.BeforeModel = guardrail.ModelChain{guardrail.BlockKeyword("BLOCK")}
	})
	r, store := newTestRunner(t, root, nil)

	evs, errList := runTurn(t, r, "please BLOCK this")

	assert.Empty(t, errList)
	assert.Equal(t, 0, m.CallCount(), "model must not be called when blocked")

	final := finalEvent(t, evs)
	assert.Equal(t, "I cannot process this request because it contains the blocked keyword 'BLOCK'.", final.Content.FirstText())

	state := sessionState(t, store)
	assert.Equal(t, true, state[guardrail.StateKeyKeywordBlocked])
}

func TestRunner_PreToolGuardrailBlocks(t *testing.T) {
	executed := false
	weather := tool.NewFunctionTool("get_weather_stateful", "weather lookup",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"city": map[string]any{"type": "string"}},
			"required":   []string{"city"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			executed = true
			return map[string]any{"status": "success"}, nil
		})

	m := model.NewMockModel("test", "mock").
		AddToolCall("fc-1", "get_weather_stateful", `{"city":"Paris"}`).
		AddText("I cannot check Paris right now.")

	root := agent.New("assistant", m, func(o *agent.Options) {
		o.Tools = []tool.Tool{weather}
		o.BeforeTool = guardrail.ToolChain{guardrail.BlockCityTool("get_weather_stateful", "Paris")}
	})
	r, store := newTestRunner(t, root, nil)

	evs, errList := runTurn(t, r, "How about Paris?")

	assert.Empty(t, errList)
	assert.False(t, executed, "blocked tool must not run")
	assert.Equal(t, 2, m.CallCount(), "block substitutes the result, the turn still finishes")

	var resp core.FunctionResponse
	for _, ev := range evs {
		if frs := ev.GetFunctionResponses(); len(frs) > 0 {
			resp = frs[0]
		}
	}
	result, ok := resp.Response.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "error", result["status"])

	state := sessionState(t, store)
	assert.Equal(t, true, state[guardrail.StateKeyToolBlocked])
}

func TestRunner_UnknownToolEscalates(t *testing.T) {
	m := model.NewMockModel("test", "mock").AddToolCall("fc-1", "no_such_tool", `{}`)
	root := agent.New("assistant", m)
	r, _ := newTestRunner(t, root, nil)

	evs, errList := runTurn(t, r, "do something")

	require.Len(t, errList, 1)
	assert.Contains(t, errList[0].Error(), core.ErrorCodeUnknownTool)

	final := finalEvent(t, evs)
	assert.True(t, final.IsEscalation())
	require.NotNil(t, final.ErrorCode)
	assert.Equal(t, core.ErrorCodeUnknownTool, *final.ErrorCode)
	assert.Equal(t, 1, m.CallCount(), "fatal faults are not retried")
}

func TestRunner_UnknownDelegateEscalates(t *testing.T) {
	m := model.NewMockModel("test", "mock").AddTransfer("ghost_agent")
	root := agent.New("assistant", m)
	r, _ := newTestRunner(t, root, nil)

	evs, errList := runTurn(t, r, "hand off")

	require.Len(t, errList, 1)
	assert.Contains(t, errList[0].Error(), core.ErrorCodeUnknownDelegate)

	final := finalEvent(t, evs)
	require.NotNil(t, final.ErrorCode)
	assert.Equal(t, core.ErrorCodeUnknownDelegate, *final.ErrorCode)
}

func TestRunner_ModelFailureEscalates(t *testing.T) {
	m := model.NewMockModel("test", "mock").FailWith(errors.New("rate limited"))
	root := agent.New("assistant", m)
	r, _ := newTestRunner(t, root, nil)

	evs, errList := runTurn(t, r, "hi")

	require.Len(t, errList, 1)
	assert.Contains(t, errList[0].Error(), core.ErrorCodeModelFailure)

	final := finalEvent(t, evs)
	require.NotNil(t, final.ErrorCode)
	assert.Equal(t, core.ErrorCodeModelFailure, *final.ErrorCode)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "rate limited")
}

func TestRunner_Delegation(t *testing.T) {
	childModel := model.NewMockModel("child", "mock").AddText("Hello from the greeter!")
	child := agent.New("greeting_agent", childModel, func(o *agent.Options) {
		o.Description = "Handles greetings."
	})

	rootModel := model.NewMockModel("root", "mock").AddTransfer("greeting_agent")
	root := agent.New("coordinator", rootModel, func(o *agent.Options) {
		o.SubAgents = []*agent.Agent{child}
	})
	r, _ := newTestRunner(t, root, nil)

	evs, errList := runTurn(t, r, "hi there")

	assert.Empty(t, errList)

	var handoff *core.Event
	for i, ev := range evs {
		if ev.Actions.TransferToAgent != nil {
			handoff = &evs[i]
		}
	}
	require.NotNil(t, handoff, "expected a handoff event")
	assert.Equal(t, "coordinator", handoff.Author)
	assert.Equal(t, "greeting_agent", *handoff.Actions.TransferToAgent)

	final := finalEvent(t, evs)
	assert.Equal(t, "greeting_agent", final.Author)
	assert.Equal(t, "Hello from the greeter!", final.Content.FirstText())

	assert.Equal(t, 1, rootModel.CallCount())
	assert.Equal(t, 1, childModel.CallCount())
}

func TestRunner_DelegationRosterInRequest(t *testing.T) {
	child := agent.New("greeting_agent", model.NewMockModel("child", "mock"), func(o *agent.Options) {
		o.Description = "Handles greetings."
	})

	rootModel := model.NewMockModel("root", "mock").AddText("done")
	root := agent.New("coordinator", rootModel, func(o *agent.Options) {
		o.Instruction = agent.NewInstructionFromText("Coordinate the team.")
		o.SubAgents = []*agent.Agent{child}
	})
	r, _ := newTestRunner(t, root, nil)

	_, errList := runTurn(t, r, "hi")
	assert.Empty(t, errList)

	req := rootModel.Requests()[0]
	assert.Contains(t, req.Instructions, "greeting_agent")
	assert.Contains(t, req.Instructions, "Handles greetings.")

	var names []string
	for _, def := range req.Tools {
		names = append(names, def.Function.Name)
	}
	assert.Contains(t, names, model.TransferToolName)
}

func TestRunner_DelegationDepthExceeded(t *testing.T) {
	child := agent.New("child", model.NewMockModel("child", "mock").AddText("never reached"))
	rootModel := model.NewMockModel("root", "mock").AddTransfer("child")
	root := agent.New("coordinator", rootModel, func(o *agent.Options) {
		o.SubAgents = []*agent.Agent{child}
	})

	r, _ := newTestRunner(t, root, nil, func(o *Options) {
		o.MaxDelegationDepth = 0
	})

	evs, errList := runTurn(t, r, "hand off")

	require.Len(t, errList, 1)
	assert.Contains(t, errList[0].Error(), core.ErrorCodeDepthExceeded)

	final := finalEvent(t, evs)
	require.NotNil(t, final.ErrorCode)
	assert.Equal(t, core.ErrorCodeDepthExceeded, *final.ErrorCode)
}

func TestRunner_OutputKeyWritesFinalText(t *testing.T) {
	m := model.NewMockModel("test", "mock").AddText("The weather in London is cloudy.")
	root := agent.New("assistant", m, func(o *agent.Options) {
		o.OutputKey = "last_weather_report"
	})
	r, store := newTestRunner(t, root, nil)

	_, errList := runTurn(t, r, "weather?")
	assert.Empty(t, errList)

	assert.Equal(t, "The weather in London is cloudy.", sessionState(t, store)["last_weather_report"])
}

func TestRunner_SecondPassToolCallFlattened(t *testing.T) {
	noop := tool.NewFunctionTool("noop", "does nothing",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) { return "ok", nil })

	m := model.NewMockModel("test", "mock").
		AddToolCall("fc-1", "noop", `{}`).
		AddToolCall("fc-2", "noop", `{}`) // renewed attempt, must not be dispatched

	root := agent.New("assistant", m, func(o *agent.Options) {
		o.Tools = []tool.Tool{noop}
	})
	r, _ := newTestRunner(t, root, nil)

	evs, errList := runTurn(t, r, "go")

	assert.Empty(t, errList)
	assert.Equal(t, 2, m.CallCount())

	var calls int
	for _, ev := range evs {
		calls += len(ev.GetFunctionCalls())
	}
	assert.Equal(t, 1, calls, "only the first tool call is dispatched")

	final := finalEvent(t, evs)
	assert.Equal(t, "The agent did not produce a final response.", final.Content.FirstText())
}

func TestRunner_InstructionTemplateRendersState(t *testing.T) {
	m := model.NewMockModel("test", "mock").AddText("ok")
	root := agent.New("assistant", m, func(o *agent.Options) {
		o.Instruction = agent.NewInstructionFromText(
			`Preferred unit: {{default "Celsius" .user_preference_temperature_unit}}.`)
	})
	r, _ := newTestRunner(t, root, map[string]any{"user_preference_temperature_unit": "Fahrenheit"})

	_, errList := runTurn(t, r, "hi")
	assert.Empty(t, errList)

	assert.Contains(t, m.Requests()[0].Instructions, "Preferred unit: Fahrenheit.")
}

func TestRunner_HistoryWindowBounded(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	root := agent.New("assistant", m)
	r, _ := newTestRunner(t, root, nil, func(o *Options) {
		o.MaxHistoryMessages = 3
	})

	for i := 0; i < 4; i++ {
		_, errList := runTurn(t, r, "ping")
		assert.Empty(t, errList)
	}

	reqs := m.Requests()
	last := reqs[len(reqs)-1]
	assert.LessOrEqual(t, len(last.Contents), 3)
}

func TestRunner_Cancel(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	root := agent.New("assistant", m)
	r, _ := newTestRunner(t, root, nil)

	err := r.Cancel("unknown-run")
	assert.Error(t, err)
}

// contextRecorderModel wraps a MockModel and remembers the context of the
// newest Generate call.
type contextRecorderModel struct {
	inner *model.MockModel

	mu   sync.Mutex
	last context.Context
}

func (m *contextRecorderModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	m.mu.Lock()
	m.last = ctx
	m.mu.Unlock()
	return m.inner.Generate(ctx, req)
}

func (m *contextRecorderModel) Info() model.Info { return m.inner.Info() }

func TestRunner_RunContextReleasedAfterCompletion(t *testing.T) {
	rec := &contextRecorderModel{inner: model.NewMockModel("test", "mock").AddText("done")}
	root := agent.New("assistant", rec)
	r, _ := newTestRunner(t, root, nil)

	_, errList := runTurn(t, r, "hi")
	assert.Empty(t, errList)

	rec.mu.Lock()
	runCtx := rec.last
	rec.mu.Unlock()

	// The per-run context must be cancelled once the turn finishes, not only
	// when Cancel is called explicitly.
	require.NotNil(t, runCtx)
	assert.ErrorIs(t, runCtx.Err(), context.Canceled)
}
