package guardrail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonXSong/adk-demos/core"
	"github.com/JasonXSong/adk-demos/logging"
	"github.com/JasonXSong/adk-demos/model"
)

func newTestCallbackContext(t *testing.T, userText string) (*core.CallbackContext, *core.RunContext) {
	t.Helper()
	key := core.SessionKey{AppName: "app", UserID: "user-1", SessionID: "sess-1"}
	rc := core.NewRunContext(
		context.Background(),
		key,
		"run-1",
		"weather_agent",
		core.NewUserText(userText),
		nil,
		nil,
		core.NewSession(key, nil),
		nil,
		logging.NoOpLogger{},
	)
	return core.NewCallbackContext(rc), rc
}

func requestWithUserText(text string) *model.Request {
	return &model.Request{Contents: []core.Content{core.NewUserText(text)}}
}

func TestBlockKeyword_Blocks(t *testing.T) {
	guard := BlockKeyword("BLOCK")

	for _, text := range []string{
		"BLOCK the request for weather in Tokyo",
		"please block this",
		"BlOcK it",
	} {
		cc, rc := newTestCallbackContext(t, text)

		verdict := guard(cc, requestWithUserText(text))
		require.NotNil(t, verdict, "expected block for %q", text)
		assert.Equal(t, "I cannot process this request because it contains the blocked keyword 'BLOCK'.", verdict.Text)

		flag, ok := rc.GetState(StateKeyKeywordBlocked)
		require.True(t, ok)
		assert.Equal(t, true, flag)
	}
}

func TestBlockKeyword_Allows(t *testing.T) {
	guard := BlockKeyword("BLOCK")
	cc, rc := newTestCallbackContext(t, "What is the weather in London?")

	verdict := guard(cc, requestWithUserText("What is the weather in London?"))
	assert.Nil(t, verdict)

	_, ok := rc.GetState(StateKeyKeywordBlocked)
	assert.False(t, ok, "flag must not be written on allow")
}

func TestBlockKeyword_FallsBackToUserContent(t *testing.T) {
	guard := BlockKeyword("BLOCK")
	cc, _ := newTestCallbackContext(t, "BLOCK everything")

	// Request without any user content, e.g. a freshly trimmed history.
	verdict := guard(cc, &model.Request{})
	require.NotNil(t, verdict)
}

func TestBlockCityTool_BlocksMatchingCity(t *testing.T) {
	guard := BlockCityTool("get_weather_stateful", "Paris")

	for _, city := range []string{"Paris", "paris", "PARIS"} {
		cc, rc := newTestCallbackContext(t, "How about Paris?")
		call := model.ToolCall{ID: "fc-1", Name: "get_weather_stateful"}

		verdict := guard(cc, call, map[string]any{"city": city})
		require.NotNil(t, verdict, "expected block for city %q", city)
		assert.Equal(t, "error", verdict.Result["status"])
		assert.Equal(t,
			"Policy restriction: Weather checks for 'Paris' are currently disabled by a tool guardrail.",
			verdict.Result["error_message"])

		flag, ok := rc.GetState(StateKeyToolBlocked)
		require.True(t, ok)
		assert.Equal(t, true, flag)
	}
}

func TestBlockCityTool_AllowsOtherCities(t *testing.T) {
	guard := BlockCityTool("get_weather_stateful", "Paris")
	cc, rc := newTestCallbackContext(t, "Weather in London?")

	verdict := guard(cc, model.ToolCall{Name: "get_weather_stateful"}, map[string]any{"city": "London"})
	assert.Nil(t, verdict)

	_, ok := rc.GetState(StateKeyToolBlocked)
	assert.False(t, ok)
}

func TestBlockCityTool_IgnoresOtherTools(t *testing.T) {
	guard := BlockCityTool("get_weather_stateful", "Paris")
	cc, _ := newTestCallbackContext(t, "hello")

	verdict := guard(cc, model.ToolCall{Name: "say_hello"}, map[string]any{"city": "Paris"})
	assert.Nil(t, verdict)
}

func TestBlockCityTool_MissingCityArgument(t *testing.T) {
	guard := BlockCityTool("get_weather_stateful", "Paris")
	cc, _ := newTestCallbackContext(t, "weather?")

	verdict := guard(cc, model.ToolCall{Name: "get_weather_stateful"}, map[string]any{})
	assert.Nil(t, verdict)
}

func TestModelChain_FirstVerdictWins(t *testing.T) {
	cc, _ := newTestCallbackContext(t, "hello")

	var calls []string
	chain := ModelChain{
		nil,
		func(cc *core.CallbackContext, req *model.Request) *ModelVerdict {
			calls = append(calls, "first")
			return nil
		},
		func(cc *core.CallbackContext, req *model.Request) *ModelVerdict {
			calls = append(calls, "second")
			return &ModelVerdict{Text: "blocked by second"}
		},
		func(cc *core.CallbackContext, req *model.Request) *ModelVerdict {
			calls = append(calls, "third")
			return &ModelVerdict{Text: "never reached"}
		},
	}

	verdict := chain.Evaluate(cc, &model.Request{})
	require.NotNil(t, verdict)
	assert.Equal(t, "blocked by second", verdict.Text)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestToolChain_AllowsWhenEmpty(t *testing.T) {
	cc, _ := newTestCallbackContext(t, "hello")

	assert.Nil(t, ToolChain{}.Evaluate(cc, model.ToolCall{}, nil))
	assert.Nil(t, ToolChain(nil).Evaluate(cc, model.ToolCall{}, nil))
	assert.Nil(t, ModelChain(nil).Evaluate(cc, &model.Request{}))
}
