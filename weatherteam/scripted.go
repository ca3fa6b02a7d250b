package weatherteam

import (
	"context"
	"fmt"
	"strings"

	"github.com/JasonXSong/adk-demos/core"
	"github.com/JasonXSong/adk-demos/model"
)

// ScriptedRole selects the routing behavior of a ScriptedModel.
type ScriptedRole int

const (
	// RoleRoot routes weather questions to the stateful tool and hands
	// greetings and farewells to the matching delegate.
	RoleRoot ScriptedRole = iota
	// RoleGreeting always calls the say_hello tool first.
	RoleGreeting
	// RoleFarewell always calls the say_goodbye tool first.
	RoleFarewell
)

// scriptedCities maps the substrings the root model recognizes in a user
// message to the city argument it passes to the weather tool. Paris is
// included so the tool guardrail has something to refuse.
var scriptedCities = map[string]string{
	"new york": "New York",
	"london":   "London",
	"tokyo":    "Tokyo",
	"paris":    "Paris",
}

// ScriptedModel is a deterministic offline model for demos and tests. It
// pattern-matches the newest user message to decide between a tool call, a
// delegation or plain text, and on the pass after a tool response it folds
// the tool outcome into a final answer. No network, no API keys.
type ScriptedModel struct {
	role ScriptedRole
	name string
}

// NewScriptedModel builds a scripted model for the given role.
func NewScriptedModel(role ScriptedRole) *ScriptedModel {
	name := "scripted-root"
	switch role {
	case RoleGreeting:
		name = "scripted-greeting"
	case RoleFarewell:
		name = "scripted-farewell"
	}
	return &ScriptedModel{role: role, name: name}
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if fr, ok := lastFunctionResponse(req.Contents); ok {
		return m.respond(model.NewTextOutput(summarizeToolResult(fr))), nil
	}

	switch m.role {
	case RoleGreeting:
		return m.respond(model.NewToolCallOutput("", ToolNameSayHello, greetingArgs(req.LastUserText()))), nil
	case RoleFarewell:
		return m.respond(model.NewToolCallOutput("", ToolNameSayGoodbye, "{}")), nil
	default:
		return m.respond(m.routeRoot(req.LastUserText())), nil
	}
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "scripted", SupportsTools: true}
}

// routeRoot decides the root agent's move for a fresh user message.
func (m *ScriptedModel) routeRoot(userText string) model.Output {
	lower := strings.ToLower(userText)

	switch {
	case containsAny(lower, "hello", "hi ", "hi!", "hey"):
		return model.NewTransferOutput(GreetingAgentName)
	case containsAny(lower, "bye", "goodbye", "see you", "thanks, bye"):
		return model.NewTransferOutput(FarewellAgentName)
	}

	for needle, city := range scriptedCities {
		if strings.Contains(lower, needle) {
			args := fmt.Sprintf(`{"city": %q}`, city)
			return model.NewToolCallOutput("", ToolNameGetWeatherStateful, args)
		}
	}

	return model.NewTextOutput("I can help with weather lookups, greetings and farewells. Which city are you interested in?")
}

func (m *ScriptedModel) respond(out model.Output) *model.Response {
	finish := "stop"
	if out.Kind == model.OutputToolCall {
		finish = "tool_calls"
	}
	return &model.Response{ID: core.NewID(), Output: out, FinishReason: finish}
}

// greetingArgs extracts a name from messages like "hello, I'm Alice" so the
// greeting tool can address the user.
func greetingArgs(userText string) string {
	lower := strings.ToLower(userText)
	for _, marker := range []string{"i'm ", "i am ", "my name is ", "this is "} {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(userText[idx+len(marker):])
		if name := strings.Trim(strings.Fields(rest+" ")[0], ".,!?"); name != "" {
			return fmt.Sprintf(`{"name": %q}`, name)
		}
	}
	return "{}"
}

// lastFunctionResponse reports the newest function response in the
// conversation, but only when no user message follows it. A newer user
// message starts a fresh turn and must be routed, not summarized.
func lastFunctionResponse(contents []core.Content) (core.FunctionResponse, bool) {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role == "user" && contents[i].FirstText() != "" {
			return core.FunctionResponse{}, false
		}
		for _, p := range contents[i].Parts {
			if frp, ok := p.(core.FunctionResponsePart); ok {
				return frp.FunctionResponse, true
			}
		}
	}
	return core.FunctionResponse{}, false
}

// summarizeToolResult turns a tool outcome into final user-facing text the
// way a live model would relay it.
func summarizeToolResult(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return fmt.Sprintf("Sorry, the %s tool failed: %s", fr.Name, fr.Error)
	}

	switch resp := fr.Response.(type) {
	case string:
		return resp
	case map[string]any:
		if status, _ := resp["status"].(string); status == "error" {
			if msg, _ := resp["error_message"].(string); msg != "" {
				return msg
			}
			return "Sorry, I could not complete that request."
		}
		if report, _ := resp["report"].(string); report != "" {
			return report
		}
	}

	return fmt.Sprintf("The %s tool finished.", fr.Name)
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
