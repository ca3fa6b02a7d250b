package guardrail

import (
	"fmt"
	"strings"

	"github.com/JasonXSong/adk-demos/core"
	"github.com/JasonXSong/adk-demos/model"
)

// StateKeyToolBlocked is set to true in session state when BlockCityTool
// vetoes a tool execution.
const StateKeyToolBlocked = "guardrail_tool_block_triggered"

// BlockCityTool returns a pre-tool guardrail that vetoes execution of the
// named tool when its "city" argument matches city, compared
// case-insensitively. Other tools and other cities pass through untouched.
// The substituted result mimics a tool error payload so the model folds the
// refusal into its final answer.
func BlockCityTool(toolName, city string) ToolFunc {
	blocked := strings.ToLower(city)
	return func(cc *core.CallbackContext, call model.ToolCall, args map[string]any) *ToolVerdict {
		if call.Name != toolName {
			return nil
		}

		cityArg, _ := args["city"].(string)
		if cityArg == "" || strings.ToLower(cityArg) != blocked {
			cc.Logger().Debug("guardrail.tool.allowed", "agent", cc.AgentName(), "tool", call.Name, "city", cityArg)
			return nil
		}

		cc.Logger().Info("guardrail.tool.blocked", "agent", cc.AgentName(), "tool", call.Name, "city", cityArg)
		cc.SetState(StateKeyToolBlocked, true)

		return &ToolVerdict{
			Result: map[string]any{
				"status":        "error",
				"error_message": fmt.Sprintf("Policy restriction: Weather checks for '%s' are currently disabled by a tool guardrail.", capitalize(cityArg)),
			},
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
