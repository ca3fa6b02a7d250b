package guardrail

import (
	"fmt"
	"strings"

	"github.com/JasonXSong/adk-demos/core"
	"github.com/JasonXSong/adk-demos/model"
)

// StateKeyKeywordBlocked is set to true in session state when BlockKeyword
// vetoes a model call.
const StateKeyKeywordBlocked = "guardrail_block_keyword_triggered"

// BlockKeyword returns a pre-model guardrail that vetoes the model call when
// the newest user message contains keyword, compared case-insensitively. The
// substituted answer names the keyword, and the block is recorded in session
// state under StateKeyKeywordBlocked.
func BlockKeyword(keyword string) ModelFunc {
	upper := strings.ToUpper(keyword)
	return func(cc *core.CallbackContext, req *model.Request) *ModelVerdict {
		lastUserText := req.LastUserText()
		if lastUserText == "" {
			lastUserText = cc.UserContent().FirstText()
		}

		if !strings.Contains(strings.ToUpper(lastUserText), upper) {
			cc.Logger().Debug("guardrail.keyword.allowed", "agent", cc.AgentName(), "keyword", keyword)
			return nil
		}

		cc.Logger().Info("guardrail.keyword.blocked", "agent", cc.AgentName(), "keyword", keyword)
		cc.SetState(StateKeyKeywordBlocked, true)

		return &ModelVerdict{
			Text: fmt.Sprintf("I cannot process this request because it contains the blocked keyword '%s'.", keyword),
		}
	}
}
