package runner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JasonXSong/adk-demos/agent"
	"github.com/JasonXSong/adk-demos/core"
	"github.com/JasonXSong/adk-demos/internal/util"
	"github.com/JasonXSong/adk-demos/model"
	"github.com/JasonXSong/adk-demos/tool"
)

// noResponseText substitutes a final answer when the second model pass yields
// no usable text. One tool call per turn: a second tool request is flattened
// instead of dispatched.
const noResponseText = "The agent did not produce a final response."

// executeTurn drives one agent through a turn:
//
//	pre-model guard -> model call -> { final text | tool dispatch | delegation }
//
// Tool dispatch runs the pre-tool guard, executes (or substitutes) the tool,
// then makes a second model call whose output is always treated as final.
// Delegation recurses into the named sub-agent with an incremented depth.
// Fatal faults (unknown tool, unknown delegate, model failure, depth
// exhaustion) emit an escalation event and return an error; they are never
// retried.
func (r *Runner) executeTurn(rc *core.RunContext, ag *agent.Agent) error {
	if rc.Depth > r.maxDelegationDepth {
		return r.escalate(rc, ag.Name(), core.ErrorCodeDepthExceeded,
			fmt.Sprintf("delegation depth %d exceeds limit %d", rc.Depth, r.maxDelegationDepth))
	}

	if err := rc.RefreshSession(); err != nil {
		return err
	}

	req, err := r.buildRequest(rc, ag)
	if err != nil {
		return err
	}

	cc := core.NewCallbackContext(rc)
	if verdict := ag.BeforeModel().Evaluate(cc, &req); verdict != nil {
		r.logger.Info("turn.guardrail.model_blocked", "agent", ag.Name(), "run_id", rc.RunID)
		ev := core.NewFinalMessageEvent(rc.RunID, ag.Name(), verdict.Text)
		cc.InternalApplyActions(&ev)
		return r.emitAndWait(rc, ev)
	}

	resp, err := ag.Model().Generate(rc.Context, req)
	if err != nil {
		return r.escalate(rc, ag.Name(), core.ErrorCodeModelFailure, err.Error())
	}

	switch resp.Output.Kind {
	case model.OutputTransfer:
		return r.delegate(rc, ag, resp.Output.Target)
	case model.OutputToolCall:
		return r.dispatchTool(rc, ag, *resp.Output.ToolCall)
	default:
		return r.finish(rc, ag, resp.Output.Text)
	}
}

// delegate hands the turn to a named direct sub-agent. The handoff is
// exclusive: the parent emits no further events once the delegate takes over.
func (r *Runner) delegate(rc *core.RunContext, ag *agent.Agent, target string) error {
	sub := ag.FindSubAgent(target)
	if sub == nil {
		return r.escalate(rc, ag.Name(), core.ErrorCodeUnknownDelegate,
			fmt.Sprintf("agent %q has no delegate named %q", ag.Name(), target))
	}

	r.logger.Info("turn.delegate", "from", ag.Name(), "to", target, "depth", rc.Depth)

	handoff := core.NewEvent(rc.RunID, ag.Name())
	handoff.Actions.TransferToAgent = &target
	if err := r.emitAndWait(rc, handoff); err != nil {
		return err
	}

	return r.executeTurn(rc.NewChildContext(sub.Name()), sub)
}

// dispatchTool records the model's function call, runs the pre-tool guard,
// executes (or substitutes) the tool and folds the outcome back through a
// second, final model pass.
func (r *Runner) dispatchTool(rc *core.RunContext, ag *agent.Agent, call model.ToolCall) error {
	if call.ID == "" {
		call.ID = core.NewID()
	}

	impl, ok := ag.Tools().Lookup(call.Name)
	if !ok {
		return r.escalate(rc, ag.Name(), core.ErrorCodeUnknownTool,
			fmt.Sprintf("agent %q has no tool named %q", ag.Name(), call.Name))
	}

	callEv := core.NewFunctionCallEvent(rc.RunID, ag.Name(), call.ID, call.Name, call.Arguments)
	if err := r.emitAndWait(rc, callEv); err != nil {
		return err
	}

	args := map[string]any{}
	var argsErr error
	if call.Arguments != "" {
		argsErr = json.Unmarshal([]byte(call.Arguments), &args)
	}

	var respEv core.Event

	cc := core.NewCallbackContext(rc)
	if verdict := ag.BeforeTool().Evaluate(cc, call, args); verdict != nil {
		r.logger.Info("turn.guardrail.tool_blocked", "agent", ag.Name(), "tool", call.Name)
		respEv = core.NewFunctionResponseEvent(rc.RunID, ag.Name(), call.ID, call.Name, verdict.Result, nil)
		cc.InternalApplyActions(&respEv)
	} else {
		toolCtx := core.NewToolContext(rc, call.ID)

		var result any
		var callErr error
		if argsErr != nil {
			callErr = tool.NewToolError(call.Name, fmt.Sprintf("invalid arguments: %v", argsErr), tool.CodeValidationError)
		} else {
			result, callErr = r.callTool(toolCtx, impl, args)
		}

		respEv = core.NewFunctionResponseEvent(rc.RunID, ag.Name(), call.ID, call.Name, result, callErr)
		toolCtx.InternalApplyActions(&respEv)
	}

	if err := r.emitAndWait(rc, respEv); err != nil {
		return err
	}

	// Second pass: the model folds the tool outcome into the final answer.
	if err := rc.RefreshSession(); err != nil {
		return err
	}

	req, err := r.buildRequest(rc, ag)
	if err != nil {
		return err
	}

	resp, err := ag.Model().Generate(rc.Context, req)
	if err != nil {
		return r.escalate(rc, ag.Name(), core.ErrorCodeModelFailure, err.Error())
	}

	return r.finish(rc, ag, finalText(resp.Output))
}

// callTool executes a tool, converting panics into execution errors so a
// misbehaving tool folds into the conversation instead of killing the run.
func (r *Runner) callTool(toolCtx *core.ToolContext, impl tool.Tool, args map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("turn.tool.panic", "tool", impl.Name(), "panic", fmt.Sprintf("%v", rec))
			err = tool.NewToolError(impl.Name(), fmt.Sprintf("panic: %v", rec), tool.CodeExecutionError)
		}
	}()

	return impl.Call(toolCtx, args)
}

// finish emits the turn's single final event, recording the agent's answer
// under its output key when configured.
func (r *Runner) finish(rc *core.RunContext, ag *agent.Agent, text string) error {
	ev := core.NewFinalMessageEvent(rc.RunID, ag.Name(), text)
	if key := ag.OutputKey(); key != "" {
		ev.Actions.StateDelta = map[string]any{key: text}
	}
	return r.emitAndWait(rc, ev)
}

// escalate emits the terminal escalation event for a fatal fault and returns
// the fault as an error for the errors channel.
func (r *Runner) escalate(rc *core.RunContext, author, code, msg string) error {
	r.logger.Error("turn.escalate", "agent", author, "code", code, "error", msg)

	ev := core.NewEscalationEvent(rc.RunID, author, code, msg)
	if err := r.emitAndWait(rc, ev); err != nil {
		return err
	}

	return fmt.Errorf("%s: %s", code, msg)
}

// emitAndWait emits an event and blocks until the runner has persisted it, so
// a following session refresh observes its effects.
func (r *Runner) emitAndWait(rc *core.RunContext, ev core.Event) error {
	if err := rc.EmitEvent(ev); err != nil {
		return err
	}
	return rc.WaitForResume()
}

// buildRequest assembles the model request for the active agent: the rendered
// instruction (optionally extended with the delegate roster), the bounded
// conversation history and the tool definitions.
func (r *Runner) buildRequest(rc *core.RunContext, ag *agent.Agent) (model.Request, error) {
	instructions, err := ag.Instruction().Resolve(rc)
	if err != nil {
		return model.Request{}, fmt.Errorf("failed to resolve instruction: %w", err)
	}

	rendered, err := util.RenderTemplate(instructions, rc.StateSnapshot())
	if err != nil {
		return model.Request{}, fmt.Errorf("failed to render instruction: %w", err)
	}

	if subs := ag.SubAgents(); len(subs) > 0 {
		var b strings.Builder
		b.WriteString(rendered)
		b.WriteString("\n\nYou can hand the conversation to one of these agents by calling ")
		b.WriteString(model.TransferToolName)
		b.WriteString(":\n")
		for _, sub := range subs {
			fmt.Fprintf(&b, "- %s: %s\n", sub.Name(), sub.Description())
		}
		rendered = b.String()
	}

	req := model.Request{Instructions: rendered}

	events := rc.Session.GetConversationHistory()
	if len(events) > r.maxHistoryMessages {
		events = events[len(events)-r.maxHistoryMessages:]
	}
	for _, ev := range events {
		if ev.Content != nil && len(ev.Content.Parts) > 0 {
			req.Contents = append(req.Contents, *ev.Content)
		}
	}

	req.Tools = ag.Tools().Definitions()
	if len(ag.SubAgents()) > 0 {
		req.Tools = append(req.Tools, tool.TransferDefinition(ag.SubAgentNames()))
	}

	return req, nil
}

// finalText flattens a second-pass output into final text. A renewed tool
// call attempt is not dispatched; its text (if any) or a fixed fallback is
// used instead.
func finalText(out model.Output) string {
	if out.Kind == model.OutputText && out.Text != "" {
		return out.Text
	}
	if out.Text != "" {
		return out.Text
	}
	return noResponseText
}
