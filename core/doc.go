// Package core defines the foundational types shared across the framework:
// events and their actions, role-based content parts, sessions and the
// SessionStore contract, plus the execution contexts (RunContext, ToolContext,
// CallbackContext) threaded through a turn.
package core
