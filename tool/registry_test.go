package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonXSong/adk-demos/core"
	"github.com/JasonXSong/adk-demos/model"
)

func namedTool(name string) *FunctionTool {
	return NewFunctionTool(name, "tool "+name,
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) { return nil, nil })
}

func TestRegistry_LookupAndOrder(t *testing.T) {
	r := NewRegistry(namedTool("b_tool"), namedTool("a_tool"))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"b_tool", "a_tool"}, r.Names())

	got, ok := r.Lookup("a_tool")
	require.True(t, ok)
	assert.Equal(t, "a_tool", got.Name())

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry(namedTool("dup"), namedTool("dup"))
	})
}

func TestRegistry_RegisterRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(namedTool("")))
}

func TestRegistry_Definitions(t *testing.T) {
	r := NewRegistry(namedTool("first"), namedTool("second"))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "first", defs[0].Function.Name)
	assert.Equal(t, "second", defs[1].Function.Name)
	assert.Equal(t, "tool first", defs[0].Function.Description)
}

func TestTransferDefinition(t *testing.T) {
	def := TransferDefinition([]string{"greeting_agent", "farewell_agent"})

	assert.Equal(t, model.TransferToolName, def.Function.Name)
	props, ok := def.Function.Parameters["properties"].(map[string]any)
	require.True(t, ok)
	agent, ok := props["agent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"greeting_agent", "farewell_agent"}, agent["enum"])
}
