package tool

import "github.com/JasonXSong/adk-demos/model"

// TransferDefinition is the declaration of the reserved delegation function.
// It is injected into a model request whenever the active agent has delegate
// sub-agents; the model surfaces a delegation decision by calling it. The call
// never reaches a Tool implementation: adapters fold it into a transfer output
// before the orchestrator sees it.
func TransferDefinition(agentNames []string) model.ToolDefinition {
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        model.TransferToolName,
			Description: "Hand the conversation to another agent by name. Use when another agent is better suited.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent": map[string]any{
						"type":        "string",
						"description": "Target agent name",
						"enum":        agentNames,
					},
				},
				"required": []string{"agent"},
			},
		},
	}
}
