package model

import (
	"encoding/json"
	"fmt"
)

// transferArgs is the argument payload of the reserved transfer function.
type transferArgs struct {
	Agent string `json:"agent"`
}

// ParseTransferTarget extracts the delegate agent name from the JSON
// arguments of a transfer_to_agent call.
func ParseTransferTarget(arguments string) (string, error) {
	var args transferArgs
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid %s arguments: %w", TransferToolName, err)
	}
	if args.Agent == "" {
		return "", fmt.Errorf("%s arguments missing 'agent'", TransferToolName)
	}
	return args.Agent, nil
}

// TransferArguments encodes the transfer argument payload for the named agent.
func TransferArguments(agent string) string {
	raw, _ := json.Marshal(transferArgs{Agent: agent})
	return string(raw)
}
