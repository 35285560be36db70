package websocket

import (
	"context"
	"encoding/json"
	"fmt"
)

// ActionRefresh asks for a fresh fetch of one resource
const ActionRefresh = "refresh"

// Command is an inbound frame from the UI, e.g. {"action":"refresh","resource":"incomes"}
type Command struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
}

// ParseCommand decodes and checks an inbound frame
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("invalid command: %w", err)
	}
	if cmd.Action != ActionRefresh {
		return cmd, fmt.Errorf("unknown action %q", cmd.Action)
	}
	if cmd.Resource == "" {
		return cmd, fmt.Errorf("resource is required")
	}
	return cmd, nil
}

// Backend is what a connection serves: the snapshots already held, and fresh
// fetches on request. The result of a refresh arrives as a broadcast snapshot.
type Backend interface {
	Snapshots() []Event
	Refresh(ctx context.Context, resource string) error
}
