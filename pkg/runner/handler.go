package runner

import (
	"context"

	"github.com/aretw0/kiosk/pkg/domain"
)

// Action names a user command understood by the Runner.
type Action string

const (
	// ActionText is free text. The Runner resolves it against the current node.
	ActionText       Action = "text"
	ActionSelect     Action = "select"
	ActionSuggestion Action = "suggestion"
	ActionInput      Action = "input"
	ActionConfirm    Action = "confirm"
	ActionAdvance    Action = "advance"
	ActionRestart    Action = "restart"
	ActionQuit       Action = "quit"
)

// Command is one user command read by an IOHandler.
type Command struct {
	Action Action `json:"action"`
	Value  string `json:"value,omitempty"`
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Output presents the view. fresh holds the history records added since
	// the previous call.
	Output(ctx context.Context, view *domain.View, fresh []domain.Record) error

	// Input reads the next command.
	Input(ctx context.Context) (Command, error)

	// SystemOutput presents a meta-message (notices, errors).
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)
