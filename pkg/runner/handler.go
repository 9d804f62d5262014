package runner

import (
	"context"

	"github.com/aretw0/itpbot"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents a reply to the user.
	Output(ctx context.Context, reply *itpbot.Reply) error

	// Input reads the next message. io.EOF ends the conversation.
	Input(ctx context.Context) (string, error)
}

// ContentRenderer transforms reply text before it is printed (markdown to ANSI, for example).
type ContentRenderer func(string) (string, error)
