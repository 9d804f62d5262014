package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/itpbot"
	"github.com/aretw0/itpbot/internal/logging"
)

// DefaultKey is the session key used when Runner.Key is empty.
const DefaultKey = "console"

// Bot is the part of itpbot.Bot the runner drives.
type Bot interface {
	HandleMessage(ctx context.Context, key, text string) (*itpbot.Reply, error)
}

// Runner handles the conversation loop using provided IO.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on stdin/stdout.
	Handler IOHandler

	// Key identifies the session in the store.
	Key string

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	// Resume continues a stored conversation instead of starting over.
	Resume bool
}

var exitWords = map[string]bool{"exit": true, "quit": true, "salir": true}

// Run loops until EOF, an exit word or cancellation (including SIGINT/SIGTERM).
func (r *Runner) Run(ctx context.Context, bot Bot) error {
	handler := r.Handler
	if handler == nil {
		handler = NewTextHandler(nil, nil)
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	key := r.Key
	if key == "" {
		key = DefaultKey
	}

	signals := NewSignalManager(ctx)
	defer signals.Stop()
	ctx = signals.Context()

	if !r.Resume {
		// "reset" persists a fresh session and yields the welcome message.
		if err := r.exchange(ctx, bot, handler, key, "reset"); err != nil {
			return err
		}
	}

	for {
		text, err := handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				signals.CheckRace()
				return nil
			}
			if ctx.Err() != nil {
				logger.Debug("conversation interrupted", "session_key", key)
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		if exitWords[strings.ToLower(strings.TrimSpace(text))] {
			return nil
		}

		if err := r.exchange(ctx, bot, handler, key, text); err != nil {
			return err
		}
	}
}

func (r *Runner) exchange(ctx context.Context, bot Bot, handler IOHandler, key, text string) error {
	reply, err := bot.HandleMessage(ctx, key, text)
	if err != nil {
		return fmt.Errorf("message error: %w", err)
	}
	if err := handler.Output(ctx, reply); err != nil {
		return fmt.Errorf("output error: %w", err)
	}
	return nil
}
