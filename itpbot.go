package itpbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/itpbot/internal/logging"
	"github.com/aretw0/itpbot/pkg/adapters/memory"
	"github.com/aretw0/itpbot/pkg/dialogue"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/persistence/middleware"
	"github.com/aretw0/itpbot/pkg/ports"
	"github.com/aretw0/itpbot/pkg/rates"
	"github.com/aretw0/itpbot/pkg/session"
	"github.com/aretw0/itpbot/pkg/tax"
)

// ErrEmptyKey is returned when a message arrives without a sender.
var ErrEmptyKey = errors.New("empty session key")

// ErrReadOnlyCatalog is returned by Seed when the catalog cannot be written.
var ErrReadOnlyCatalog = errors.New("catalog does not support seeding")

// Bot is the high-level entry point: it owns the dialogue, the session manager and the
// calculation service, and delivers replies through an optional channel.
type Bot struct {
	catalog    ports.VehicleCatalog
	calculator *tax.Service
	machine    *dialogue.Machine
	sessions   *session.Manager

	store       ports.SessionStore
	middlewares []middleware.Middleware
	locker      ports.DistributedLocker
	channel     ports.Channel
	ledger      ports.TransferLedger
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	now         func() time.Time
	maxInput    int
}

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithStore sets the session store. Defaults to an in-memory store.
func WithStore(store ports.SessionStore) Option {
	return func(b *Bot) {
		b.store = store
	}
}

// WithStoreMiddleware decorates the session store. The first middleware is the outermost.
func WithStoreMiddleware(mws ...middleware.Middleware) Option {
	return func(b *Bot) {
		b.middlewares = append(b.middlewares, mws...)
	}
}

// WithLocker enables distributed locking of sessions across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(b *Bot) {
		b.locker = locker
	}
}

// WithChannel delivers every reply through the channel after the session is persisted.
func WithChannel(ch ports.Channel) Option {
	return func(b *Bot) {
		b.channel = ch
	}
}

// WithLedger records every calculation.
func WithLedger(ledger ports.TransferLedger) Option {
	return func(b *Bot) {
		b.ledger = ledger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithMaxInputSize limits the accepted message size in bytes.
func WithMaxInputSize(n int) Option {
	return func(b *Bot) {
		b.maxInput = n
	}
}

// WithClock overrides the clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) {
		b.now = now
	}
}

// New creates a Bot over a vehicle catalog.
func New(catalog ports.VehicleCatalog, opts ...Option) (*Bot, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}

	b := &Bot{
		catalog:  catalog,
		logger:   logging.NewNop(),
		now:      time.Now,
		maxInput: dialogue.DefaultMaxInputSize,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.store == nil {
		b.store = memory.NewStore()
	}
	store := middleware.Chain(b.store, b.middlewares...)

	taxOpts := []tax.Option{tax.WithLogger(b.logger), tax.WithClock(b.now)}
	if b.ledger != nil {
		taxOpts = append(taxOpts, tax.WithLedger(b.ledger))
	}
	b.calculator = tax.NewService(catalog, taxOpts...)

	b.machine = dialogue.NewMachine(catalog, b.calculator,
		dialogue.WithLogger(b.logger),
		dialogue.WithHooks(b.hooks),
		dialogue.WithClock(b.now),
		dialogue.WithMaxInputSize(b.maxInput),
	)

	sessOpts := []session.Option{session.WithLogger(b.logger)}
	if b.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(b.locker))
	}
	b.sessions = session.NewManager(store, sessOpts...)

	return b, nil
}

// Reply is what the Bot answered to one message.
type Reply struct {
	Text string `json:"reply"`
	// Step is the step the conversation is waiting on after the message.
	Step domain.Step `json:"step"`
	// Ended is true when the message completed a calculation and the session was deleted.
	Ended   bool                   `json:"ended,omitempty"`
	Command dialogue.Command       `json:"command,omitempty"`
	Result  *domain.TransferResult `json:"result,omitempty"`
}

// HandleMessage runs one inbound message through the dialogue for the session key.
// Dialogue failures become replies; an error is returned only when the session store fails.
func (b *Bot) HandleMessage(ctx context.Context, key, text string) (*Reply, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}

	var reply *Reply
	err := b.sessions.WithLock(ctx, key, func(ctx context.Context) error {
		store := b.sessions.Store()

		current, err := store.Load(ctx, key)
		if err != nil {
			if !errors.Is(err, domain.ErrSessionNotFound) {
				return fmt.Errorf("failed to load session: %w", err)
			}
			current = nil
		}

		out := b.machine.Transition(ctx, key, current, text)

		step := current.Step()
		switch out.Effect {
		case dialogue.Save:
			if err := store.Save(ctx, key, out.Session); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}
			step = out.Session.Step()
		case dialogue.Delete:
			if err := store.Delete(ctx, key); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
			step = domain.StepWelcome
		}

		reply = &Reply{
			Text:    out.Reply,
			Step:    step,
			Ended:   out.Effect == dialogue.Delete,
			Command: out.Command,
			Result:  out.Result,
		}
		return nil
	})
	if err != nil {
		b.logger.Error("message not handled", "session_key", key, "err", err)
		return nil, err
	}

	if b.channel != nil {
		if err := b.channel.Send(ctx, key, reply.Text); err != nil {
			b.logger.Warn("reply delivery failed", "session_key", key, "err", err)
		}
	}

	return reply, nil
}

// Search returns the catalog vehicles of a maker, optionally restricted to a year.
func (b *Bot) Search(ctx context.Context, maker string, year *int) ([]domain.Vehicle, error) {
	return b.catalog.Search(ctx, maker, year)
}

// Vehicle returns one catalog vehicle.
func (b *Bot) Vehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	return b.catalog.Get(ctx, id)
}

// Calculate computes the transfer tax outside of any conversation.
func (b *Bot) Calculate(ctx context.Context, vehicleID, region string, isResident bool) (*domain.TransferResult, error) {
	return b.calculator.Calculate(ctx, vehicleID, region, isResident)
}

// Seed loads vehicles into the catalog when it supports writes.
func (b *Bot) Seed(ctx context.Context, vehicles []domain.Vehicle) ([]domain.Vehicle, error) {
	seeder, ok := b.catalog.(ports.CatalogSeeder)
	if !ok {
		return nil, ErrReadOnlyCatalog
	}
	return seeder.Seed(ctx, vehicles)
}

// Transfers lists the recorded calculations of a vehicle. An empty id lists all of them.
// Without a ledger the list is empty.
func (b *Bot) Transfers(ctx context.Context, vehicleID string) ([]domain.TransferRecord, error) {
	if b.ledger == nil {
		return []domain.TransferRecord{}, nil
	}
	return b.ledger.List(ctx, vehicleID)
}

// Rates returns the regional rate table in display order.
func (b *Bot) Rates() []rates.Region {
	return rates.Regions()
}

// Sessions exposes the session manager for inspection tools.
func (b *Bot) Sessions() *session.Manager {
	return b.sessions
}
