// Package cli wires the configured adapters into a ready to use Bot for the commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/itpbot"
	"github.com/aretw0/itpbot/internal/adapters/file"
	"github.com/aretw0/itpbot/internal/config"
	"github.com/aretw0/itpbot/internal/seed"
	"github.com/aretw0/itpbot/pkg/adapters/memory"
	natsAdapter "github.com/aretw0/itpbot/pkg/adapters/nats"
	redisAdapter "github.com/aretw0/itpbot/pkg/adapters/redis"
	"github.com/aretw0/itpbot/pkg/adapters/sqlite"
	"github.com/aretw0/itpbot/pkg/adapters/webhook"
	"github.com/aretw0/itpbot/pkg/observability"
	"github.com/aretw0/itpbot/pkg/persistence/middleware"
	"github.com/aretw0/itpbot/pkg/ports"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Catalog is a catalog that can also be seeded.
type Catalog interface {
	ports.VehicleCatalog
	ports.CatalogSeeder
}

// App holds the Bot and the resources it was built from.
type App struct {
	Bot      *itpbot.Bot
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Catalog  Catalog
	Ledger   ports.TransferLedger
	// Store is the raw session store, without middleware.
	Store ports.SessionStore
	// NATS is set when the NATS channel is configured.
	NATS *nats.Conn

	closers []func() error
}

// Build opens every configured backend and creates the Bot.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	if err := app.openCatalog(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	store, locker, err := app.openSessions(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Store = store

	channel, err := app.openChannel()
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(app.Registry)

	opts := []itpbot.Option{
		itpbot.WithStore(store),
		itpbot.WithStoreMiddleware(StoreMiddleware(cfg)...),
		itpbot.WithLedger(app.Ledger),
		itpbot.WithLogger(logger),
		itpbot.WithLifecycleHooks(observability.Combine(metrics.Hooks(), observability.LoggingHooks(logger))),
		itpbot.WithMaxInputSize(cfg.Input.MaxSize),
	}
	if locker != nil {
		opts = append(opts, itpbot.WithLocker(locker))
	}
	if channel != nil {
		opts = append(opts, itpbot.WithChannel(channel))
	}

	app.Bot, err = itpbot.New(app.Catalog, opts...)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases the backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openCatalog(ctx context.Context) error {
	cfg := a.Config.Catalog
	switch cfg.Backend {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		a.Catalog = db.Catalog()
		a.Ledger = db.Ledger()
		defer a.logCatalogSize(ctx, db.Catalog())
	default:
		a.Catalog = memory.NewCatalog()
		a.Ledger = memory.NewLedger()
	}

	if cfg.Seed {
		vehicles, err := seed.Vehicles()
		if err != nil {
			return err
		}
		if _, err := a.Catalog.Seed(ctx, vehicles); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		a.Logger.Debug("catalog seeded", "backend", cfg.Backend, "vehicles", len(vehicles))
	}
	return nil
}

func (a *App) logCatalogSize(ctx context.Context, catalog *sqlite.Catalog) {
	n, err := catalog.Count(ctx)
	if err != nil {
		a.Logger.Warn("failed to count catalog vehicles", "path", a.Config.Catalog.Path, "err", err)
		return
	}
	a.Logger.Info("catalog opened", "path", a.Config.Catalog.Path, "vehicles", n)
}

// OpenStore opens the configured session store without middleware.
// The locker is nil unless the backend is redis.
func OpenStore(ctx context.Context, cfg *config.Config) (ports.SessionStore, ports.DistributedLocker, func() error, error) {
	switch cfg.Session.Backend {
	case "redis":
		store := redisAdapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redisAdapter.WithTTL(cfg.Session.TTL),
			redisAdapter.WithPrefix(cfg.Redis.Prefix),
		)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		return store, redisAdapter.NewLocker(store.Client(), cfg.Redis.Prefix), store.Close, nil
	case "file":
		return file.New(cfg.Session.Dir), nil, func() error { return nil }, nil
	default:
		return memory.NewStore(), nil, func() error { return nil }, nil
	}
}

func (a *App) openSessions(ctx context.Context) (ports.SessionStore, ports.DistributedLocker, error) {
	store, locker, closer, err := OpenStore(ctx, a.Config)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, closer)
	return store, locker, nil
}

// StoreMiddleware returns the session store decorators enabled by the configuration,
// outermost first.
func StoreMiddleware(cfg *config.Config) []middleware.Middleware {
	var mws []middleware.Middleware
	if cfg.Session.HashKeys {
		mws = append(mws, middleware.NewKeyHashingMiddleware([]byte(cfg.Session.HashSalt)))
	}
	if cfg.Session.EncryptionKey != "" {
		// Validate has already checked the key.
		key, _ := middleware.ParseHexKey(cfg.Session.EncryptionKey)
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return mws
}

// SessionStore opens the configured store wrapped in its middleware, for inspection commands.
func SessionStore(ctx context.Context, cfg *config.Config) (ports.SessionStore, func() error, error) {
	store, _, closer, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return middleware.Chain(store, StoreMiddleware(cfg)...), closer, nil
}

func (a *App) openChannel() (ports.Channel, error) {
	cfg := a.Config
	switch cfg.Channel.Kind {
	case "webhook":
		return webhook.NewChannel(cfg.Channel.WebhookURL, cfg.Channel.Token), nil
	case "nats":
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("itpbot"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.NATS.URL, err)
		}
		a.NATS = nc
		a.closers = append(a.closers, func() error {
			nc.Close()
			return nil
		})
		return natsAdapter.NewChannel(nc, cfg.NATS.OutboundSubject), nil
	}
	return nil, nil
}

// Listen feeds messages published on the inbound NATS subject to the Bot.
// It is a no-op unless the NATS channel is configured.
func (a *App) Listen(ctx context.Context) error {
	if a.NATS == nil {
		return nil
	}
	handler := func(ctx context.Context, from, text string) (string, error) {
		reply, err := a.Bot.HandleMessage(ctx, from, text)
		if err != nil {
			return "", err
		}
		return reply.Text, nil
	}
	listener := natsAdapter.NewListener(a.NATS, a.Config.NATS.InboundSubject, handler,
		natsAdapter.WithQueue(a.Config.NATS.Queue),
		natsAdapter.WithLogger(a.Logger),
	)
	_, err := listener.Start(ctx)
	return err
}
