package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/itpbot"
	"github.com/aretw0/itpbot/internal/cli"
	"github.com/aretw0/itpbot/internal/seed"
	httpAdapter "github.com/aretw0/itpbot/pkg/adapters/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the HTTP API and the messaging webhook.
When the NATS channel is configured it also consumes the inbound subject.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		handler, err := httpAdapter.NewHandler(app.Bot,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetrics(app.Registry),
			httpAdapter.WithFixture(seed.Vehicles),
			httpAdapter.WithWebhookLimit(cfg.Webhook.Rate, cfg.Webhook.Burst),
			httpAdapter.WithWebhookSecret(cfg.Webhook.Secret),
			httpAdapter.WithVersion(itpbot.Version),
		)
		if err != nil {
			return err
		}

		if err := app.Listen(ctx); err != nil {
			return fmt.Errorf("failed to start nats listener: %w", err)
		}

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("itpbot server listening", "addr", srv.Addr,
				"sessions", cfg.Session.Backend, "catalog", cfg.Catalog.Backend, "channel", cfg.Channel.Kind)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("itpbot server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides http.addr)")
}
