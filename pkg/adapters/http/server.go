// Package http exposes the assistant over HTTP: the catalog and calculation API, the
// chat webhook, health and metrics endpoints.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/itpbot"
	"github.com/aretw0/itpbot/internal/logging"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/rates"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed openapi.yaml
var rawSpec []byte

// APIVersion is the version of the embedded OpenAPI document.
const APIVersion = "1.0.0"

// Bot is the part of itpbot.Bot served over HTTP.
type Bot interface {
	HandleMessage(ctx context.Context, key, text string) (*itpbot.Reply, error)
	Search(ctx context.Context, maker string, year *int) ([]domain.Vehicle, error)
	Vehicle(ctx context.Context, id string) (*domain.Vehicle, error)
	Calculate(ctx context.Context, vehicleID, region string, isResident bool) (*domain.TransferResult, error)
	Seed(ctx context.Context, vehicles []domain.Vehicle) ([]domain.Vehicle, error)
	Transfers(ctx context.Context, vehicleID string) ([]domain.TransferRecord, error)
	Rates() []rates.Region
}

// Server holds the handlers of the HTTP API.
type Server struct {
	Bot Bot

	doc      *openapi3.T
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	fixture  func() ([]domain.Vehicle, error)
	limiter  *senderLimiter
	secret   string
	version  string
	now      func() time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics exposes the gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithFixture sets the vehicles seeded when /api/vehicles/seed receives no body.
func WithFixture(fn func() ([]domain.Vehicle, error)) Option {
	return func(s *Server) {
		s.fixture = fn
	}
}

// WithWebhookLimit throttles /webhook to perSecond messages per sender, with a burst.
func WithWebhookLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.limiter = newSenderLimiter(perSecond, burst)
	}
}

// WithWebhookSecret requires inbound webhook requests to be signed with secret.
func WithWebhookSecret(secret string) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithClock overrides the clock used for webhook signatures and throttling.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewHandler creates the HTTP handler for the bot.
func NewHandler(bot Bot, opts ...Option) (http.Handler, error) {
	doc, err := loadSpec()
	if err != nil {
		return nil, err
	}

	s := &Server{
		Bot:     bot,
		doc:     doc,
		logger:  logging.NewNop(),
		version: "dev",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter != nil {
		s.limiter.now = s.now
	}

	r := chi.NewRouter()
	r.Use(cors)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.With(s.validate("/api/vehicles")).Get("/vehicles", s.searchVehicles)
		r.With(s.validate("/api/vehicles/seed")).Post("/vehicles/seed", s.seedVehicles)
		r.With(s.validate("/api/vehicles/{id}")).Get("/vehicles/{id}", s.getVehicle)
		r.With(s.validate("/api/transfers/calculate")).Post("/transfers/calculate", s.calculateTransfer)
		r.With(s.validate("/api/transfers")).Get("/transfers", s.listTransfers)
		r.With(s.validate("/api/rates")).Get("/rates", s.listRates)
	})

	r.Post("/webhook", s.receiveMessage)

	return otelhttp.NewHandler(r, "itpbot"), nil
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "itpbot-http",
		"version":     s.version,
		"api_version": APIVersion,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps domain errors to status codes and logs the unexpected ones.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrVehicleNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidVehicle), errors.Is(err, itpbot.ErrEmptyKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, itpbot.ErrReadOnlyCatalog):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
