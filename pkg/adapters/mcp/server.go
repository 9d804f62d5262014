// Package mcp exposes the assistant as a Model Context Protocol server so agents can search
// the catalog, compute the tax and drive conversations.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/itpbot"
	"github.com/aretw0/itpbot/internal/logging"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/aretw0/itpbot/pkg/rates"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RatesURI is the resource holding the rate table.
const RatesURI = "itp://rates"

// Bot defines the interface required by the MCP server.
type Bot interface {
	HandleMessage(ctx context.Context, key, text string) (*itpbot.Reply, error)
	Search(ctx context.Context, maker string, year *int) ([]domain.Vehicle, error)
	Calculate(ctx context.Context, vehicleID, region string, isResident bool) (*domain.TransferResult, error)
	Rates() []rates.Region
}

// SearchArgs are the arguments of search_vehicles.
type SearchArgs struct {
	Maker string `json:"maker"`
	Year  *int   `json:"year,omitempty"`
}

// SearchResponse lists the matching vehicles.
type SearchResponse struct {
	Vehicles []domain.Vehicle `json:"vehicles" jsonschema_description:"Matching vehicles in catalog order"`
}

// CalculateArgs are the arguments of calculate_transfer_tax.
type CalculateArgs struct {
	VehicleID  string `json:"vehicle_id"`
	Region     string `json:"region,omitempty"`
	IsResident bool   `json:"is_resident,omitempty"`
}

// MessageArgs are the arguments of send_message.
type MessageArgs struct {
	SessionKey string `json:"session_key"`
	Text       string `json:"text"`
}

// RateEntry is one row of the rate table.
type RateEntry struct {
	Name               string `json:"name"`
	Rate               string `json:"rate"`
	HighPowerSurcharge bool   `json:"high_power_surcharge,omitempty"`
	ResidentDiscount   bool   `json:"resident_discount,omitempty"`
}

// RatesResponse is the rate table.
type RatesResponse struct {
	Regions []RateEntry `json:"regions"`
}

// Server wraps the Bot and exposes it as an MCP Server.
type Server struct {
	bot       Bot
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(bot Bot, opts ...Option) *Server {
	s := &Server{
		bot:       bot,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("itpbot-mcp", strings.TrimSpace(itpbot.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	searchTool := mcp.NewTool("search_vehicles",
		mcp.WithDescription("Search the vehicle catalog by maker, optionally restricted to one year."),
		mcp.WithString("maker", mcp.Required(), mcp.Description("Vehicle maker, e.g. Toyota")),
		mcp.WithNumber("year", mcp.Description("Model year (optional)")),
		mcp.WithOutputSchema[SearchResponse](),
	)
	s.mcpServer.AddTool(searchTool, mcp.NewStructuredToolHandler(s.handleSearch))

	calcTool := mcp.NewTool("calculate_transfer_tax",
		mcp.WithDescription("Compute the ITP due for transferring a catalog vehicle in a Spanish region."),
		mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Catalog id of the vehicle")),
		mcp.WithString("region", mcp.Description("Autonomous community (default Madrid)")),
		mcp.WithBoolean("is_resident", mcp.Description("Buyer resides in Ceuta or Melilla")),
		mcp.WithOutputSchema[domain.TransferResult](),
	)
	s.mcpServer.AddTool(calcTool, mcp.NewStructuredToolHandler(s.handleCalculate))

	s.mcpServer.AddTool(mcp.NewTool("list_rates",
		mcp.WithDescription("List the regional ITP rates with their special rules."),
		mcp.WithOutputSchema[RatesResponse](),
	), mcp.NewStructuredToolHandler(func(ctx context.Context, request mcp.CallToolRequest, _ struct{}) (RatesResponse, error) {
		return s.rateTable(), nil
	}))

	msgTool := mcp.NewTool("send_message",
		mcp.WithDescription("Send a chat message to the assistant as the given session and get its reply."),
		mcp.WithString("session_key", mcp.Required(), mcp.Description("Conversation key, e.g. a phone number")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
		mcp.WithOutputSchema[itpbot.Reply](),
	)
	s.mcpServer.AddTool(msgTool, mcp.NewStructuredToolHandler(s.handleMessage))
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest, args SearchArgs) (SearchResponse, error) {
	if strings.TrimSpace(args.Maker) == "" {
		return SearchResponse{}, fmt.Errorf("maker is required")
	}
	cars, err := s.bot.Search(ctx, args.Maker, args.Year)
	if err != nil {
		s.logger.Error("MCP search failed", "maker", args.Maker, "err", err)
		return SearchResponse{}, fmt.Errorf("search failed: %w", err)
	}
	return SearchResponse{Vehicles: cars}, nil
}

func (s *Server) handleCalculate(ctx context.Context, request mcp.CallToolRequest, args CalculateArgs) (domain.TransferResult, error) {
	res, err := s.bot.Calculate(ctx, args.VehicleID, args.Region, args.IsResident)
	if err != nil {
		return domain.TransferResult{}, fmt.Errorf("calculation failed: %w", err)
	}
	return *res, nil
}

func (s *Server) handleMessage(ctx context.Context, request mcp.CallToolRequest, args MessageArgs) (itpbot.Reply, error) {
	reply, err := s.bot.HandleMessage(ctx, args.SessionKey, args.Text)
	if err != nil {
		s.logger.Error("MCP message failed", "session_key", args.SessionKey, "err", err)
		return itpbot.Reply{}, fmt.Errorf("message failed: %w", err)
	}
	return *reply, nil
}

func (s *Server) rateTable() RatesResponse {
	regions := s.bot.Rates()
	out := RatesResponse{Regions: make([]RateEntry, 0, len(regions))}
	for _, r := range regions {
		out.Regions = append(out.Regions, RateEntry{
			Name:               r.Name,
			Rate:               rates.FormatRate(r.BaseRate),
			HighPowerSurcharge: r.HighPowerSurcharge,
			ResidentDiscount:   r.ResidentDiscount,
		})
	}
	return out
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(RatesURI, "ITP rates by region",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.rateTable())
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      RatesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
