package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aretw0/itpbot"
	mcpAdapter "github.com/aretw0/itpbot/pkg/adapters/mcp"
	"github.com/aretw0/itpbot/pkg/adapters/memory"
	"github.com/aretw0/itpbot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*mcpAdapter.Server, []domain.Vehicle) {
	t.Helper()
	catalog := memory.NewCatalog()
	seeded, err := catalog.Seed(context.Background(), []domain.Vehicle{
		{Maker: "Toyota", Model: "Corolla", Year: 2020, FiscalPower: 11.5, FiscalValue: 18000, FuelType: domain.FuelHybrid},
		{Maker: "Toyota", Model: "RAV4", Year: 2020, FiscalPower: 14.2, FiscalValue: 27000, FuelType: domain.FuelHybrid},
		{Maker: "BMW", Model: "M5", Year: 2019, FiscalPower: 18, FiscalValue: 42000, FuelType: domain.FuelGasoline},
	})
	require.NoError(t, err)

	bot, err := itpbot.New(catalog)
	require.NoError(t, err)
	return mcpAdapter.NewServer(bot), seeded
}

var nextID int

// rpc sends one JSON-RPC request to the server and returns the decoded response.
func rpc(t *testing.T, s *mcpAdapter.Server, method string, params any) map[string]any {
	t.Helper()
	nextID++
	raw, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      nextID,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.MCPServer().HandleMessage(context.Background(), raw)
	out, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Nil(t, decoded["error"], "rpc error: %s", out)
	return decoded["result"].(map[string]any)
}

func callTool(t *testing.T, s *mcpAdapter.Server, name string, args map[string]any) map[string]any {
	t.Helper()
	return rpc(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
}

func structured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	require.NotEqual(t, true, result["isError"], "tool failed: %v", result["content"])
	sc, ok := result["structuredContent"].(map[string]any)
	require.True(t, ok, "missing structured content: %v", result)
	return sc
}

func TestListTools(t *testing.T) {
	s, _ := newServer(t)
	result := rpc(t, s, "tools/list", map[string]any{})

	var names []string
	for _, tool := range result["tools"].([]any) {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{"search_vehicles", "calculate_transfer_tax", "list_rates", "send_message"}, names)
}

func TestSearchVehicles(t *testing.T) {
	s, _ := newServer(t)

	out := structured(t, callTool(t, s, "search_vehicles", map[string]any{"maker": "toyota", "year": 2020}))
	assert.Len(t, out["vehicles"], 2)

	res := callTool(t, s, "search_vehicles", map[string]any{"maker": "  "})
	assert.Equal(t, true, res["isError"])
}

func TestCalculateTransferTax(t *testing.T) {
	s, seeded := newServer(t)

	out := structured(t, callTool(t, s, "calculate_transfer_tax", map[string]any{
		"vehicle_id": seeded[2].ID,
		"region":     "Andalucía",
	}))
	assert.Equal(t, "8.0%", out["rate"])
	assert.InDelta(t, 3360.0, out["tax"], 0.001)

	res := callTool(t, s, "calculate_transfer_tax", map[string]any{"vehicle_id": "missing"})
	assert.Equal(t, true, res["isError"])
}

func TestListRates(t *testing.T) {
	s, _ := newServer(t)
	out := structured(t, callTool(t, s, "list_rates", map[string]any{}))
	assert.Len(t, out["regions"], 21)
}

func TestSendMessage(t *testing.T) {
	s, _ := newServer(t)

	for i, tc := range []struct {
		text string
		step domain.Step
	}{
		{"toyota", domain.StepYear},
		{"2020", domain.StepModelSelection},
		{"2", domain.StepRegion},
	} {
		out := structured(t, callTool(t, s, "send_message", map[string]any{"session_key": "agent-1", "text": tc.text}))
		assert.Equal(t, string(tc.step), out["step"], fmt.Sprintf("message %d", i))
	}
}

func TestRatesResource(t *testing.T) {
	s, _ := newServer(t)
	result := rpc(t, s, "resources/read", map[string]any{"uri": mcpAdapter.RatesURI})

	contents := result["contents"].([]any)
	require.Len(t, contents, 1)
	text := contents[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "Ceuta")
	assert.Contains(t, text, "resident_discount")
}
