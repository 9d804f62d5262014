package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/itpbot/internal/cli"
	"github.com/aretw0/itpbot/internal/config"
	"github.com/aretw0/itpbot/internal/logging"
	"github.com/aretw0/itpbot/internal/seed"
	"github.com/aretw0/itpbot/pkg/domain"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, cfg *config.Config) *cli.App {
	t.Helper()
	require.NoError(t, cfg.Validate())
	app, err := cli.Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func converse(t *testing.T, app *cli.App, key string, texts ...string) {
	t.Helper()
	for _, text := range texts {
		_, err := app.Bot.HandleMessage(context.Background(), key, text)
		require.NoError(t, err)
	}
}

func TestBuild_MemoryDefaults(t *testing.T) {
	app := build(t, config.Default())

	cars, err := app.Bot.Search(context.Background(), "toyota", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, cars, "the fixture is seeded")

	converse(t, app, "+34600000001", "tesla", "saltar")
	sess, err := app.Store.Load(context.Background(), "+34600000001")
	require.NoError(t, err)
	assert.Equal(t, domain.StepRegion, sess.Step())

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "itpbot_transitions_total")
	assert.Contains(t, names, "go_goroutines")
}

func TestBuild_SQLiteCatalogAndLedger(t *testing.T) {
	cfg := config.Default()
	cfg.Catalog.Backend = "sqlite"
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "itp.db")
	app := build(t, cfg)

	converse(t, app, "+34600000001", "tesla", "saltar", "Madrid")

	records, err := app.Ledger.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Madrid", records[0].Region)
	require.NoError(t, app.Close())

	// The fixture has stable ids: reseeding on the next start does not duplicate it.
	var logs bytes.Buffer
	again, err := cli.Build(context.Background(), cfg, logging.NewJSONTo(&logs, slog.LevelInfo))
	require.NoError(t, err)
	defer again.Close()
	cars, err := again.Bot.Search(context.Background(), "tesla", nil)
	require.NoError(t, err)
	assert.Len(t, cars, 1)

	fixture, err := seed.Vehicles()
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"msg":"catalog opened"`)
	assert.Contains(t, logs.String(), fmt.Sprintf(`"vehicles":%d`, len(fixture)))
}

func TestBuild_RedisSessionsWithMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Session.Backend = "redis"
	cfg.Redis.Addr = mr.Addr()
	cfg.Session.HashKeys = true
	cfg.Session.HashSalt = "pepper"
	cfg.Session.EncryptionKey = strings.Repeat("0f", 32)
	app := build(t, cfg)

	converse(t, app, "+34600000001", "toyota")

	keys := mr.Keys()
	for _, k := range keys {
		assert.NotContains(t, k, "+34600000001", "session keys are hashed")
	}

	store, closer, err := cli.SessionStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closer()
	sess, err := store.Load(context.Background(), "+34600000001")
	require.NoError(t, err)
	assert.Equal(t, domain.AwaitingYear{Maker: "toyota"}, sess.Stage)
}

func TestBuild_RedisUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Backend = "redis"
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err := cli.Build(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestBuild_FileSessions(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Backend = "file"
	cfg.Session.Dir = t.TempDir()
	app := build(t, cfg)

	converse(t, app, "console", "seat")
	keys, err := app.Store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"console"}, keys)
}

func TestBuild_WebhookChannel(t *testing.T) {
	var mu sync.Mutex
	var got []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		got = append(got, body)
		mu.Unlock()
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Channel.Kind = "webhook"
	cfg.Channel.WebhookURL = srv.URL
	app := build(t, cfg)

	converse(t, app, "+34600000009", "ayuda")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "+34600000009", got[0]["to"])
	assert.Contains(t, got[0]["text"], "Comandos")
}

func TestBuild_NATSChannelAndListener(t *testing.T) {
	ns, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	require.NoError(t, err)
	ns.Start()
	defer ns.Shutdown()
	require.True(t, ns.ReadyForConnections(3*time.Second))

	cfg := config.Default()
	cfg.Channel.Kind = "nats"
	cfg.NATS.URL = ns.ClientURL()
	app := build(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Listen(ctx))

	client, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer client.Close()

	outbound := make(chan *nats.Msg, 4)
	sub, err := client.ChanSubscribe(cfg.NATS.OutboundSubject, outbound)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, client.Flush())

	payload, _ := json.Marshal(map[string]string{"from": "+34600000005", "text": "toyota"})
	reply, err := client.Request(cfg.NATS.InboundSubject, payload, 3*time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(reply.Data), "año")

	select {
	case msg := <-outbound:
		assert.Contains(t, string(msg.Data), "+34600000005")
	case <-time.After(3 * time.Second):
		t.Fatal("no outbound message")
	}
}
