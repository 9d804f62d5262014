package nats_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	adapter "github.com/aretw0/itpbot/pkg/adapters/nats"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	require.NoError(t, err)
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func TestChannel_Send(t *testing.T) {
	nc := startTestNATS(t)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("test.out", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	channel := adapter.NewChannel(nc, "test.out")
	require.NoError(t, channel.Send(context.Background(), "+34600000001", "¿De qué año es el vehículo?"))

	select {
	case msg := <-ch:
		var out adapter.OutboundMessage
		require.NoError(t, json.Unmarshal(msg.Data, &out))
		assert.Equal(t, "+34600000001", out.To)
		assert.Equal(t, "¿De qué año es el vehículo?", out.Text)
		assert.False(t, out.SentAt.IsZero())
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for outbound message")
	}
}

func TestListener_RequestReply(t *testing.T) {
	nc := startTestNATS(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := adapter.NewListener(nc, "test.in", func(_ context.Context, from, text string) (string, error) {
		return "eco: " + strings.ToUpper(text), nil
	}, adapter.WithQueue("bots"))
	_, err := listener.Start(ctx)
	require.NoError(t, err)

	data, _ := json.Marshal(adapter.InboundMessage{From: "+34600000002", Text: "toyota"})
	resp, err := nc.Request("test.in", data, 3*time.Second)
	require.NoError(t, err)

	var out adapter.OutboundMessage
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, "+34600000002", out.To)
	assert.Equal(t, "eco: TOYOTA", out.Text)
}

func TestListener_DropsMalformed(t *testing.T) {
	nc := startTestNATS(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan string, 2)
	listener := adapter.NewListener(nc, "test.in", func(_ context.Context, from, text string) (string, error) {
		calls <- from
		return "", nil
	})
	_, err := listener.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, nc.Publish("test.in", []byte("not json")))
	require.NoError(t, nc.Publish("test.in", []byte(`{"text":"no sender"}`)))
	good, _ := json.Marshal(adapter.InboundMessage{From: "+34600000003", Text: "hola"})
	require.NoError(t, nc.Publish("test.in", good))
	require.NoError(t, nc.Flush())

	select {
	case from := <-calls:
		assert.Equal(t, "+34600000003", from)
	case <-time.After(3 * time.Second):
		t.Fatal("handler was not called")
	}
	assert.Empty(t, calls)
}
