package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aretw0/itpbot/internal/logging"
	"github.com/nats-io/nats.go"
)

// HandlerFunc processes one inbound message and returns the reply text.
type HandlerFunc func(ctx context.Context, from, text string) (string, error)

// Listener feeds inbound bus messages to a handler.
type Listener struct {
	nc      *nats.Conn
	subject string
	queue   string
	handler HandlerFunc
	logger  *slog.Logger
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithQueue joins a queue group so replicas share the inbound load.
func WithQueue(group string) ListenerOption {
	return func(l *Listener) {
		l.queue = group
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener on subject.
func NewListener(nc *nats.Conn, subject string, handler HandlerFunc, opts ...ListenerOption) *Listener {
	if subject == "" {
		subject = DefaultInboundSubject
	}
	l := &Listener{nc: nc, subject: subject, handler: handler, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start subscribes and returns once the subscription is active.
// The subscription is drained when ctx is done.
// Request-reply messages get the reply text back as an OutboundMessage.
func (l *Listener) Start(ctx context.Context) (*nats.Subscription, error) {
	sub, err := l.nc.QueueSubscribe(l.subject, l.queue, l.handle)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = sub.Drain()
	}()
	l.logger.Info("listening for inbound messages", "subject", l.subject, "queue", l.queue)
	return sub, nil
}

func (l *Listener) handle(msg *nats.Msg) {
	var in InboundMessage
	if err := json.Unmarshal(msg.Data, &in); err != nil || in.From == "" {
		l.logger.Warn("dropping malformed inbound message", "subject", msg.Subject, "err", err)
		return
	}

	ctx := extract(msg)
	reply, err := l.handler(ctx, in.From, in.Text)
	if err != nil {
		l.logger.Error("inbound message failed", "session_key", in.From, "err", err)
		return
	}

	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(OutboundMessage{To: in.From, Text: reply})
	if err != nil {
		return
	}
	if err := msg.Respond(data); err != nil {
		l.logger.Warn("failed to respond", "session_key", in.From, "err", err)
	}
}
