// Package nats connects the assistant to a message bus: outbound replies are published
// on a subject and inbound user messages are consumed from another.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Default subjects.
const (
	DefaultOutboundSubject = "itpbot.outbound"
	DefaultInboundSubject  = "itpbot.inbound"
)

// OutboundMessage is published for every reply.
type OutboundMessage struct {
	To     string    `json:"to"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// InboundMessage is a user message delivered by a messaging gateway.
type InboundMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// Channel implements ports.Channel by publishing OutboundMessage values.
type Channel struct {
	nc      *nats.Conn
	subject string
	now     func() time.Time
}

// NewChannel creates a channel publishing on subject.
func NewChannel(nc *nats.Conn, subject string) *Channel {
	if subject == "" {
		subject = DefaultOutboundSubject
	}
	return &Channel{nc: nc, subject: subject, now: time.Now}
}

// Send publishes the reply. Trace context from ctx travels in the message headers.
func (c *Channel) Send(ctx context.Context, recipient, text string) error {
	data, err := json.Marshal(OutboundMessage{To: recipient, Text: text, SentAt: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal outbound message: %w", err)
	}
	msg := &nats.Msg{Subject: c.subject, Data: data}
	inject(ctx, msg)
	if err := c.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", c.subject, err)
	}
	return nil
}
