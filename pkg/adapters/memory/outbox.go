package memory

import (
	"context"
	"sync"
)

// Message is a reply captured by Outbox.
type Message struct {
	To   string
	Text string
}

// Outbox implements ports.Channel by recording messages.
// Set Err to simulate delivery failures.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Send records the message, or returns Err when set.
func (o *Outbox) Send(ctx context.Context, recipient, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.messages = append(o.messages, Message{To: recipient, Text: text})
	return nil
}

// Messages returns a copy of the recorded messages.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}
