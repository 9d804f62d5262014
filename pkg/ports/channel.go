package ports

import "context"

// Channel delivers a reply to a user over an external messaging channel.
// Delivery errors are logged by callers and never change the dialogue outcome.
type Channel interface {
	Send(ctx context.Context, recipient, text string) error
}
