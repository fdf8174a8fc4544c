package outbox

import "context"

// Sink delivers outbox messages to a broker. Publish must return only after
// the broker acknowledged the message.
type Sink interface {
	Publish(ctx context.Context, msg Message) error
	Ping(ctx context.Context) error
	Close() error
}
