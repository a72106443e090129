package notify

import (
	"context"
	"io"
)

// Handler processes one delivered payload. Returned errors are logged by the
// bus; they do not cause redelivery.
type Handler func(ctx context.Context, payload []byte) error

// On adapts a typed function into a Handler that decodes the payload first.
func On[T any](fn func(ctx context.Context, msg T) error) Handler {
	return func(ctx context.Context, payload []byte) error {
		msg, err := Decode[T](payload)
		if err != nil {
			return err
		}
		return fn(ctx, msg)
	}
}

// Publisher sends messages to a channel.
type Publisher interface {
	// Publish JSON-encodes msg and sends it to channel.
	Publish(ctx context.Context, channel string, msg any) error
}

// Subscriber delivers messages of a channel to a handler until the returned
// subscription is closed or ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler Handler) (io.Closer, error)
}

// Bus is both ends of the notification channel.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}
