// Package pubsub is the push bridge between the bot confirmation and the
// browser waiting on a bot-auth token. Channels are keyed by string.
// Publishing to a channel nobody listens on is not an error.
package pubsub

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed bridge
var ErrClosed = errors.New("pubsub: bridge closed")

// Subscription delivers messages published on one channel
type Subscription interface {
	// C returns the message channel. It is closed when the subscription ends
	C() <-chan []byte

	// Close ends the subscription. Safe to call more than once
	Close() error
}

// Bridge is a fan-out publish/subscribe channel abstraction
type Bridge interface {
	// Publish delivers payload to current subscribers of channel without blocking
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe opens a subscription on channel
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// Close releases bridge resources
	Close() error
}

// subscriberBuffer размер буфера канала подписчика
const subscriberBuffer = 4
