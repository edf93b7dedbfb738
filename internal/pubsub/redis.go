package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis is a Bridge over Redis PUBLISH/SUBSCRIBE, so the bot confirmation and
// the waiting browser may hit different server instances
type Redis struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

var _ Bridge = (*Redis)(nil)

// NewRedis creates a Redis bridge. prefix namespaces all channels
func NewRedis(client *redis.Client, prefix string, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, prefix: prefix, logger: logger}
}

// Publish publishes payload on channel
func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	const op = "pubsub.Redis.Publish"

	receivers, err := r.client.Publish(ctx, r.prefix+channel, payload).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r.logger.DebugContext(ctx, "published", slog.Int64("receivers", receivers))

	return nil
}

// Subscribe subscribes to channel and waits for the server confirmation
func (r *Redis) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	const op = "pubsub.Redis.Subscribe"

	ps := r.client.Subscribe(ctx, r.prefix+channel)

	// Дожидаемся подтверждения подписки, иначе ранний Publish может потеряться
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub := &redisSub{
		ps:   ps,
		ch:   make(chan []byte, subscriberBuffer),
		done: make(chan struct{}),
	}
	go sub.forward()

	return sub, nil
}

// Close closes the underlying client
func (r *Redis) Close() error {
	return r.client.Close()
}

type redisSub struct {
	ps        *redis.PubSub
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *redisSub) forward() {
	defer close(s.ch)

	msgs := s.ps.Channel()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.ch <- []byte(msg.Payload):
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSub) C() <-chan []byte { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
