package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ publishes messages to a durable queue
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	now     func() time.Time
}

var _ Publisher = (*RabbitMQ)(nil)

// NewRabbitMQ connects to the broker and declares the queue
func NewRabbitMQ(url, queueName string) (*RabbitMQ, error) {
	const op = "events.NewRabbitMQ"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RabbitMQ{conn: conn, channel: ch, queue: q, now: time.Now}, nil
}

// Publish sends msg as a persistent JSON message
func (r *RabbitMQ) Publish(ctx context.Context, msg Message) error {
	const op = "events.RabbitMQ.Publish"

	publishing, err := newPublishing(msg, r.now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.channel.PublishWithContext(ctx, "", r.queue.Name, false, false, publishing); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close closes the channel and the connection
func (r *RabbitMQ) Close() error {
	_ = r.channel.Close()
	return r.conn.Close()
}

func newPublishing(msg Message, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, err
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		Type:         string(msg.Purpose),
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
	}, nil
}
