package pubsub

import (
	"context"
	"log/slog"
	"sync"
)

// Memory is an in-process Bridge. It only reaches subscribers of the same
// process, which is enough for a single-instance deployment and for tests
type Memory struct {
	logger *slog.Logger
	subs   map[string]map[*memorySub]struct{}
	mu     sync.Mutex
	closed bool
}

var _ Bridge = (*Memory)(nil)

// NewMemory creates an in-process bridge
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		logger: logger,
		subs:   make(map[string]map[*memorySub]struct{}),
	}
}

// Publish sends payload to every subscriber of channel. A subscriber whose
// buffer is full misses the message
func (m *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	for sub := range m.subs[channel] {
		msg := append([]byte(nil), payload...)
		select {
		case sub.ch <- msg:
		default:
			m.logger.WarnContext(ctx, "subscriber buffer full, message dropped")
		}
	}

	return nil
}

// Subscribe registers a subscriber on channel
func (m *Memory) Subscribe(_ context.Context, channel string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{
		bridge:  m,
		channel: channel,
		ch:      make(chan []byte, subscriberBuffer),
	}

	if m.subs[channel] == nil {
		m.subs[channel] = make(map[*memorySub]struct{})
	}
	m.subs[channel][sub] = struct{}{}

	return sub, nil
}

// Subscribers returns the number of live subscribers on channel
func (m *Memory) Subscribers(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[channel])
}

// Close closes all subscriptions
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	for channel, subs := range m.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(m.subs, channel)
	}

	return nil
}

func (m *Memory) remove(sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs, ok := m.subs[sub.channel]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}

	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(m.subs, sub.channel)
	}
}

type memorySub struct {
	bridge  *Memory
	ch      chan []byte
	channel string
}

func (s *memorySub) C() <-chan []byte { return s.ch }

func (s *memorySub) Close() error {
	s.bridge.remove(s)
	return nil
}
