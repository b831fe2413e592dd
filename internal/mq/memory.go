package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process backend. Messages published before a subscriber
// attaches are buffered per channel.
type Memory struct {
	mu     sync.Mutex
	queues map[string]chan Message
	closed bool
}

// NewMemory returns an empty in-process backend.
func NewMemory() *Memory {
	return &Memory{queues: make(map[string]chan Message)}
}

func (m *Memory) queue(channel string) (chan Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("memory mq closed")
	}
	q, ok := m.queues[channel]
	if !ok {
		q = make(chan Message, 256)
		m.queues[channel] = q
	}
	return q, nil
}

// Publish enqueues data on channel.
func (m *Memory) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	q, err := m.queue(channel)
	if err != nil {
		return "", err
	}
	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	select {
	case q <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Subscribe delivers queued messages until ctx is done. Messages whose
// handler fails are requeued.
func (m *Memory) Subscribe(ctx context.Context, channel string, handler Handler) error {
	q, err := m.queue(channel)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				select {
				case q <- msg:
				default:
				}
			}
		}
	}
}

// Drain returns every message currently queued on channel.
func (m *Memory) Drain(channel string) []Message {
	q, err := m.queue(channel)
	if err != nil {
		return nil
	}
	var out []Message
	for {
		select {
		case msg := <-q:
			out = append(out, msg)
		default:
			return out
		}
	}
}

// Close rejects further publishes.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
