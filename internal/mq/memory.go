package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const memoryQueueSize = 256

// MemoryBackend is an in-process broker for single-instance deployments and
// tests. Each channel is a buffered queue shared by its subscribers; a
// message nacked by its handler is queued again.
type MemoryBackend struct {
	mu     sync.Mutex
	queues map[string]chan Message
	closed chan struct{}
	once   sync.Once
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		queues: make(map[string]chan Message),
		closed: make(chan struct{}),
	}
}

func (m *MemoryBackend) queue(channel string) chan Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[channel]
	if !ok {
		q = make(chan Message, memoryQueueSize)
		m.queues[channel] = q
	}
	return q
}

// Publish enqueues a message. It blocks while the queue is full.
func (m *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}
	msg := Message{ID: uuid.NewString(), Data: data, Attributes: attrs}
	select {
	case <-m.closed:
		return "", errors.New("memory backend closed")
	case <-ctx.Done():
		return "", ctx.Err()
	case m.queue(channel) <- msg:
		return msg.ID, nil
	}
}

// Subscribe consumes messages until ctx is done or the backend is closed.
func (m *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}
	q := m.queue(channel)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return nil
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

func (m *MemoryBackend) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}
