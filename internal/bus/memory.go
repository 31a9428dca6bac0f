package bus

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBus is an in-process Bus used by tests and local development in
// place of NATS.
type MemoryBus struct {
	mu     sync.Mutex
	queues map[string][]*Message
	subs   map[string]chan *Message
}

// NewMemoryBus returns an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		queues: make(map[string][]*Message),
		subs:   make(map[string]chan *Message),
	}
}

func (b *MemoryBus) Send(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := &Message{Topic: topic, Payload: payload}
	if ch, ok := b.subs[topic]; ok {
		select {
		case ch <- msg:
			return nil
		default:
		}
	}
	b.queues[topic] = append(b.queues[topic], msg)
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, _ string, topics ...string) (Consumer, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("bus: subscribe requires at least one topic")
	}
	c := &memoryConsumer{bus: b, topics: topics}
	return c, nil
}

type memoryConsumer struct {
	bus    *MemoryBus
	topics []string
}

func (c *memoryConsumer) Next(ctx context.Context) (*Message, error) {
	for {
		c.bus.mu.Lock()
		for _, topic := range c.topics {
			q := c.bus.queues[topic]
			if len(q) > 0 {
				msg := q[0]
				c.bus.queues[topic] = q[1:]
				c.bus.mu.Unlock()
				return msg, nil
			}
		}
		c.bus.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			return nil, nil
		}
	}
}

func (c *memoryConsumer) Commit(_ context.Context, _ []*Message) error {
	return nil
}
