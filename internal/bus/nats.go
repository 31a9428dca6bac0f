package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSBus is a Bus backed by NATS JetStream.
type NATSBus struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	stream        string
	subjectPrefix string
}

// NewNATSBus connects to url and ensures the named stream exists, capturing
// every subject under prefix+".>" (TopicStored, TopicIndexed, TopicFailed
// are published as prefix+"."+topic).
func NewNATSBus(url, stream, subjectPrefix string) (*NATSBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("bus: connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bus: jetstream: %w", err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     stream,
		Subjects: []string{subjectPrefix + ".>"},
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		conn.Close()
		return nil, fmt.Errorf("bus: add stream: %w", err)
	}
	return &NATSBus{conn: conn, js: js, stream: stream, subjectPrefix: subjectPrefix}, nil
}

func (n *NATSBus) Close() error {
	n.conn.Close()
	return nil
}

func (n *NATSBus) Send(_ context.Context, topic string, payload []byte) error {
	if _, err := n.js.Publish(n.subject(topic), payload); err != nil {
		return fmt.Errorf("bus: send %s: %w", topic, err)
	}
	return nil
}

func (n *NATSBus) Subscribe(_ context.Context, group string, topics ...string) (Consumer, error) {
	subs := make([]*nats.Subscription, 0, len(topics))
	for _, topic := range topics {
		sub, err := n.js.PullSubscribe(n.subject(topic), group)
		if err != nil {
			return nil, fmt.Errorf("bus: subscribe %s: %w", topic, err)
		}
		subs = append(subs, sub)
	}
	return &natsConsumer{subs: subs}, nil
}

func (n *NATSBus) subject(topic string) string {
	return n.subjectPrefix + "." + topic
}

type natsConsumer struct {
	subs []*nats.Subscription
	next int
}

// Next round-robins across the consumer's subscribed topics, fetching one
// message at a time with a short poll interval.
func (c *natsConsumer) Next(ctx context.Context) (*Message, error) {
	for {
		for i := 0; i < len(c.subs); i++ {
			idx := (c.next + i) % len(c.subs)
			sub := c.subs[idx]
			msgs, err := sub.Fetch(1, nats.MaxWait(200*time.Millisecond))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				return nil, fmt.Errorf("bus: fetch: %w", err)
			}
			if len(msgs) > 0 {
				c.next = idx + 1
				return &Message{Topic: msgs[0].Subject, Payload: msgs[0].Data, offset: msgs[0]}, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}

func (c *natsConsumer) Commit(_ context.Context, msgs []*Message) error {
	for _, m := range msgs {
		natsMsg, ok := m.offset.(*nats.Msg)
		if !ok {
			continue
		}
		if err := natsMsg.Ack(); err != nil {
			return fmt.Errorf("bus: ack: %w", err)
		}
	}
	return nil
}
