// Package bus defines the event bus abstraction the indexer loop consumes
// to receive stored-object notifications and to publish indexed/failed
// outcomes.
package bus

import "context"

// Topic names used across the service.
const (
	TopicStored  = "stored"
	TopicIndexed = "indexed"
	TopicFailed  = "failed"
)

// Message is a single delivery from a Consumer.
type Message struct {
	Topic   string
	Payload []byte
	// offset is an opaque handle the underlying bus implementation uses to
	// commit this message; callers never inspect it directly.
	offset any
}

// Consumer is a subscribed reader over one or more topics within a
// consumer group.
type Consumer interface {
	// Next returns the next available message, or ctx's error once ctx is
	// done. An implementation may return (nil, nil) when no message is
	// available yet; callers treat that as "poll again".
	Next(ctx context.Context) (*Message, error)
	// Commit acknowledges messages, advancing the group's offsets. Commit
	// must only be called after the effects of msgs have been durably
	// applied, i.e. after the snapshot containing them uploaded.
	Commit(ctx context.Context, msgs []*Message) error
}

// Bus is the injected event-bus capability.
type Bus interface {
	Subscribe(ctx context.Context, group string, topics ...string) (Consumer, error)
	Send(ctx context.Context, topic string, payload []byte) error
}

// FailedPayload is the JSON body published on TopicFailed.
type FailedPayload struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}
