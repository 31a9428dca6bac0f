// Package storage defines the object store abstraction the indexer loop
// consumes: data/ objects holding raw SBOM payloads and a single "index"
// key holding the latest snapshot blob.
package storage

import "context"

// DataPrefix is the logical key prefix under which SBOM payloads live.
const DataPrefix = "data/"

// IndexKey is the object key the compressed index snapshot is published to
// and restored from.
const IndexKey = "index"

// Object is a single entry under DataPrefix, as returned by ListPrefix.
type Object struct {
	Key  string // with DataPrefix already stripped
	Data []byte
}

// EventType classifies a decoded storage event.
type EventType int

const (
	EventUnknown EventType = iota
	EventPut
	EventDelete
)

// Event is one record from a decoded event-bus notification payload.
type Event struct {
	Type   EventType
	Bucket string
	// Key is the logical key with DataPrefix stripped and URL-decoding
	// applied, ready to use as an sbom_id.
	Key string
}

// ObjectStore is the injected capability the indexer loop uses to read SBOM
// payloads and to publish/restore index snapshots.
type ObjectStore interface {
	// Get fetches the raw bytes stored at a fully-qualified key (including
	// DataPrefix).
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes raw bytes to a fully-qualified key.
	Put(ctx context.Context, key string, data []byte) error
	// ListPrefix streams every object whose key starts with prefix, yielding
	// one call to fn per object with prefix stripped from its Key; fn's
	// error aborts the walk.
	ListPrefix(ctx context.Context, prefix string, fn func(Object) error) error
	// GetForEvent resolves an Event's logical key to its current bytes. It
	// returns (nil, nil) for a delete event, which carries no payload.
	GetForEvent(ctx context.Context, ev Event) ([]byte, error)
	// PutIndex uploads a snapshot blob to IndexKey.
	PutIndex(ctx context.Context, blob []byte) error
	// GetIndex downloads the current snapshot blob, or (nil, nil) if none
	// has been published yet.
	GetIndex(ctx context.Context) ([]byte, error)
}

// DecodeEvents parses a storage event-notification payload into Events.
// event_name suffixes recognized: ObjectCreated:Put,
// ObjectCreated:CompleteMultipartUpload (both EventPut), and
// ObjectRemoved:Delete (EventDelete). Keys are URL-decoded and have
// DataPrefix stripped.
func DecodeEvents(raw []byte) ([]Event, error) {
	return decodeS3Events(raw)
}
