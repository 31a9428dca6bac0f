package storage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// s3Notification mirrors the subset of the AWS S3 event-notification JSON
// schema the indexer cares about.
type s3Notification struct {
	Records []s3Record `json:"Records"`
}

type s3Record struct {
	EventName string      `json:"eventName"`
	S3        s3RecordObj `json:"s3"`
}

type s3RecordObj struct {
	Bucket s3Bucket `json:"bucket"`
	Object s3Object `json:"object"`
}

type s3Bucket struct {
	Name string `json:"name"`
}

type s3Object struct {
	Key string `json:"key"`
}

func decodeS3Events(raw []byte) ([]Event, error) {
	var notif s3Notification
	if err := json.Unmarshal(raw, &notif); err != nil {
		return nil, fmt.Errorf("storage: decode event: %w", err)
	}
	events := make([]Event, 0, len(notif.Records))
	for _, rec := range notif.Records {
		typ := classifyEventName(rec.EventName)
		if typ == EventUnknown {
			continue
		}
		key, err := keyFromEvent(rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("storage: decode event: %w", err)
		}
		events = append(events, Event{Type: typ, Bucket: rec.S3.Bucket.Name, Key: key})
	}
	return events, nil
}

func classifyEventName(name string) EventType {
	switch {
	case strings.HasSuffix(name, "ObjectCreated:Put"),
		strings.HasSuffix(name, "ObjectCreated:CompleteMultipartUpload"):
		return EventPut
	case strings.HasSuffix(name, "ObjectRemoved:Delete"):
		return EventDelete
	default:
		return EventUnknown
	}
}

// keyFromEvent URL-decodes a raw event object key and strips DataPrefix;
// keys arrive URL-encoded and the logical sbom_id never carries the prefix.
func keyFromEvent(raw string) (string, error) {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("url-decode key %q: %w", raw, err)
	}
	return strings.TrimPrefix(decoded, DataPrefix), nil
}
