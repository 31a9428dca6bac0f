package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/summit/services/sbomindexd/internal/storage"
)

func TestDecodeEvents(t *testing.T) {
	payload := []byte(`{
		"Records": [
			{
				"eventName": "s3:ObjectCreated:Put",
				"s3": {"bucket": {"name": "sboms"}, "object": {"key": "data%2Fubi9-sbom"}}
			},
			{
				"eventName": "s3:ObjectCreated:CompleteMultipartUpload",
				"s3": {"bucket": {"name": "sboms"}, "object": {"key": "data/kmm-1"}}
			},
			{
				"eventName": "s3:ObjectRemoved:Delete",
				"s3": {"bucket": {"name": "sboms"}, "object": {"key": "data/my+old+sbom"}}
			},
			{
				"eventName": "s3:TestEvent",
				"s3": {"bucket": {"name": "sboms"}, "object": {"key": "ignored"}}
			}
		]
	}`)

	events, err := storage.DecodeEvents(payload)
	require.NoError(t, err)
	require.Len(t, events, 3)

	require.Equal(t, storage.EventPut, events[0].Type)
	require.Equal(t, "sboms", events[0].Bucket)
	require.Equal(t, "ubi9-sbom", events[0].Key)

	require.Equal(t, storage.EventPut, events[1].Type)
	require.Equal(t, "kmm-1", events[1].Key)

	require.Equal(t, storage.EventDelete, events[2].Type)
	require.Equal(t, "my old sbom", events[2].Key)
}

func TestDecodeEventsRejectsMalformedPayload(t *testing.T) {
	_, err := storage.DecodeEvents([]byte("not json"))
	require.Error(t, err)
}
