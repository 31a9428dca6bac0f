package indexer_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/summit/services/sbomindexd/internal/bus"
	"github.com/summit/services/sbomindexd/internal/index"
	"github.com/summit/services/sbomindexd/internal/indexer"
	"github.com/summit/services/sbomindexd/internal/query"
	"github.com/summit/services/sbomindexd/internal/storage"
)

type harness struct {
	loop    *indexer.Loop
	objects *storage.LocalStore
	bus     *bus.MemoryBus
	commits string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	objects := storage.NewLocalStore(t.TempDir())
	memBus := bus.NewMemoryBus()
	store, err := index.New(filepath.Join(t.TempDir(), "idx"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	commitsDir := t.TempDir()
	loop := indexer.New(store, objects, memBus, indexer.NewCommitLogWriter(commitsDir), 25*time.Millisecond)
	return &harness{loop: loop, objects: objects, bus: memBus, commits: commitsDir}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- h.loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("loop did not stop")
		}
	})
}

func (h *harness) putFixture(t *testing.T, key string) {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "extractor", "testdata", key+".json"))
	require.NoError(t, err)
	require.NoError(t, h.objects.Put(context.Background(), storage.DataPrefix+key, raw))
}

func (h *harness) sendStored(t *testing.T, eventName, key string) {
	t.Helper()
	payload := fmt.Sprintf(`{"Records":[{"eventName":%q,"s3":{"bucket":{"name":"sboms"},"object":{"key":%q}}}]}`,
		eventName, url.QueryEscape(storage.DataPrefix+key))
	require.NoError(t, h.bus.Send(context.Background(), bus.TopicStored, []byte(payload)))
}

func (h *harness) searchableDocs(t *testing.T) uint64 {
	t.Helper()
	res, err := h.loop.Store.Search(query.Compile(nil), 0, 50)
	require.NoError(t, err)
	return res.Total
}

func nextMessage(t *testing.T, c bus.Consumer) *bus.Message {
	t.Helper()
	var msg *bus.Message
	require.Eventually(t, func() bool {
		m, err := c.Next(context.Background())
		if err != nil || m == nil {
			return false
		}
		msg = m
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return msg
}

func TestLoopIndexesPutEvent(t *testing.T) {
	h := newHarness(t)
	h.putFixture(t, "ubi9-sbom")

	indexed, err := h.bus.Subscribe(context.Background(), "test", bus.TopicIndexed)
	require.NoError(t, err)

	h.start(t)
	h.sendStored(t, "s3:ObjectCreated:Put", "ubi9-sbom")

	require.Eventually(t, func() bool {
		return h.searchableDocs(t) == 1
	}, 5*time.Second, 20*time.Millisecond)

	msg := nextMessage(t, indexed)
	require.Equal(t, "ubi9-sbom", string(msg.Payload))

	// A snapshot blob lands in the object store after the tick.
	require.Eventually(t, func() bool {
		blob, err := h.objects.GetIndex(context.Background())
		return err == nil && blob != nil
	}, 5*time.Second, 20*time.Millisecond)

	// The tick also wrote a verifiable commit log entry.
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(h.commits)
		return err == nil && len(entries) > 0
	}, 5*time.Second, 20*time.Millisecond)
	entries, err := os.ReadDir(h.commits)
	require.NoError(t, err)
	raw, err := os.ReadFile(filepath.Join(h.commits, entries[0].Name()))
	require.NoError(t, err)
	var entry indexer.CommitEntry
	require.NoError(t, json.Unmarshal(raw, &entry))
	ok, err := indexer.VerifyCommitEntry(entry)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoopDeleteEventRemovesDocument(t *testing.T) {
	h := newHarness(t)
	h.putFixture(t, "kmm-1")
	h.start(t)

	h.sendStored(t, "s3:ObjectCreated:Put", "kmm-1")
	require.Eventually(t, func() bool {
		return h.searchableDocs(t) == 1
	}, 5*time.Second, 20*time.Millisecond)

	h.sendStored(t, "s3:ObjectRemoved:Delete", "kmm-1")
	require.Eventually(t, func() bool {
		return h.searchableDocs(t) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestLoopPublishesParseFailures(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.objects.Put(context.Background(), storage.DataPrefix+"bad", []byte("not an sbom")))

	failed, err := h.bus.Subscribe(context.Background(), "test", bus.TopicFailed)
	require.NoError(t, err)

	h.start(t)
	h.sendStored(t, "s3:ObjectCreated:Put", "bad")

	msg := nextMessage(t, failed)
	var payload bus.FailedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	require.Equal(t, "bad", payload.Key)
	require.NotEmpty(t, payload.Error)

	// The loop keeps running after a parse failure.
	h.putFixture(t, "my-sbom")
	h.sendStored(t, "s3:ObjectCreated:Put", "my-sbom")
	require.Eventually(t, func() bool {
		return h.searchableDocs(t) == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestLoopReindexRebuildsFromStorage(t *testing.T) {
	h := newHarness(t)
	h.putFixture(t, "ubi9-sbom")
	h.putFixture(t, "my-sbom")

	h.start(t)
	h.loop.RequestReindex()

	require.Eventually(t, func() bool {
		return h.searchableDocs(t) == 2
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		return h.loop.Status.Snapshot().Phase == indexer.PhaseRunning
	}, 5*time.Second, 20*time.Millisecond)
}

func TestLoopReindexTakesPartialSnapshots(t *testing.T) {
	h := newHarness(t)
	raw, err := os.ReadFile(filepath.Join("..", "extractor", "testdata", "my-sbom.json"))
	require.NoError(t, err)
	// Enough objects to overflow one snapshot batch mid-sweep.
	const total = 70
	for i := 0; i < total; i++ {
		key := fmt.Sprintf("sbom-%03d", i)
		require.NoError(t, h.objects.Put(context.Background(), storage.DataPrefix+key, raw))
	}

	h.start(t)
	h.loop.RequestReindex()

	require.Eventually(t, func() bool {
		return h.searchableDocs(t) == total &&
			h.loop.Status.Snapshot().Phase == indexer.PhaseRunning
	}, 10*time.Second, 20*time.Millisecond)

	blob, err := h.objects.GetIndex(context.Background())
	require.NoError(t, err)
	require.NotNil(t, blob)

	// The sweep committed at least one partial snapshot before the final
	// one, so the commit log holds more than a single entry.
	entries, err := os.ReadDir(h.commits)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 2)
}
