package indexer_test

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/summit/services/sbomindexd/internal/indexer"
)

func TestCommitEntryVerification(t *testing.T) {
	builder := indexer.NewCommitBuilder(3)
	builder.Touch("ubi9-sbom")
	builder.Touch("kmm-1")
	builder.Touch("my-sbom")
	require.False(t, builder.Empty())

	entry, err := builder.Build()
	require.NoError(t, err)
	require.Equal(t, int64(3), entry.Generation)
	require.Len(t, entry.SBOMIDs, 3)

	ok, err := indexer.VerifyCommitEntry(entry)
	require.NoError(t, err)
	require.True(t, ok)

	// Tamper with an id.
	entry.SBOMIDs[0].ID = "someone-else"
	ok, err = indexer.VerifyCommitEntry(entry)
	require.Error(t, err)
	require.False(t, ok)
}

func TestCommitEntryJSONRoundTrip(t *testing.T) {
	builder := indexer.NewCommitBuilder(1)
	builder.Touch("ubi9-sbom")
	entry, err := builder.Build()
	require.NoError(t, err)

	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	var decoded indexer.CommitEntry
	require.NoError(t, json.Unmarshal(raw, &decoded))

	ok, err := indexer.VerifyCommitEntry(decoded)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCommitEntryEmpty(t *testing.T) {
	builder := indexer.NewCommitBuilder(0)
	require.True(t, builder.Empty())

	entry, err := builder.Build()
	require.NoError(t, err)
	require.Empty(t, entry.SBOMIDs)

	ok, err := indexer.VerifyCommitEntry(entry)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCommitLogWriter(t *testing.T) {
	dir := t.TempDir()
	builder := indexer.NewCommitBuilder(7)
	builder.Touch("ubi9-sbom")
	entry, err := builder.Build()
	require.NoError(t, err)

	path, err := indexer.NewCommitLogWriter(dir).Write(entry)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded indexer.CommitEntry
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, entry.Root, decoded.Root)

	ok, err := indexer.VerifyCommitEntry(decoded)
	require.NoError(t, err)
	require.True(t, ok)
}
