package indexer

import (
	"context"
	"fmt"

	"github.com/summit/services/sbomindexd/internal/extractor"
	"github.com/summit/services/sbomindexd/internal/storage"
)

// LintResult reports one object that failed extraction during a preflight
// sweep.
type LintResult struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Preflight sweeps every object under storage.DataPrefix through the
// extractor without mutating any index, surfacing parse failures ahead of a
// real reindex.
func Preflight(ctx context.Context, objects storage.ObjectStore) ([]LintResult, error) {
	var failures []LintResult
	err := objects.ListPrefix(ctx, storage.DataPrefix, func(obj storage.Object) error {
		if _, perr := extractor.Extract(obj.Key, obj.Data); perr != nil {
			failures = append(failures, LintResult{Key: obj.Key, Error: perr.Error()})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("indexer: preflight: %w", err)
	}
	return failures, nil
}
