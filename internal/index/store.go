// Package index wraps the bleve engine: the writer/searcher over the fixed
// schema, plus snapshotting to and restoring from a blob store.
package index

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/summit/services/sbomindexd/internal/query"
	"github.com/summit/services/sbomindexd/internal/schema"
	"github.com/summit/services/sbomindexd/internal/storage"
)

// Store wraps a single bleve.Index. It keeps one long-lived index handle
// and accumulates mutations into a Batch applied on Commit, rather than
// opening and closing a writer every tick.
type Store struct {
	mu      sync.RWMutex
	idx     bleve.Index
	batch   *bleve.Batch
	pending int
	dir     string // "" for an in-memory index
}

// New creates a fresh bleve index at dir using the fixed schema mapping;
// it fails if an index already exists there (Open reopens one). An empty
// dir creates an in-memory index, which tests use.
func New(dir string) (*Store, error) {
	mapping := schema.NewMapping()
	var idx bleve.Index
	var err error
	if dir == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		idx, err = bleve.New(dir, mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("index: open: %w", err)
	}
	return &Store{idx: idx, batch: idx.NewBatch(), dir: dir}, nil
}

// Open reopens an existing on-disk index at dir (used after Restore has
// unpacked a snapshot there).
func Open(dir string) (*Store, error) {
	idx, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("index: reopen: %w", err)
	}
	return &Store{idx: idx, batch: idx.NewBatch(), dir: dir}, nil
}

// OpenWithSnapshot restores the latest snapshot blob from the object store
// into dir and opens the index over it, falling back to a fresh empty index
// when no snapshot has been published yet or the blob fails to restore.
// Restore must happen before the index is opened, not after: unpacking
// segment files under a live engine handle would corrupt it.
func OpenWithSnapshot(ctx context.Context, dir string, objects storage.ObjectStore) (*Store, error) {
	blob, err := objects.GetIndex(ctx)
	if err != nil {
		log.Printf("index: snapshot download failed, starting empty: %v", err)
		blob = nil
	}
	if blob != nil {
		if err := Restore(blob, dir); err != nil {
			log.Printf("index: snapshot restore failed, starting empty: %v", err)
		} else if s, err := Open(dir); err == nil {
			return s, nil
		} else {
			log.Printf("index: reopen after restore failed, starting empty: %v", err)
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("index: clear %s: %w", dir, err)
	}
	return New(dir)
}

// Dir returns the on-disk directory backing the index, or "" for an
// in-memory index (which cannot be snapshotted).
func (s *Store) Dir() string { return s.dir }

// AddDocument stages an upsert for doc.SBOMID, implemented as
// delete-then-add.
func (s *Store) AddDocument(doc *schema.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch.Delete(doc.SBOMID)
	if err := s.batch.Index(doc.SBOMID, doc); err != nil {
		return fmt.Errorf("index: stage document %s: %w", doc.SBOMID, err)
	}
	s.pending++
	return nil
}

// DeleteDocument stages removal of the document with the given sbom_id.
func (s *Store) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch.Delete(id)
	s.pending++
	return nil
}

// Pending reports the number of uncommitted mutations staged since the last
// Commit, used by the indexer loop to decide whether a tick has anything to
// snapshot.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// Commit applies the staged batch to the index and resets the pending
// counter. Index mutations are CPU-bound and must be run off the indexer
// loop's own goroutine.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == 0 {
		return nil
	}
	if err := s.idx.Batch(s.batch); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	s.batch = s.idx.NewBatch()
	s.pending = 0
	return nil
}

// Hit is one search result: the matching sbom_id and its relevance score
// (meaningless when an explicit sort is in effect).
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SearchResult is the projection returned to callers of Search.
type SearchResult struct {
	Hits  []Hit  `json:"hits"`
	Total uint64 `json:"total"`
}

// Search runs a compiled query against the index and returns a page of
// sbom_id hits plus the total match count.
func (s *Store) Search(compiled *query.Compiled, offset, limit int) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(compiled.Query, limit, offset, false)
	if compiled.SortField != "" {
		req.SortBy([]string{"-" + compiled.SortField})
	}
	res, err := s.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}
	return &SearchResult{Hits: hits, Total: res.Total}, nil
}

// Close releases the underlying bleve index handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.Close()
}
