package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LocalStore is a filesystem-backed ObjectStore for local development and
// tests: objects are laid out as files under dir, one path per key.
type LocalStore struct {
	dir string
}

// NewLocalStore builds a LocalStore rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (l *LocalStore) path(key string) string {
	return filepath.Join(l.dir, filepath.FromSlash(key))
}

func (l *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage: get %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return data, nil
}

func (l *LocalStore) Put(_ context.Context, key string, data []byte) error {
	p := l.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("storage: put %s: mkdir: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("storage: put %s: %w", key, err)
	}
	return nil
}

func (l *LocalStore) ListPrefix(ctx context.Context, prefix string, fn func(Object) error) error {
	root := l.path(prefix)
	entries, err := walkFiles(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("storage: list %s: %w", prefix, err)
	}
	sort.Strings(entries)
	for _, rel := range entries {
		key := prefix + rel
		data, err := l.Get(ctx, key)
		if err != nil {
			return err
		}
		if err := fn(Object{Key: rel, Data: data}); err != nil {
			return err
		}
	}
	return nil
}

func walkFiles(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	return out, err
}

func (l *LocalStore) GetForEvent(ctx context.Context, ev Event) ([]byte, error) {
	if ev.Type == EventDelete {
		return nil, nil
	}
	return l.Get(ctx, DataPrefix+ev.Key)
}

func (l *LocalStore) PutIndex(ctx context.Context, blob []byte) error {
	return l.Put(ctx, IndexKey, blob)
}

func (l *LocalStore) GetIndex(ctx context.Context) ([]byte, error) {
	blob, err := l.Get(ctx, IndexKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return blob, nil
}
