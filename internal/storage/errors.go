package storage

import "errors"

// ErrNotFound is returned by ObjectStore implementations when a requested
// key does not exist, distinguished from other I/O failures.
var ErrNotFound = errors.New("storage: not found")
