package indexer

import "fmt"

// Category classifies a failure by the subsystem that produced it.
type Category int

const (
	CategoryDocParser Category = iota
	CategoryQueryParser
	CategoryStorage
	CategoryBus
	CategoryIndex
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryDocParser:
		return "doc_parser"
	case CategoryQueryParser:
		return "query_parser"
	case CategoryStorage:
		return "storage"
	case CategoryBus:
		return "bus"
	case CategoryIndex:
		return "index"
	default:
		return "internal"
	}
}

// Error wraps an underlying failure with the taxonomy category it belongs
// to, so callers (the loop's logging, the failed-topic payload, the
// eventual HTTP layer) can decide how to propagate a failure without
// re-deriving its origin from the error text.
type Error struct {
	Category Category
	Key      string // the sbom_id/object key involved, if any
	Err      error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(cat Category, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: cat, Key: key, Err: err}
}
