// Package repo defines a generic repository contract plus the Neo4j-backed
// implementation the graph stores build on.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound reports a missing entity. Callers map it to their own
// not-found handling, HTTP handlers to 404.
var ErrNotFound = errors.New("not found")

// Repository is generic CRUD over one node label.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts pages and filters List. Filter entries match node properties
// exactly and combine with AND.
type ListOpts struct {
	Offset int
	Limit  int
	Filter map[string]any
}
