// Package store is the reference-data persistence boundary.  Callers address
// tables by name and exchange loosely typed rows; the two implementations
// (MySQL and in-memory) normalize values against the same Schema so that a
// row read from either looks identical.
package store

import "context"

// Store is the contract every manager depends on.  Each call is a single
// statement from the caller's point of view; nothing here groups calls.
type Store interface {
	// Find returns all rows matching filter, ordered by opts.OrderBy then id.
	Find(ctx context.Context, table string, filter Filter, opts FindOptions) ([]Row, error)
	// FindOne returns the lowest-id row matching filter or a *NotFoundError.
	FindOne(ctx context.Context, table string, filter Filter) (Row, error)
	// Insert stores row and returns it as persisted, id and defaults filled in.
	Insert(ctx context.Context, table string, row Row) (Row, error)
	// InsertMany inserts rows in order and returns them as persisted.
	InsertMany(ctx context.Context, table string, rows []Row) ([]Row, error)
	// Update applies patch to every row matching filter and returns the
	// lowest-id updated row, or a *NotFoundError when nothing matched.
	Update(ctx context.Context, table string, filter Filter, patch Row) (Row, error)
	// Delete removes every row matching filter and reports how many went.
	Delete(ctx context.Context, table string, filter Filter) (int64, error)
	// Count reports how many rows match filter.
	Count(ctx context.Context, table string, filter Filter) (int64, error)
}

// Transactor is implemented by stores that can run several statements
// atomically.  fn receives a Store bound to the transaction; returning an
// error (or panicking) rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// Pinger is implemented by stores backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}
