// Package store implements the local persistent record collection.
package store

import (
	"context"

	"github.com/lepinkainen/listado/internal/record"
)

// Store defines the primitives the synchronizer needs from the local collection.
type Store interface {
	// Open opens the store and creates the schema if it is absent
	Open(ctx context.Context) error

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)

	// GetAll returns every record in insertion order
	GetAll(ctx context.Context) ([]record.Record, error)

	// Put inserts or replaces a single record
	Put(ctx context.Context, r record.Record) error

	// PutBatch inserts or replaces records in one transaction, in order
	PutBatch(ctx context.Context, records []record.Record) error

	// Clear removes every record but keeps the collection
	Clear(ctx context.Context) error

	// Drop deletes the collection; Open must be called again before use
	Drop(ctx context.Context) error

	// Close closes the connection to the store
	Close() error
}
