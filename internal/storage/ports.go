package storage

import (
	"context"
	"errors"

	"networth/internal/core"
)

var (
	// ErrNotFound is returned by Get when no entry exists for a date.
	ErrNotFound = errors.New("entry not found")

	// ErrStorageUnavailable wraps any failure to open or migrate the
	// underlying engine. It is fatal for the session.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Order selects the date ordering of ListAll.
type Order int

const (
	// Descending lists newest first, for display.
	Descending Order = iota
	// Ascending lists oldest first, for trend computation.
	Ascending
)

func (o Order) String() string {
	if o == Ascending {
		return "asc"
	}
	return "desc"
}

// ParseOrder maps "asc"/"desc" to an Order; anything else is Descending.
func ParseOrder(s string) Order {
	if s == "asc" || s == "ascending" {
		return Ascending
	}
	return Descending
}

// Store is durable keyed storage of entries. Every mutation is
// transactional: readers never observe a partially applied operation.
type Store interface {
	// Put inserts or overwrites the entry for e.Date.
	Put(ctx context.Context, e core.Entry) error
	// Get returns ErrNotFound when no entry exists for date.
	Get(ctx context.Context, date core.Date) (core.Entry, error)
	// Delete removes the entry for date. Deleting an absent date is not an error.
	Delete(ctx context.Context, date core.Date) error
	// ListAll returns every entry ordered by date.
	ListAll(ctx context.Context, order Order) ([]core.Entry, error)
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Replace deletes oldDate and puts e as one atomic step.
	Replace(ctx context.Context, oldDate core.Date, e core.Entry) error
	// PutAll upserts every entry as one atomic step.
	PutAll(ctx context.Context, entries []core.Entry) error
	Close() error
}

// RangeReader is implemented by stores keeping secondary indexes on amounts.
type RangeReader interface {
	ListByAssetsRange(ctx context.Context, min, max core.Money) ([]core.Entry, error)
	ListByDebtsRange(ctx context.Context, min, max core.Money) ([]core.Entry, error)
}

// Counter is implemented by stores that can count entries without loading them.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}
