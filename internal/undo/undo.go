// Package undo keeps a single generation of deleted entries for restore.
package undo

import (
	"context"
	"sync"

	"networth/internal/core"
)

// Restorer is the part of a store used to replay captured entries.
type Restorer interface {
	Put(ctx context.Context, e core.Entry) error
	PutAll(ctx context.Context, entries []core.Entry) error
}

type kind int

const (
	none kind = iota
	single
	set
)

// Buffer holds either the last deleted entry or the entry set removed by
// the last clear. Any capture replaces what was held before.
type Buffer struct {
	mu      sync.Mutex
	kind    kind
	entries []core.Entry
}

// CaptureEntry remembers a single deleted entry.
func (b *Buffer) CaptureEntry(e core.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kind = single
	b.entries = []core.Entry{e}
}

// CaptureAll remembers a cleared entry set. An empty set still counts as
// a capture and drops the previous generation.
func (b *Buffer) CaptureAll(entries []core.Entry) {
	cp := make([]core.Entry, len(entries))
	copy(cp, entries)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.kind = set
	b.entries = cp
}

// Empty reports whether there is nothing to restore.
func (b *Buffer) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.kind == none
}

// Restore replays the captured state through r and empties the buffer.
// It returns the number of entries restored. On failure the buffer is
// kept so the restore can be retried.
func (b *Buffer) Restore(ctx context.Context, r Restorer) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	switch b.kind {
	case none:
		return 0, nil
	case single:
		err = r.Put(ctx, b.entries[0])
	case set:
		if len(b.entries) > 0 {
			err = r.PutAll(ctx, b.entries)
		}
	}
	if err != nil {
		return 0, err
	}

	n := len(b.entries)
	b.kind = none
	b.entries = nil
	return n, nil
}
