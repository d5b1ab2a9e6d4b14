package memory

import (
	"context"
	"sort"
	"sync"

	"networth/internal/core"
	"networth/internal/storage"
)

// Store keeps entries in a map keyed by date. Each method holds the lock
// for its whole duration, so every mutation is atomic.
type Store struct {
	mu    sync.Mutex
	items map[string]core.Entry
}

var _ storage.Store = (*Store)(nil)

func New(seed ...core.Entry) *Store {
	s := &Store{items: make(map[string]core.Entry, len(seed))}
	for _, e := range seed {
		s.items[e.Key()] = e
	}
	return s
}

// Put stores the entry, overwriting any entry for the same date.
func (s *Store) Put(_ context.Context, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[e.Key()] = e
	return nil
}

func (s *Store) Get(_ context.Context, date core.Date) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[date.String()]
	if !ok {
		return core.Entry{}, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) Delete(_ context.Context, date core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, date.String())
	return nil
}

func (s *Store) ListAll(_ context.Context, order storage.Order) ([]core.Entry, error) {
	s.mu.Lock()
	out := make([]core.Entry, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e)
	}
	s.mu.Unlock()

	// ISO keys sort lexically in date order.
	sort.Slice(out, func(i, j int) bool {
		if order == storage.Ascending {
			return out[i].Key() < out[j].Key()
		}
		return out[i].Key() > out[j].Key()
	})
	return out, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]core.Entry)
	return nil
}

func (s *Store) Replace(_ context.Context, oldDate core.Date, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, oldDate.String())
	s.items[e.Key()] = e
	return nil
}

func (s *Store) PutAll(_ context.Context, entries []core.Entry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.items[e.Key()] = e
	}
	return nil
}

func (s *Store) Close() error { return nil }

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
