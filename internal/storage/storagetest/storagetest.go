// Package storagetest runs the behavioural contract of storage.Store
// against any implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"networth/internal/core"
	"networth/internal/storage"
)

// Entry builds an entry from whole-unit amounts.
func Entry(date string, assets, debts int64, notes string) core.Entry {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Entry{
		Date:   d,
		Assets: core.Money{Cents: assets * 100},
		Debts:  core.Money{Cents: debts * 100},
		Notes:  notes,
	}
}

// Date parses an ISO date or panics.
func Date(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Keys returns the date keys of entries in order.
func Keys(entries []core.Entry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key()
	}
	return keys
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Run exercises every Store operation. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()

	t.Run("upsert keeps one entry per date", func(t *testing.T) {
		s := newStore(t)
		puts := []core.Entry{
			Entry("2024-01-01", 100, 10, "a"),
			Entry("2024-02-01", 200, 20, "b"),
			Entry("2024-01-01", 150, 15, "a2"),
			Entry("2024-03-01", 300, 30, "c"),
			Entry("2024-02-01", 250, 25, "b2"),
		}
		for _, e := range puts {
			if err := s.Put(ctx, e); err != nil {
				t.Fatalf("put %s: %v", e.Key(), err)
			}
		}
		got, err := s.ListAll(ctx, storage.Ascending)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []core.Entry{puts[2], puts[4], puts[3]}
		if len(got) != len(want) {
			t.Fatalf("expected %d entries, got %d: %v", len(want), len(got), Keys(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("entry %d = %+v, want %+v", i, got[i], want[i])
			}
		}
	})

	t.Run("list order", func(t *testing.T) {
		s := newStore(t)
		for _, d := range []string{"2024-03-01", "2023-12-31", "2024-01-15"} {
			if err := s.Put(ctx, Entry(d, 1, 0, "")); err != nil {
				t.Fatal(err)
			}
		}
		asc, _ := s.ListAll(ctx, storage.Ascending)
		if !equalKeys(Keys(asc), []string{"2023-12-31", "2024-01-15", "2024-03-01"}) {
			t.Fatalf("ascending = %v", Keys(asc))
		}
		desc, _ := s.ListAll(ctx, storage.Descending)
		if !equalKeys(Keys(desc), []string{"2024-03-01", "2024-01-15", "2023-12-31"}) {
			t.Fatalf("descending = %v", Keys(desc))
		}
	})

	t.Run("get miss", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(ctx, Date("2024-01-01")); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		_ = s.Put(ctx, Entry("2024-01-01", 1, 0, ""))
		_ = s.Put(ctx, Entry("2024-01-02", 2, 0, ""))
		for i := 0; i < 2; i++ {
			if err := s.Delete(ctx, Date("2024-01-01")); err != nil {
				t.Fatalf("delete #%d: %v", i+1, err)
			}
			got, _ := s.ListAll(ctx, storage.Ascending)
			if !equalKeys(Keys(got), []string{"2024-01-02"}) {
				t.Fatalf("after delete #%d: %v", i+1, Keys(got))
			}
		}
	})

	t.Run("clear", func(t *testing.T) {
		s := newStore(t)
		_ = s.Put(ctx, Entry("2024-01-01", 1, 0, ""))
		_ = s.Put(ctx, Entry("2024-01-02", 2, 0, ""))
		if err := s.Clear(ctx); err != nil {
			t.Fatal(err)
		}
		got, _ := s.ListAll(ctx, storage.Descending)
		if len(got) != 0 {
			t.Fatalf("expected empty store, got %v", Keys(got))
		}
	})

	t.Run("replace moves the key", func(t *testing.T) {
		s := newStore(t)
		_ = s.Put(ctx, Entry("2024-01-01", 1, 0, "old"))
		moved := Entry("2024-01-05", 5, 1, "moved")
		if err := s.Replace(ctx, Date("2024-01-01"), moved); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Get(ctx, Date("2024-01-01")); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("old key still present: %v", err)
		}
		got, err := s.Get(ctx, Date("2024-01-05"))
		if err != nil || got != moved {
			t.Fatalf("get moved = %+v, %v", got, err)
		}
	})

	t.Run("replace rejects invalid entry without touching the old key", func(t *testing.T) {
		s := newStore(t)
		old := Entry("2024-01-01", 1, 0, "old")
		_ = s.Put(ctx, old)
		bad := core.Entry{Assets: core.Money{Cents: 1}}
		if err := s.Replace(ctx, old.Date, bad); !errors.Is(err, core.ErrInvalidEntry) {
			t.Fatalf("expected ErrInvalidEntry, got %v", err)
		}
		got, err := s.Get(ctx, old.Date)
		if err != nil || got != old {
			t.Fatalf("old entry changed: %+v, %v", got, err)
		}
	})

	t.Run("put all", func(t *testing.T) {
		s := newStore(t)
		batch := []core.Entry{Entry("2024-01-01", 1, 0, ""), Entry("2024-01-02", 2, 0, "")}
		if err := s.PutAll(ctx, batch); err != nil {
			t.Fatal(err)
		}
		got, _ := s.ListAll(ctx, storage.Ascending)
		if !equalKeys(Keys(got), []string{"2024-01-01", "2024-01-02"}) {
			t.Fatalf("put all = %v", Keys(got))
		}
	})

	t.Run("put all with an invalid entry writes nothing", func(t *testing.T) {
		s := newStore(t)
		batch := []core.Entry{Entry("2024-01-01", 1, 0, ""), {Assets: core.Money{Cents: 1}}}
		if err := s.PutAll(ctx, batch); err == nil {
			t.Fatal("expected error")
		}
		got, _ := s.ListAll(ctx, storage.Ascending)
		if len(got) != 0 {
			t.Fatalf("expected no writes, got %v", Keys(got))
		}
	})
}
