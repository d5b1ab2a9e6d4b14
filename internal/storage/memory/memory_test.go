package memory

import (
	"context"
	"testing"

	"networth/internal/storage"
	"networth/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestNewSeeds(t *testing.T) {
	s := New(
		storagetest.Entry("2024-01-01", 1, 0, ""),
		storagetest.Entry("2024-01-01", 2, 0, ""),
		storagetest.Entry("2024-02-01", 3, 0, ""),
	)
	if s.Len() != 2 {
		t.Fatalf("expected 2 seeded entries, got %d", s.Len())
	}
	e, err := s.Get(context.Background(), storagetest.Date("2024-01-01"))
	if err != nil || e.Assets.Cents != 200 {
		t.Fatalf("expected last seed to win, got %+v, %v", e, err)
	}
}
