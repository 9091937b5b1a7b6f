package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"itef-puzzle-service/internal/domain"
)

func TestCatalogRepositoryCaches(t *testing.T) {
	loader := &countingLoader{CatalogLoader: NewStaticCatalogLoader(DefaultCatalog())}
	repo := NewCatalogRepository(loader, time.Minute)

	puzzles, err := repo.Catalog(context.Background())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(puzzles) != 10 {
		t.Fatalf("expected 10 puzzles, got %d", len(puzzles))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.Catalog(context.Background()); err != nil {
		t.Fatalf("catalog 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestCatalogRepositoryReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{CatalogLoader: NewStaticCatalogLoader(DefaultCatalog())}
	repo := NewCatalogRepository(loader, time.Minute)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.Catalog(context.Background())
	now = now.Add(2 * time.Minute)
	_, _ = repo.Catalog(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls)
	}
}

func TestStaticCatalogLoaderEmpty(t *testing.T) {
	_, err := NewStaticCatalogLoader(nil).LoadCatalog(context.Background())
	if !errors.Is(err, domain.ErrCatalogUnavailable) {
		t.Fatalf("expected catalog unavailable, got %v", err)
	}
}

type countingLoader struct {
	CatalogLoader
	calls int
}

func (l *countingLoader) LoadCatalog(ctx context.Context) ([]domain.Puzzle, error) {
	l.calls++
	return l.CatalogLoader.LoadCatalog(ctx)
}

func TestCatalogRepositoryReturnsCopies(t *testing.T) {
	repo := NewCatalogRepository(NewStaticCatalogLoader(DefaultCatalog()), time.Minute)
	ctx := context.Background()

	first, err := repo.Catalog(ctx)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	first[0].ID = "mutated"
	first[0].Hints = append(first[0].Hints[:0], "leaked")

	second, err := repo.Catalog(ctx)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if second[0].ID != "engineering-wordle" {
		t.Fatalf("expected cached catalog untouched, got %q", second[0].ID)
	}
	if len(second[0].Hints) > 0 && second[0].Hints[0] == "leaked" {
		t.Fatalf("expected hints to be copied")
	}
}
