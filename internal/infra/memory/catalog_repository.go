package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"itef-puzzle-service/internal/domain"
)

// CatalogLoader fetches the puzzle catalog from a backing store (e.g., document DB).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) ([]domain.Puzzle, error)
}

// CatalogRepository caches the catalog with TTL to avoid repeated DB hits.
type CatalogRepository struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	puzzles   []domain.Puzzle
	expiresAt time.Time
}

func NewCatalogRepository(loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) Catalog(ctx context.Context) ([]domain.Puzzle, error) {
	if puzzles, ok := r.cached(r.clock()); ok {
		return puzzles, nil
	}

	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		now := r.clock()
		if puzzles, ok := r.cached(now); ok {
			return puzzles, nil
		}

		puzzles, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.puzzles = puzzles
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return puzzles, nil
	})
	if err != nil {
		return nil, err
	}
	return clonePuzzles(result.([]domain.Puzzle)), nil
}

func (r *CatalogRepository) cached(now time.Time) ([]domain.Puzzle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.puzzles != nil && r.expiresAt.After(now) {
		return clonePuzzles(r.puzzles), true
	}
	return nil, false
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader serves a fixed catalog (useful for tests/demos).
type StaticCatalogLoader struct {
	puzzles []domain.Puzzle
}

func NewStaticCatalogLoader(puzzles []domain.Puzzle) *StaticCatalogLoader {
	return &StaticCatalogLoader{puzzles: puzzles}
}

func (l *StaticCatalogLoader) LoadCatalog(_ context.Context) ([]domain.Puzzle, error) {
	if len(l.puzzles) == 0 {
		return nil, domain.ErrCatalogUnavailable
	}
	return clonePuzzles(l.puzzles), nil
}

// clonePuzzles deep-copies a catalog so callers cannot mutate the cached one.
func clonePuzzles(puzzles []domain.Puzzle) []domain.Puzzle {
	out := make([]domain.Puzzle, len(puzzles))
	for i, p := range puzzles {
		p.Hints = append([]string(nil), p.Hints...)
		if p.Questions != nil {
			questions := make([]domain.Question, len(p.Questions))
			for j, q := range p.Questions {
				q.Choices = append([]domain.Choice(nil), q.Choices...)
				questions[j] = q
			}
			p.Questions = questions
		}
		out[i] = p
	}
	return out
}
