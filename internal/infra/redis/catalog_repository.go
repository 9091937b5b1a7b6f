package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"itef-puzzle-service/internal/domain"
)

// CatalogLoader fetches the puzzle catalog from a backing store (e.g., document DB).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) ([]domain.Puzzle, error)
}

// CatalogRepository caches the catalog in Redis as one JSON value and falls back
// to a loader on cache miss.
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const catalogKey = "catalog:puzzles"

func (r *CatalogRepository) Catalog(ctx context.Context) ([]domain.Puzzle, error) {
	if puzzles, ok := r.cached(ctx); ok {
		return puzzles, nil
	}

	result, err, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if puzzles, ok := r.cached(ctx); ok {
			return puzzles, nil
		}

		puzzles, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(puzzles); err == nil {
			_ = r.client.Set(ctx, catalogKey, data, r.ttlWithJitter()).Err()
		}
		return puzzles, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Puzzle), nil
}

func (r *CatalogRepository) cached(ctx context.Context) ([]domain.Puzzle, bool) {
	raw, err := r.client.Get(ctx, catalogKey).Bytes()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var puzzles []domain.Puzzle
	if err := json.Unmarshal(raw, &puzzles); err != nil || len(puzzles) == 0 {
		return nil, false
	}
	return puzzles, true
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
