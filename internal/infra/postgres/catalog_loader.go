package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"itef-puzzle-service/internal/domain"
)

// CatalogLoader loads puzzle JSONB rows from Postgres in display order.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context) ([]domain.Puzzle, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM puzzles ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	var puzzles []domain.Puzzle
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan puzzle: %w", err)
		}
		var p domain.Puzzle
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal puzzle: %w", err)
		}
		puzzles = append(puzzles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if len(puzzles) == 0 {
		return nil, domain.ErrCatalogUnavailable
	}
	return puzzles, nil
}

// SeedCatalog upserts puzzles keeping their slice order as display position.
func SeedCatalog(ctx context.Context, pool *pgxpool.Pool, puzzles []domain.Puzzle) error {
	for i, p := range puzzles {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal puzzle %s: %w", p.ID, err)
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO puzzles (id, position, data) VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (id) DO UPDATE SET position = EXCLUDED.position, data = EXCLUDED.data`,
			p.ID, i, string(data)); err != nil {
			return fmt.Errorf("seed puzzle %s: %w", p.ID, err)
		}
	}
	return nil
}
