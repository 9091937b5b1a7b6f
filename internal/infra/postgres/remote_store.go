package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"itef-puzzle-service/internal/domain"
)

// RemoteStore implements app.RemoteStore on Postgres. Each attempt upsert is a
// single statement, so the counter increment and score append are atomic.
type RemoteStore struct {
	pool *pgxpool.Pool
}

func NewRemoteStore(pool *pgxpool.Pool) *RemoteStore {
	return &RemoteStore{pool: pool}
}

const attemptColumns = `puzzle_id, user_id, name, email, attempt_count, first_attempt_success, scores, last_score, last_attempt_at`

func (s *RemoteStore) MirrorAttempt(ctx context.Context, m domain.AttemptMirror) (domain.AttemptDoc, error) {
	id := domain.DocKey(m.UserID, m.PuzzleID)
	row := s.pool.QueryRow(ctx, `
		INSERT INTO attempts (id, puzzle_id, user_id, name, email, attempt_count, first_attempt_success, scores, last_score, last_attempt_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6, ARRAY[$7::int], $7, now())
		ON CONFLICT (id) DO UPDATE SET
			attempt_count   = attempts.attempt_count + 1,
			scores          = attempts.scores || EXCLUDED.scores,
			last_score      = EXCLUDED.last_score,
			last_attempt_at = EXCLUDED.last_attempt_at,
			name            = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE attempts.name END
		RETURNING `+attemptColumns,
		id, m.PuzzleID, m.UserID, m.Name, m.Email, m.IsCorrect, m.Score)

	doc, err := scanAttempt(row)
	if err != nil {
		return domain.AttemptDoc{}, fmt.Errorf("mirror attempt %s: %w", id, err)
	}
	return doc, nil
}

func (s *RemoteStore) MirrorWinner(ctx context.Context, w domain.Winner) error {
	completed := w.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO winners (id, name, email, puzzle_id, completed_at, score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			completed_at = EXCLUDED.completed_at,
			score = EXCLUDED.score`,
		w.Key(), w.Name, w.Email, w.PuzzleID, completed, w.Score)
	if err != nil {
		return fmt.Errorf("mirror winner %s: %w", w.Key(), err)
	}
	return nil
}

func (s *RemoteStore) FetchWinners(ctx context.Context, puzzleID string) ([]domain.Winner, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, email, puzzle_id, completed_at, score FROM winners
		WHERE $1 = '' OR puzzle_id = $1
		ORDER BY completed_at DESC`, puzzleID)
	if err != nil {
		return nil, fmt.Errorf("fetch winners: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Winner, 0)
	for rows.Next() {
		var w domain.Winner
		if err := rows.Scan(&w.Name, &w.Email, &w.PuzzleID, &w.CompletedAt, &w.Score); err != nil {
			return nil, fmt.Errorf("scan winner: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *RemoteStore) FetchAllAttempts(ctx context.Context) ([]domain.AttemptDoc, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+attemptColumns+` FROM attempts`)
	if err != nil {
		return nil, fmt.Errorf("fetch attempts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AttemptDoc, 0)
	for rows.Next() {
		doc, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *RemoteStore) FetchRegistrations(ctx context.Context) ([]domain.Registration, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, email, phone, attempt_count, registered_at FROM registrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch registrations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Registration, 0)
	for rows.Next() {
		var r domain.Registration
		if err := rows.Scan(&r.Name, &r.Email, &r.Phone, &r.AttemptCount, &r.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RemoteStore) RegisterParticipant(ctx context.Context, r domain.Registration) error {
	registered := r.RegisteredAt
	if registered.IsZero() {
		registered = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO registrations (email, name, phone, registered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			name  = CASE WHEN EXCLUDED.name  <> '' THEN EXCLUDED.name  ELSE registrations.name  END,
			phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE registrations.phone END`,
		domain.NormalizeEmail(r.Email), r.Name, r.Phone, registered)
	if err != nil {
		return fmt.Errorf("register %s: %w", r.Email, err)
	}
	return nil
}

func scanAttempt(row pgx.Row) (domain.AttemptDoc, error) {
	var (
		doc       domain.AttemptDoc
		scores    []int32
		lastScore *int32
	)
	err := row.Scan(&doc.PuzzleID, &doc.UserID, &doc.Name, &doc.Email, &doc.AttemptCount,
		&doc.FirstAttemptSuccess, &scores, &lastScore, &doc.LastAttemptAt)
	if err != nil {
		return domain.AttemptDoc{}, err
	}
	doc.Scores = make([]int, len(scores))
	for i, v := range scores {
		doc.Scores[i] = int(v)
	}
	if lastScore != nil {
		v := int(*lastScore)
		doc.LastScore = &v
	}
	return doc, nil
}
