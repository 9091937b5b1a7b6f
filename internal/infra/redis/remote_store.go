package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"itef-puzzle-service/internal/domain"
)

// RemoteStore implements app.RemoteStore on Redis.
// Attempt documents are hashes at attempt:{email}_{puzzleId}; attemptCount is
// bumped with HINCRBY and scores are RPUSHed to attempt:{id}:scores, so
// concurrent writers never lose an update. Sets index every document kind.
type RemoteStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewRemoteStore(client *redis.Client) *RemoteStore {
	return &RemoteStore{client: client, clock: time.Now}
}

const (
	attemptsIndex      = "attempts"
	winnersIndex       = "winners"
	registrationsIndex = "registrations"
)

func attemptKey(id string) string      { return "attempt:" + id }
func scoresKey(id string) string       { return "attempt:" + id + ":scores" }
func winnerKey(id string) string       { return "winner:" + id }
func registrationKey(id string) string { return "registration:" + id }

func (s *RemoteStore) MirrorAttempt(ctx context.Context, m domain.AttemptMirror) (domain.AttemptDoc, error) {
	id := domain.DocKey(m.UserID, m.PuzzleID)
	key := attemptKey(id)
	now := s.clock()

	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, key, "puzzleId", m.PuzzleID)
	pipe.HSetNX(ctx, key, "userId", m.UserID)
	pipe.HSetNX(ctx, key, "email", m.Email)
	pipe.HSetNX(ctx, key, "firstAttemptSuccess", strconv.FormatBool(m.IsCorrect))
	pipe.HSet(ctx, key, "name", m.Name, "lastScore", m.Score, "lastAttemptAt", now.UnixMilli())
	pipe.HIncrBy(ctx, key, "attemptCount", 1)
	pipe.RPush(ctx, scoresKey(id), m.Score)
	pipe.SAdd(ctx, attemptsIndex, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.AttemptDoc{}, fmt.Errorf("mirror attempt %s: %w", id, err)
	}

	docs, err := s.loadAttempts(ctx, []string{id})
	if err != nil {
		return domain.AttemptDoc{}, err
	}
	if len(docs) == 0 {
		return domain.AttemptDoc{}, fmt.Errorf("mirror attempt %s: document missing after write", id)
	}
	return docs[0], nil
}

func (s *RemoteStore) MirrorWinner(ctx context.Context, w domain.Winner) error {
	id := w.Key()
	completed := w.CompletedAt
	if completed.IsZero() {
		completed = s.clock()
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, winnerKey(id),
		"name", w.Name,
		"email", w.Email,
		"puzzleId", w.PuzzleID,
		"completedAt", completed.UnixMilli(),
		"score", w.Score,
	)
	pipe.SAdd(ctx, winnersIndex, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror winner %s: %w", id, err)
	}
	return nil
}

func (s *RemoteStore) FetchWinners(ctx context.Context, puzzleID string) ([]domain.Winner, error) {
	ids, err := s.client.SMembers(ctx, winnersIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("list winners: %w", err)
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	pipe := s.client.Pipeline()
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, winnerKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("load winners: %w", err)
		}
	}

	out := make([]domain.Winner, 0, len(ids))
	for _, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		w := domain.Winner{
			Name:        h["name"],
			Email:       h["email"],
			PuzzleID:    h["puzzleId"],
			CompletedAt: parseMillis(h["completedAt"]),
			Score:       parseInt(h["score"]),
		}
		if puzzleID != "" && w.PuzzleID != puzzleID {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *RemoteStore) FetchAllAttempts(ctx context.Context) ([]domain.AttemptDoc, error) {
	ids, err := s.client.SMembers(ctx, attemptsIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return s.loadAttempts(ctx, ids)
}

func (s *RemoteStore) loadAttempts(ctx context.Context, ids []string) ([]domain.AttemptDoc, error) {
	if len(ids) == 0 {
		return []domain.AttemptDoc{}, nil
	}
	hashes := make([]*redis.MapStringStringCmd, len(ids))
	scores := make([]*redis.StringSliceCmd, len(ids))
	pipe := s.client.Pipeline()
	for i, id := range ids {
		hashes[i] = pipe.HGetAll(ctx, attemptKey(id))
		scores[i] = pipe.LRange(ctx, scoresKey(id), 0, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}

	out := make([]domain.AttemptDoc, 0, len(ids))
	for i := range ids {
		h := hashes[i].Val()
		if len(h) == 0 {
			continue
		}
		doc := domain.AttemptDoc{
			PuzzleID:            h["puzzleId"],
			UserID:              h["userId"],
			Name:                h["name"],
			Email:               h["email"],
			AttemptCount:        parseInt(h["attemptCount"]),
			FirstAttemptSuccess: h["firstAttemptSuccess"] == "true",
			LastAttemptAt:       parseMillis(h["lastAttemptAt"]),
		}
		if raw, ok := h["lastScore"]; ok {
			v := parseInt(raw)
			doc.LastScore = &v
		}
		for _, raw := range scores[i].Val() {
			doc.Scores = append(doc.Scores, parseInt(raw))
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *RemoteStore) FetchRegistrations(ctx context.Context) ([]domain.Registration, error) {
	ids, err := s.client.SMembers(ctx, registrationsIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	pipe := s.client.Pipeline()
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, registrationKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("load registrations: %w", err)
		}
	}
	out := make([]domain.Registration, 0, len(ids))
	for _, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		out = append(out, domain.Registration{
			Name:         h["name"],
			Email:        h["email"],
			Phone:        h["phone"],
			AttemptCount: parseInt(h["attemptCount"]),
			RegisteredAt: parseMillis(h["registeredAt"]),
		})
	}
	return out, nil
}

func (s *RemoteStore) RegisterParticipant(ctx context.Context, r domain.Registration) error {
	id := domain.NormalizeEmail(r.Email)
	key := registrationKey(id)
	registered := r.RegisteredAt
	if registered.IsZero() {
		registered = s.clock()
	}

	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, key, "email", id)
	pipe.HSetNX(ctx, key, "registeredAt", registered.UnixMilli())
	if r.Name != "" {
		pipe.HSet(ctx, key, "name", r.Name)
	}
	if r.Phone != "" {
		pipe.HSet(ctx, key, "phone", r.Phone)
	}
	pipe.SAdd(ctx, registrationsIndex, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register %s: %w", id, err)
	}
	return nil
}

func parseInt(raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func parseMillis(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
