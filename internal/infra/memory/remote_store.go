package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"itef-puzzle-service/internal/domain"
)

// RemoteStore is an in-process document store implementing app.RemoteStore.
type RemoteStore struct {
	clock func() time.Time

	mu            sync.RWMutex
	attempts      map[string]*domain.AttemptDoc
	winners       map[string]domain.Winner
	registrations map[string]domain.Registration
}

func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		clock:         time.Now,
		attempts:      make(map[string]*domain.AttemptDoc),
		winners:       make(map[string]domain.Winner),
		registrations: make(map[string]domain.Registration),
	}
}

// NewRemoteStoreWithClock is test-only for deterministic timestamps.
func NewRemoteStoreWithClock(now func() time.Time) *RemoteStore {
	s := NewRemoteStore()
	s.clock = now
	return s
}

func (s *RemoteStore) MirrorAttempt(_ context.Context, m domain.AttemptMirror) (domain.AttemptDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.DocKey(m.UserID, m.PuzzleID)
	score := m.Score
	now := s.clock()
	doc, ok := s.attempts[key]
	if !ok {
		doc = &domain.AttemptDoc{
			PuzzleID:            m.PuzzleID,
			UserID:              m.UserID,
			Name:                m.Name,
			Email:               m.Email,
			FirstAttemptSuccess: m.IsCorrect,
		}
		s.attempts[key] = doc
	}
	doc.AttemptCount++
	doc.Scores = append(doc.Scores, score)
	doc.LastScore = &score
	doc.LastAttemptAt = now
	if m.Name != "" {
		doc.Name = m.Name
	}
	return copyDoc(*doc), nil
}

func (s *RemoteStore) MirrorWinner(_ context.Context, w domain.Winner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.CompletedAt.IsZero() {
		w.CompletedAt = s.clock()
	}
	s.winners[w.Key()] = w
	return nil
}

func (s *RemoteStore) FetchWinners(_ context.Context, puzzleID string) ([]domain.Winner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Winner, 0, len(s.winners))
	for _, w := range s.winners {
		if puzzleID != "" && w.PuzzleID != puzzleID {
			continue
		}
		out = append(out, w)
	}
	// newest first, like the hosted store's completedAt index
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	return out, nil
}

func (s *RemoteStore) FetchAllAttempts(_ context.Context) ([]domain.AttemptDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AttemptDoc, 0, len(s.attempts))
	for _, doc := range s.attempts {
		out = append(out, copyDoc(*doc))
	}
	return out, nil
}

func (s *RemoteStore) FetchRegistrations(_ context.Context) ([]domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Registration, 0, len(s.registrations))
	for _, r := range s.registrations {
		out = append(out, r)
	}
	return out, nil
}

func (s *RemoteStore) RegisterParticipant(_ context.Context, r domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.NormalizeEmail(r.Email)
	existing, ok := s.registrations[key]
	if !ok {
		existing = domain.Registration{Email: key, RegisteredAt: r.RegisteredAt}
		if existing.RegisteredAt.IsZero() {
			existing.RegisteredAt = s.clock()
		}
	}
	if r.Name != "" {
		existing.Name = r.Name
	}
	if r.Phone != "" {
		existing.Phone = r.Phone
	}
	s.registrations[key] = existing
	return nil
}

// SeedAttempt stores a document verbatim (tests, imports).
func (s *RemoteStore) SeedAttempt(doc domain.AttemptDoc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := copyDoc(doc)
	s.attempts[domain.DocKey(doc.UserID, doc.PuzzleID)] = &d
}

func copyDoc(doc domain.AttemptDoc) domain.AttemptDoc {
	doc.Scores = append([]int(nil), doc.Scores...)
	if doc.LastScore != nil {
		v := *doc.LastScore
		doc.LastScore = &v
	}
	return doc
}
