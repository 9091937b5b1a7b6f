package app

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"itef-puzzle-service/internal/domain"
)

// WinnerStore is the device-local set of winner records, one per (participant, puzzle).
type WinnerStore struct {
	local  LocalStorage
	remote RemoteStore
	mirror *Mirror
	now    func() time.Time
	log    *zap.Logger

	mu sync.Mutex
}

func newWinnerStore(local LocalStorage, remote RemoteStore, mirror *Mirror, now func() time.Time, log *zap.Logger) *WinnerStore {
	return &WinnerStore{local: local, remote: remote, mirror: mirror, now: now, log: log}
}

// All returns every stored record; unreadable state counts as empty.
func (s *WinnerStore) All(ctx context.Context) []domain.WinnerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// ForPuzzle returns the records of one puzzle, earliest first.
func (s *WinnerStore) ForPuzzle(ctx context.Context, puzzleID string) []domain.WinnerRecord {
	var out []domain.WinnerRecord
	for _, w := range s.All(ctx) {
		if w.PuzzleID == puzzleID {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// Has reports whether a record exists for the (participant, puzzle) key.
func (s *WinnerStore) Has(ctx context.Context, userID, puzzleID string) bool {
	for _, w := range s.All(ctx) {
		if w.UserID == userID && w.PuzzleID == puzzleID {
			return true
		}
	}
	return false
}

// Add stores rec unless its key is already present and mirrors it when email is set.
// It returns the stored record and whether it was newly added.
func (s *WinnerStore) Add(ctx context.Context, rec domain.WinnerRecord, email string) (domain.WinnerRecord, bool, error) {
	s.mu.Lock()
	winners := s.loadLocked(ctx)
	for _, w := range winners {
		if w.UserID == rec.UserID && w.PuzzleID == rec.PuzzleID {
			s.mu.Unlock()
			return w, false, nil
		}
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = s.now().UnixMilli()
	}
	winners = append(winners, rec)
	data, err := json.Marshal(winners)
	if err == nil {
		err = s.local.Set(ctx, KeyWinners, string(data))
	}
	s.mu.Unlock()
	if err != nil {
		return domain.WinnerRecord{}, false, &domain.PersistenceError{Key: KeyWinners, Err: err}
	}

	if email != "" {
		winner := domain.Winner{
			Name:        rec.UserName,
			Email:       domain.NormalizeEmail(email),
			PuzzleID:    rec.PuzzleID,
			CompletedAt: time.UnixMilli(rec.Timestamp),
			Score:       rec.ScoreValue(),
		}
		s.mirror.Enqueue("mirrorWinner", func(ctx context.Context) error {
			return s.remote.MirrorWinner(ctx, winner)
		})
	}
	return rec, true, nil
}

// Reset removes every local record. Remote records are untouched.
func (s *WinnerStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.local.Remove(ctx, KeyWinners); err != nil {
		return &domain.PersistenceError{Key: KeyWinners, Err: err}
	}
	return nil
}

func (s *WinnerStore) loadLocked(ctx context.Context) []domain.WinnerRecord {
	raw, ok, err := s.local.Get(ctx, KeyWinners)
	if err != nil {
		s.log.Warn("read winners", zap.Error(&domain.PersistenceError{Key: KeyWinners, Err: err}))
		return nil
	}
	if !ok {
		return nil
	}
	var winners []domain.WinnerRecord
	if err := json.Unmarshal([]byte(raw), &winners); err != nil {
		s.log.Warn("parse winners", zap.Error(&domain.PersistenceError{Key: KeyWinners, Err: err}))
		return nil
	}
	return winners
}
