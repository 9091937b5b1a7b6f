package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"itef-puzzle-service/internal/domain"
)

// ProgressStore is the device-local attempt ledger. Attempts are appended per
// participant and puzzle and mirrored to the remote store in the background.
type ProgressStore struct {
	local    LocalStorage
	remote   RemoteStore
	mirror   *Mirror
	catalog  *catalogView
	identity *IdentityResolver
	winners  *WinnerStore
	now      func() time.Time
	log      *zap.Logger

	mu sync.Mutex
}

// RecordAttempt appends an attempt for the current participant, evaluates both
// winner rules and returns the stored attempt with any records it created.
func (p *ProgressStore) RecordAttempt(ctx context.Context, in domain.AttemptInput) (domain.RecordResult, error) {
	catalog, catErr := p.catalog.IDs(ctx)
	if catErr == nil && !contains(catalog, in.PuzzleID) {
		return domain.RecordResult{}, fmt.Errorf("record attempt %q: %w", in.PuzzleID, domain.ErrPuzzleNotFound)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	user, _ := p.identity.Current(ctx)
	all := p.loadLocked(ctx)
	progress := progressFor(all, user)

	v := 0
	switch {
	case in.Score != nil:
		v = *in.Score
	case in.IsCorrect:
		v = 100
	}
	score := &v
	spent := in.TimeSpentSeconds
	if spent < 0 {
		spent = 0
	}

	attempt := domain.Attempt{
		PuzzleID:      in.PuzzleID,
		UserID:        user.ID,
		AttemptNumber: len(progress.Attempts[in.PuzzleID]) + 1,
		Timestamp:     p.now().UnixMilli(),
		IsCorrect:     in.IsCorrect,
		Score:         score,
		TimeSpent:     &spent,
		UsedHints:     in.UsedHints,
	}
	progress.Attempts[in.PuzzleID] = append(progress.Attempts[in.PuzzleID], attempt)
	if attempt.IsCorrect && !contains(progress.CompletedPuzzles, in.PuzzleID) {
		progress.CompletedPuzzles = append(progress.CompletedPuzzles, in.PuzzleID)
	}

	wonPuzzle := QualifiesForPuzzleWin(attempt) && !contains(progress.WonPuzzles, in.PuzzleID)
	if wonPuzzle {
		progress.WonPuzzles = append(progress.WonPuzzles, in.PuzzleID)
	}

	// winner records and remote copies only follow a persisted attempt
	all[user.ID] = progress
	if err := p.saveLocked(ctx, all); err != nil {
		return domain.RecordResult{}, err
	}

	result := domain.RecordResult{Attempt: attempt}
	if wonPuzzle {
		rec, added, err := p.winners.Add(ctx, domain.WinnerRecord{
			PuzzleID:  in.PuzzleID,
			UserID:    user.ID,
			UserName:  user.Name,
			Timestamp: attempt.Timestamp,
			Score:     attempt.Score,
			TimeSpent: attempt.TimeSpent,
		}, user.Email)
		if err != nil {
			p.log.Warn("store puzzle winner", zap.String("puzzleId", in.PuzzleID), zap.Error(err))
		} else if added {
			result.PuzzleWin = &rec
		}
	}

	if user.Email != "" {
		m := domain.AttemptMirror{
			UserID:    user.ID,
			PuzzleID:  in.PuzzleID,
			IsCorrect: in.IsCorrect,
			Name:      user.Name,
			Email:     user.ID,
			Score:     *score,
		}
		p.mirror.Enqueue("mirrorAttempt", func(ctx context.Context) error {
			_, err := p.remote.MirrorAttempt(ctx, m)
			return err
		})
	}

	if avg, ok := QualifiesForGlobal(catalog, MaxScores(progress)); ok && !p.winners.Has(ctx, user.ID, domain.GlobalOverall) {
		zero := 0
		rec, added, err := p.winners.Add(ctx, domain.WinnerRecord{
			PuzzleID:  domain.GlobalOverall,
			UserID:    user.ID,
			UserName:  user.Name,
			Timestamp: attempt.Timestamp,
			Score:     &avg,
			TimeSpent: &zero,
		}, user.Email)
		if err != nil {
			p.log.Warn("store global winner", zap.Error(err))
		} else if added {
			result.GlobalWin = &rec
		}
	}
	return result, nil
}

// AttemptCount returns how many attempts the current participant made on puzzleID.
func (p *ProgressStore) AttemptCount(ctx context.Context, puzzleID string) int {
	return len(p.Progress(ctx).Attempts[puzzleID])
}

// Progress returns the current participant's progress, empty if none is stored.
func (p *ProgressStore) Progress(ctx context.Context) domain.UserProgress {
	user, _ := p.identity.Current(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	return progressFor(p.loadLocked(ctx), user)
}

// AllProgress returns the progress of every participant recorded on this device.
func (p *ProgressStore) AllProgress(ctx context.Context) []domain.UserProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	all := p.loadLocked(ctx)
	out := make([]domain.UserProgress, 0, len(all))
	for _, progress := range all {
		out = append(out, progress)
	}
	return out
}

// AllAttempts returns local attempts of participantID, or of everyone when it is empty.
func (p *ProgressStore) AllAttempts(ctx context.Context, participantID string) []domain.Attempt {
	var out []domain.Attempt
	for _, progress := range p.AllProgress(ctx) {
		if participantID != "" && progress.UserID != participantID {
			continue
		}
		for _, attempts := range progress.Attempts {
			out = append(out, attempts...)
		}
	}
	return out
}

// PuzzleStatus reports where the current participant stands on a puzzle.
func (p *ProgressStore) PuzzleStatus(ctx context.Context, puzzleID string) domain.PuzzleStatus {
	progress := p.Progress(ctx)
	switch {
	case contains(progress.WonPuzzles, puzzleID):
		return domain.StatusWon
	case contains(progress.CompletedPuzzles, puzzleID):
		return domain.StatusCompleted
	case len(progress.Attempts[puzzleID]) > 0:
		return domain.StatusInProgress
	default:
		return domain.StatusNotStarted
	}
}

// CanShowHints is true once the participant has at least one attempt on the puzzle.
func (p *ProgressStore) CanShowHints(ctx context.Context, puzzleID string) bool {
	return p.AttemptCount(ctx, puzzleID) > 0
}

// AverageScore is the rounded mean of per-puzzle best scores over attempted puzzles.
func (p *ProgressStore) AverageScore(ctx context.Context) int {
	return averageOf(MaxScores(p.Progress(ctx)))
}

// Stats summarizes the current participant's local progress.
func (p *ProgressStore) Stats(ctx context.Context) domain.UserStats {
	progress := p.Progress(ctx)
	stats := domain.UserStats{
		TotalCompleted: len(progress.CompletedPuzzles),
		TotalWon:       len(progress.WonPuzzles),
	}
	attempted := 0
	for _, attempts := range progress.Attempts {
		stats.TotalAttempts += len(attempts)
		if len(attempts) > 0 {
			attempted++
		}
	}
	if attempted > 0 {
		stats.SuccessRate = RoundPercent(stats.TotalWon*100, attempted)
	}
	stats.AverageScore = averageOf(MaxScores(progress))
	return stats
}

// Reset clears all local progress. Remote documents are untouched.
func (p *ProgressStore) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.local.Remove(ctx, KeyProgress); err != nil {
		return &domain.PersistenceError{Key: KeyProgress, Err: err}
	}
	return nil
}

func (p *ProgressStore) loadLocked(ctx context.Context) map[string]domain.UserProgress {
	all := make(map[string]domain.UserProgress)
	raw, ok, err := p.local.Get(ctx, KeyProgress)
	if err != nil {
		p.log.Warn("read progress", zap.Error(&domain.PersistenceError{Key: KeyProgress, Err: err}))
		return all
	}
	if !ok {
		return all
	}
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		p.log.Warn("parse progress", zap.Error(&domain.PersistenceError{Key: KeyProgress, Err: err}))
		return make(map[string]domain.UserProgress)
	}
	return all
}

func (p *ProgressStore) saveLocked(ctx context.Context, all map[string]domain.UserProgress) error {
	data, err := json.Marshal(all)
	if err != nil {
		return &domain.PersistenceError{Key: KeyProgress, Err: err}
	}
	if err := p.local.Set(ctx, KeyProgress, string(data)); err != nil {
		return &domain.PersistenceError{Key: KeyProgress, Err: err}
	}
	return nil
}

func progressFor(all map[string]domain.UserProgress, user domain.Identity) domain.UserProgress {
	progress, ok := all[user.ID]
	if !ok {
		progress = domain.UserProgress{UserID: user.ID, UserName: user.Name}
	}
	if progress.Attempts == nil {
		progress.Attempts = make(map[string][]domain.Attempt)
	}
	if progress.CompletedPuzzles == nil {
		progress.CompletedPuzzles = []string{}
	}
	if progress.WonPuzzles == nil {
		progress.WonPuzzles = []string{}
	}
	return progress
}

func averageOf(scores map[string]int) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return RoundPercent(sum, len(scores))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err came from an unknown puzzle id.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrPuzzleNotFound)
}
