package app

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"itef-puzzle-service/internal/domain"
)

// RegisteredPuzzleID marks roster rows that come from a registration only.
const RegisteredPuzzleID = "registered"

// Roster joins remote registrations with remote attempt documents, optionally
// limited to attempts on puzzleID. Fetch failures yield partial results.
func (a *Aggregator) Roster(ctx context.Context, puzzleID string) []domain.AttendeeDoc {
	var regs []domain.Registration
	var docs []domain.AttemptDoc

	var g errgroup.Group
	g.Go(func() error {
		r, err := a.remote.FetchRegistrations(ctx)
		if err != nil {
			a.log.Warn("fetch registrations", zap.Error(&domain.RemoteSyncError{Op: "fetchRegistrations", Err: err}))
			return nil
		}
		regs = r
		return nil
	})
	g.Go(func() error {
		d, err := a.remote.FetchAllAttempts(ctx)
		if err != nil {
			a.log.Warn("fetch attempts", zap.Error(&domain.RemoteSyncError{Op: "fetchAllAttempts", Err: err}))
			return nil
		}
		docs = d
		return nil
	})
	_ = g.Wait()

	return JoinAttendees(regs, docs, puzzleID)
}

// JoinAttendees merges registrations and attempt documents by email. Attempt
// counts take the maximum seen, first-attempt success is OR-ed, and rows are
// ordered by attempt count descending.
func JoinAttendees(regs []domain.Registration, docs []domain.AttemptDoc, puzzleID string) []domain.AttendeeDoc {
	byEmail := make(map[string]*domain.AttendeeDoc)
	order := make([]string, 0, len(regs))

	for _, r := range regs {
		email := domain.NormalizeEmail(r.Email)
		if email == "" {
			continue
		}
		if _, ok := byEmail[email]; !ok {
			order = append(order, email)
		}
		byEmail[email] = &domain.AttendeeDoc{
			UserID:        email,
			Name:          nameOr(r.Name),
			Email:         email,
			PuzzleID:      RegisteredPuzzleID,
			AttemptCount:  r.AttemptCount,
			LastAttemptAt: r.RegisteredAt,
		}
	}

	for _, d := range docs {
		if puzzleID != "" && d.PuzzleID != puzzleID {
			continue
		}
		email := d.Email
		if email == "" {
			email = d.UserID
		}
		email = domain.NormalizeEmail(email)
		count := d.AttemptCount
		if count < 1 {
			count = 1
		}
		if existing, ok := byEmail[email]; ok {
			if count > existing.AttemptCount {
				existing.AttemptCount = count
			}
			if d.PuzzleID != "" {
				existing.PuzzleID = d.PuzzleID
			}
			existing.FirstAttemptSuccess = existing.FirstAttemptSuccess || d.FirstAttemptSuccess
			continue
		}
		order = append(order, email)
		byEmail[email] = &domain.AttendeeDoc{
			UserID:              d.UserID,
			Name:                nameOr(d.Name),
			Email:               email,
			PuzzleID:            d.PuzzleID,
			AttemptCount:        count,
			LastAttemptAt:       d.LastAttemptAt,
			FirstAttemptSuccess: d.FirstAttemptSuccess,
		}
	}

	out := make([]domain.AttendeeDoc, 0, len(order))
	for _, email := range order {
		out = append(out, *byEmail[email])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AttemptCount > out[j].AttemptCount
	})
	return out
}

func nameOr(name string) string {
	if name == "" {
		return "Anonymous"
	}
	return name
}
