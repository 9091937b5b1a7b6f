package app

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"itef-puzzle-service/internal/domain"
)

// LocalSource exposes the device-local state the aggregator merges with remote data.
type LocalSource interface {
	LocalProgress(ctx context.Context) []domain.UserProgress
	LocalWinners(ctx context.Context, puzzleID string) []domain.WinnerRecord
}

// Aggregator rebuilds the Winners and Attendees views from remote and local
// sources on every call. It never writes.
type Aggregator struct {
	remote  RemoteStore
	catalog *catalogView
	exclude string
	log     *zap.Logger
}

func NewAggregator(remote RemoteStore, catalog *catalogView, exclude string, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		remote:  remote,
		catalog: catalog,
		exclude: domain.NormalizeEmail(exclude),
		log:     log,
	}
}

type participantStats struct {
	name          string
	nameAt        time.Time
	email         string
	scores        map[string]int
	attempts      map[string]int
	firstTry      bool
	lastAttemptAt time.Time
}

// Winners returns the winners view. With an empty puzzleID the global champions
// are recomputed from raw attempts; otherwise stored winners of that puzzle are
// merged. local may be nil.
func (a *Aggregator) Winners(ctx context.Context, local LocalSource, puzzleID string) []domain.Winner {
	if puzzleID == "" {
		return a.globalWinners(ctx, local)
	}
	return a.puzzleWinners(ctx, local, puzzleID)
}

func (a *Aggregator) globalWinners(ctx context.Context, local LocalSource) []domain.Winner {
	stats := a.collect(ctx, local, "")
	catalog, err := a.catalog.IDs(ctx)
	if err != nil {
		a.log.Debug("catalog unavailable, using fallback size", zap.Error(err))
		catalog = nil
	}

	winners := make([]domain.Winner, 0)
	for _, s := range stats {
		avg, ok := QualifiesForGlobal(catalog, s.scores)
		if !ok {
			continue
		}
		winners = append(winners, domain.Winner{
			Name:        s.name,
			Email:       s.email,
			PuzzleID:    domain.GlobalOverall,
			CompletedAt: s.lastAttemptAt,
			Score:       avg,
		})
	}
	sortWinners(winners)
	return winners
}

func (a *Aggregator) puzzleWinners(ctx context.Context, local LocalSource, puzzleID string) []domain.Winner {
	var remote []domain.Winner
	var records []domain.WinnerRecord

	var g errgroup.Group
	g.Go(func() error {
		ws, err := a.remote.FetchWinners(ctx, puzzleID)
		if err != nil {
			a.log.Warn("fetch winners", zap.Error(&domain.RemoteSyncError{Op: "fetchWinners", Err: err}))
			return nil
		}
		remote = ws
		return nil
	})
	if local != nil {
		g.Go(func() error {
			records = local.LocalWinners(ctx, puzzleID)
			return nil
		})
	}
	_ = g.Wait()

	candidates := make([]domain.Winner, 0, len(remote)+len(records))
	for _, w := range remote {
		if w.PuzzleID != puzzleID {
			continue
		}
		w.Email = domain.NormalizeEmail(w.Email)
		candidates = append(candidates, w)
	}
	for _, r := range records {
		email := domain.NormalizeEmail(r.UserID)
		if email == "" || email == domain.GuestID {
			continue
		}
		candidates = append(candidates, domain.Winner{
			Name:        r.UserName,
			Email:       email,
			PuzzleID:    r.PuzzleID,
			CompletedAt: time.UnixMilli(r.Timestamp),
			Score:       r.ScoreValue(),
		})
	}

	byKey := make(map[string]domain.Winner)
	order := make([]string, 0)
	for _, w := range candidates {
		if w.Email == a.exclude || w.Score < WinningScore {
			continue
		}
		key := w.Key()
		current, ok := byKey[key]
		if !ok {
			order = append(order, key)
			byKey[key] = w
			continue
		}
		if outranks(w, current) {
			byKey[key] = w
		}
	}

	winners := make([]domain.Winner, 0, len(byKey))
	for _, key := range order {
		winners = append(winners, byKey[key])
	}
	sortWinners(winners)
	return winners
}

// outranks applies the merge precedence: a global-overall entry beats a
// puzzle-specific one, otherwise the higher score wins.
func outranks(candidate, current domain.Winner) bool {
	if candidate.IsGlobal() != current.IsGlobal() {
		return candidate.IsGlobal()
	}
	return candidate.Score > current.Score
}

// Attendees returns every participant with at least one attempt, optionally
// restricted to one puzzle, ordered by topics attended then total attempts.
func (a *Aggregator) Attendees(ctx context.Context, local LocalSource, puzzleID string) []domain.AttendeeRow {
	stats := a.collect(ctx, local, puzzleID)
	rows := make([]domain.AttendeeRow, 0, len(stats))
	for _, s := range stats {
		total := 0
		for _, n := range s.attempts {
			total += n
		}
		rows = append(rows, domain.AttendeeRow{
			Name:                s.name,
			Email:               s.email,
			TopicsAttended:      len(s.attempts),
			TotalAttempts:       total,
			FirstAttemptSuccess: s.firstTry,
			LastAttemptAt:       s.lastAttemptAt,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TopicsAttended != rows[j].TopicsAttended {
			return rows[i].TopicsAttended > rows[j].TopicsAttended
		}
		if rows[i].TotalAttempts != rows[j].TotalAttempts {
			return rows[i].TotalAttempts > rows[j].TotalAttempts
		}
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Email < rows[j].Email
	})
	return rows
}

// collect fetches remote attempt documents and local progress concurrently and
// merges them per participant. A failing source contributes nothing.
func (a *Aggregator) collect(ctx context.Context, local LocalSource, puzzleID string) map[string]*participantStats {
	var docs []domain.AttemptDoc
	var progress []domain.UserProgress

	var g errgroup.Group
	g.Go(func() error {
		all, err := a.remote.FetchAllAttempts(ctx)
		if err != nil {
			a.log.Warn("fetch attempts", zap.Error(&domain.RemoteSyncError{Op: "fetchAllAttempts", Err: err}))
			return nil
		}
		docs = all
		return nil
	})
	if local != nil {
		g.Go(func() error {
			progress = local.LocalProgress(ctx)
			return nil
		})
	}
	_ = g.Wait()

	records := append(fromDocs(docs), fromProgressList(progress)...)
	return a.merge(records, puzzleID)
}

// merge groups records by participant. Overlapping sources for the same
// (participant, puzzle) take the maximum count and maximum score, never the sum.
func (a *Aggregator) merge(records []domain.AttemptRecord, puzzleID string) map[string]*participantStats {
	out := make(map[string]*participantStats)
	for _, r := range records {
		if r.ParticipantID == "" || r.ParticipantID == domain.GuestID || r.ParticipantID == a.exclude {
			continue
		}
		if r.PuzzleID == "" || (puzzleID != "" && r.PuzzleID != puzzleID) {
			continue
		}
		s, ok := out[r.ParticipantID]
		if !ok {
			s = &participantStats{
				email:    r.ParticipantID,
				scores:   make(map[string]int),
				attempts: make(map[string]int),
			}
			out[r.ParticipantID] = s
		}
		if r.Name != "" && (s.name == "" || r.LastAttemptAt.After(s.nameAt)) {
			s.name = r.Name
			s.nameAt = r.LastAttemptAt
		}
		if best, seen := s.scores[r.PuzzleID]; !seen || r.MaxScore > best {
			s.scores[r.PuzzleID] = r.MaxScore
		}
		if r.AttemptCount > s.attempts[r.PuzzleID] {
			s.attempts[r.PuzzleID] = r.AttemptCount
		}
		if r.FirstAttemptSuccess {
			s.firstTry = true
		}
		if r.LastAttemptAt.After(s.lastAttemptAt) {
			s.lastAttemptAt = r.LastAttemptAt
		}
	}
	for _, s := range out {
		if s.name == "" {
			s.name = "Anonymous"
		}
	}
	return out
}

func sortWinners(winners []domain.Winner) {
	sort.SliceStable(winners, func(i, j int) bool {
		if winners[i].Score != winners[j].Score {
			return winners[i].Score > winners[j].Score
		}
		if winners[i].Name != winners[j].Name {
			return winners[i].Name < winners[j].Name
		}
		return winners[i].Email < winners[j].Email
	})
}
