package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"itef-puzzle-service/internal/app"
	"itef-puzzle-service/internal/domain"
	"itef-puzzle-service/internal/infra/memory"
)

func TestRecordAttemptNumbersAreSequential(t *testing.T) {
	h := newHarness(t, app.Options{})
	ctx := context.Background()
	d := h.registered(t, "d1", "Alice", "a@x.com")

	for i := 0; i < 4; i++ {
		res := record(t, d, "circuit-analysis", false, 40, false)
		if res.Attempt.AttemptNumber != i+1 {
			t.Fatalf("attempt %d got number %d", i+1, res.Attempt.AttemptNumber)
		}
		h.clock.Advance(1)
	}
	if got := d.Progress.AttemptCount(ctx, "circuit-analysis"); got != 4 {
		t.Fatalf("expected 4 attempts, got %d", got)
	}
	if got := d.Progress.AttemptCount(ctx, "thermodynamics"); got != 0 {
		t.Fatalf("expected 0 attempts on untouched puzzle, got %d", got)
	}
	attempts := d.Progress.AllAttempts(ctx, "a@x.com")
	for i, a := range attempts {
		if a.AttemptNumber != i+1 {
			t.Fatalf("expected attempt numbers 1..N in order, got %+v", attempts)
		}
	}
}

func TestFirstCleanAttemptCreatesPuzzleWinner(t *testing.T) {
	h := newHarness(t, app.Options{})
	ctx := context.Background()
	d := h.registered(t, "d1", "A", "a@x.com")

	res := record(t, d, "engineering-wordle", true, 100, false)
	if res.PuzzleWin == nil || res.PuzzleWin.PuzzleID != "engineering-wordle" || res.PuzzleWin.ScoreValue() != 100 {
		t.Fatalf("expected per-puzzle winner record, got %+v", res.PuzzleWin)
	}

	rows := h.svc.Leaderboard().Attendees(ctx, d, "")
	if len(rows) != 1 || rows[0].TopicsAttended != 1 || rows[0].TotalAttempts != 1 {
		t.Fatalf("unexpected attendee rows %+v", rows)
	}

	res = record(t, d, "engineering-wordle", false, 20, false)
	if res.PuzzleWin != nil {
		t.Fatalf("failing retry must not create a winner")
	}
	if got := d.Progress.AttemptCount(ctx, "engineering-wordle"); got != 2 {
		t.Fatalf("expected attempt count 2, got %d", got)
	}
	winners := d.Winners.ForPuzzle(ctx, "engineering-wordle")
	if len(winners) != 1 || winners[0].ScoreValue() != 100 {
		t.Fatalf("existing winner must stay unchanged, got %+v", winners)
	}
}

func TestPuzzleWinRequiresFirstAttempt(t *testing.T) {
	h := newHarness(t, app.Options{})
	d := h.registered(t, "d1", "Bob", "b@x.com")

	record(t, d, "thermodynamics", false, 30, false)
	res := record(t, d, "thermodynamics", true, 100, false)
	if res.PuzzleWin != nil {
		t.Fatalf("second attempt must never qualify, got %+v", res.PuzzleWin)
	}

	if res := record(t, d, "materials-science", true, 100, true); res.PuzzleWin != nil {
		t.Fatalf("hints must disqualify")
	}
	if res := record(t, d, "circuit-analysis", true, 89, false); res.PuzzleWin != nil {
		t.Fatalf("score below 90 must disqualify")
	}
}

func TestGlobalChampionFrozenAtFirstQualification(t *testing.T) {
	h := newHarness(t, app.Options{})
	ctx := context.Background()
	d := h.registered(t, "d1", "Carol", "c@x.com")

	ids := catalogIDs()
	for i, id := range ids {
		score := 100
		if i%2 == 1 {
			score = 80
		}
		res := record(t, d, id, true, score, false)
		if i < len(ids)-1 && res.GlobalWin != nil {
			t.Fatalf("qualified before covering the catalog at %s", id)
		}
		if i == len(ids)-1 {
			if res.GlobalWin == nil || res.GlobalWin.ScoreValue() != 90 {
				t.Fatalf("expected global winner with score 90, got %+v", res.GlobalWin)
			}
		}
	}

	// a perfect retry raises the average but the record keeps its first score
	res := record(t, d, ids[1], true, 100, false)
	if res.GlobalWin != nil {
		t.Fatalf("global record must not be recreated")
	}
	global := d.Winners.ForPuzzle(ctx, domain.GlobalOverall)
	if len(global) != 1 || global[0].ScoreValue() != 90 {
		t.Fatalf("expected frozen global record, got %+v", global)
	}
}

func TestGlobalChampionNeedsEveryCatalogPuzzle(t *testing.T) {
	h := newHarness(t, app.Options{})
	d := h.registered(t, "d1", "Dan", "d@x.com")

	ids := catalogIDs()
	for _, id := range ids[:len(ids)-1] {
		if res := record(t, d, id, true, 100, false); res.GlobalWin != nil {
			t.Fatalf("qualified with %s still missing", ids[len(ids)-1])
		}
	}
}

func TestRecordAttemptRejectsUnknownPuzzle(t *testing.T) {
	h := newHarness(t, app.Options{})
	d := h.registered(t, "d1", "Eve", "e@x.com")

	_, err := d.Progress.RecordAttempt(context.Background(), domain.AttemptInput{PuzzleID: "no-such-puzzle", IsCorrect: true})
	if !errors.Is(err, domain.ErrPuzzleNotFound) || !app.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMissingScoreDefaultsFromCorrectness(t *testing.T) {
	h := newHarness(t, app.Options{})
	ctx := context.Background()
	d := h.registered(t, "d1", "Fay", "f@x.com")

	res, err := d.Progress.RecordAttempt(ctx, domain.AttemptInput{PuzzleID: "engineering-wordle", IsCorrect: true})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Attempt.ScoreValue() != 100 || res.PuzzleWin == nil {
		t.Fatalf("expected score 100 and a win, got %+v", res)
	}
	res, err = d.Progress.RecordAttempt(ctx, domain.AttemptInput{PuzzleID: "thermodynamics"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Attempt.ScoreValue() != 0 {
		t.Fatalf("expected score 0 for incorrect attempt, got %d", res.Attempt.ScoreValue())
	}
}

func TestStatusAndStats(t *testing.T) {
	h := newHarness(t, app.Options{})
	ctx := context.Background()
	d := h.registered(t, "d1", "Gus", "g@x.com")

	if got := d.Progress.PuzzleStatus(ctx, "thermodynamics"); got != domain.StatusNotStarted {
		t.Fatalf("expected not-started, got %s", got)
	}
	if d.Progress.CanShowHints(ctx, "thermodynamics") {
		t.Fatalf("hints must stay hidden before the first attempt")
	}

	record(t, d, "thermodynamics", false, 40, false)
	if got := d.Progress.PuzzleStatus(ctx, "thermodynamics"); got != domain.StatusInProgress {
		t.Fatalf("expected in-progress, got %s", got)
	}
	if !d.Progress.CanShowHints(ctx, "thermodynamics") {
		t.Fatalf("hints must show after an attempt")
	}
	record(t, d, "thermodynamics", true, 80, false)
	if got := d.Progress.PuzzleStatus(ctx, "thermodynamics"); got != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	record(t, d, "engineering-wordle", true, 95, false)
	if got := d.Progress.PuzzleStatus(ctx, "engineering-wordle"); got != domain.StatusWon {
		t.Fatalf("expected won, got %s", got)
	}

	stats := d.Progress.Stats(ctx)
	want := domain.UserStats{TotalAttempts: 3, TotalCompleted: 2, TotalWon: 1, SuccessRate: 50, AverageScore: 88}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}

func TestAttemptsMirrorIntoOneRemoteDocument(t *testing.T) {
	h := newHarness(t, app.Options{})
	ctx := context.Background()
	d := h.registered(t, "d1", "Hal", "Hal@X.com")

	record(t, d, "programming-logic", false, 10, false)
	record(t, d, "programming-logic", true, 90, false)
	h.flush(t)

	docs, err := h.remote.FetchAllAttempts(ctx)
	if err != nil {
		t.Fatalf("fetch attempts: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected one document per participant and puzzle, got %d", len(docs))
	}
	doc := docs[0]
	if doc.Email != "hal@x.com" || doc.AttemptCount != 2 || doc.FirstAttemptSuccess {
		t.Fatalf("unexpected document %+v", doc)
	}
	if len(doc.Scores) != 2 || doc.Scores[0] != 10 || doc.Scores[1] != 90 {
		t.Fatalf("expected scores appended in order, got %v", doc.Scores)
	}
}

func TestGuestAttemptsStayLocal(t *testing.T) {
	h := newHarness(t, app.Options{})
	ctx := context.Background()
	d := h.svc.Device("kiosk")

	res := record(t, d, "engineering-wordle", true, 100, false)
	if res.Attempt.UserID != domain.GuestID {
		t.Fatalf("expected guest attempt, got %+v", res.Attempt)
	}
	h.flush(t)

	docs, _ := h.remote.FetchAllAttempts(ctx)
	winners, _ := h.remote.FetchWinners(ctx, "")
	if len(docs) != 0 || len(winners) != 0 {
		t.Fatalf("guest data must not be mirrored: docs=%v winners=%v", docs, winners)
	}
	if rows := h.svc.Leaderboard().Attendees(ctx, d, ""); len(rows) != 0 {
		t.Fatalf("guest must not appear in attendees, got %+v", rows)
	}
}

func TestResetClearsLocalOnly(t *testing.T) {
	h := newHarness(t, app.Options{})
	ctx := context.Background()
	d := h.registered(t, "d1", "Ivy", "i@x.com")

	record(t, d, "engineering-wordle", true, 100, false)
	h.flush(t)
	if err := d.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := d.Progress.AttemptCount(ctx, "engineering-wordle"); got != 0 {
		t.Fatalf("expected local attempts cleared, got %d", got)
	}
	if _, ok := d.Identity.Current(ctx); !ok {
		t.Fatalf("reset must keep the identity")
	}
	winners, _ := h.remote.FetchWinners(ctx, "engineering-wordle")
	if len(winners) != 1 {
		t.Fatalf("remote winners must survive reset, got %+v", winners)
	}
}

var errDiskFull = errors.New("disk full")

// progressWriteFailing rejects writes of the progress blob and passes every other key through.
type progressWriteFailing struct {
	inner app.LocalStorageProvider
}

func (p progressWriteFailing) ForDevice(deviceID string) app.LocalStorage {
	return failingProgressStorage{LocalStorage: p.inner.ForDevice(deviceID)}
}

type failingProgressStorage struct {
	app.LocalStorage
}

func (s failingProgressStorage) Set(ctx context.Context, key, value string) error {
	if key == app.KeyProgress {
		return errDiskFull
	}
	return s.LocalStorage.Set(ctx, key, value)
}

func TestFailedLedgerWriteCreatesNoWinner(t *testing.T) {
	ctx := context.Background()
	remote := memory.NewRemoteStore()
	mirror := app.NewMirror(zap.NewNop(), 16, time.Second)
	defer mirror.Close()
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(memory.DefaultCatalog()), time.Hour)
	svc := app.NewService(progressWriteFailing{inner: memory.NewLocalStore()}, remote, catalog, mirror, zap.NewNop(), app.Options{})

	d := svc.Device("d1")
	if _, err := d.Identity.Register(ctx, "Ann", "a@x.com", "12345678"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := d.Progress.RecordAttempt(ctx, domain.AttemptInput{PuzzleID: "engineering-wordle", IsCorrect: true, Score: intPtr(100)})
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) || !errors.Is(err, errDiskFull) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if err := mirror.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if got := d.Progress.AttemptCount(ctx, "engineering-wordle"); got != 0 {
		t.Fatalf("expected no stored attempt, got %d", got)
	}
	if got := d.Winners.All(ctx); len(got) != 0 {
		t.Fatalf("expected no local winner, got %+v", got)
	}
	winners, _ := remote.FetchWinners(ctx, "")
	docs, _ := remote.FetchAllAttempts(ctx)
	if len(winners) != 0 || len(docs) != 0 {
		t.Fatalf("expected nothing mirrored, got winners=%+v docs=%+v", winners, docs)
	}
}
