package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"itef-puzzle-service/internal/app"
	"itef-puzzle-service/internal/domain"
	"itef-puzzle-service/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	svc    *app.Service
	locals *memory.LocalStore
	remote *memory.RemoteStore
	mirror *app.Mirror
	clock  *fakeClock
}

func newHarness(t *testing.T, opts app.Options) *harness {
	t.Helper()
	clock := newFakeClock()
	if opts.Now == nil {
		opts.Now = clock.Now
	}
	if opts.ExcludeParticipant == "" {
		opts.ExcludeParticipant = "master@example.com"
	}
	h := &harness{
		locals: memory.NewLocalStore(),
		remote: memory.NewRemoteStoreWithClock(clock.Now),
		mirror: app.NewMirror(zap.NewNop(), 64, time.Second),
		clock:  clock,
	}
	t.Cleanup(h.mirror.Close)
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(memory.DefaultCatalog()), time.Hour)
	h.svc = app.NewService(h.locals, h.remote, catalog, h.mirror, zap.NewNop(), opts)
	return h
}

func (h *harness) registered(t *testing.T, deviceID, name, email string) *app.Device {
	t.Helper()
	d := h.svc.Device(deviceID)
	if _, err := d.Identity.Register(context.Background(), name, email, "5550001234"); err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return d
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	if err := h.mirror.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func record(t *testing.T, d *app.Device, puzzleID string, correct bool, score int, hints bool) domain.RecordResult {
	t.Helper()
	res, err := d.Progress.RecordAttempt(context.Background(), domain.AttemptInput{
		PuzzleID:         puzzleID,
		IsCorrect:        correct,
		Score:            &score,
		TimeSpentSeconds: 30,
		UsedHints:        hints,
	})
	if err != nil {
		t.Fatalf("record %s: %v", puzzleID, err)
	}
	return res
}

func catalogIDs() []string {
	var ids []string
	for _, p := range memory.DefaultCatalog() {
		ids = append(ids, p.ID)
	}
	return ids
}

func intPtr(v int) *int { return &v }
