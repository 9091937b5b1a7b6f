package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"itef-puzzle-service/internal/domain"
)

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	// IdentityTTL expires registrations older than this; 0 disables the check.
	IdentityTTL time.Duration
	// ExcludeParticipant is the test/master account hidden from leaderboard views.
	ExcludeParticipant string
	Now                func() time.Time
}

// Service owns the shared collaborators and hands out per-device stores.
type Service struct {
	locals      LocalStorageProvider
	remote      RemoteStore
	catalog     *catalogView
	mirror      *Mirror
	log         *zap.Logger
	opts        Options
	leaderboard *Aggregator

	mu      sync.Mutex
	devices map[string]*deviceEntry
}

type deviceEntry struct {
	device *Device
	refs   int
}

func NewService(locals LocalStorageProvider, remote RemoteStore, catalog CatalogRepository, mirror *Mirror, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	view := &catalogView{repo: catalog}
	return &Service{
		locals:      locals,
		remote:      remote,
		catalog:     view,
		mirror:      mirror,
		log:         log,
		opts:        opts,
		leaderboard: NewAggregator(remote, view, opts.ExcludeParticipant, log.Named("leaderboard")),
		devices:     make(map[string]*deviceEntry),
	}
}

// Device returns the held stores of a device, or a fresh unretained view of
// its local storage when no connection holds it.
func (s *Service) Device(deviceID string) *Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.devices[deviceID]; ok {
		return e.device
	}
	return s.newDevice(deviceID)
}

// Acquire pins the stores of a device until release is called. Concurrent
// holders of the same id share one Device; the last release drops it.
func (s *Service) Acquire(deviceID string) (*Device, func()) {
	s.mu.Lock()
	e, ok := s.devices[deviceID]
	if !ok {
		e = &deviceEntry{device: s.newDevice(deviceID)}
		s.devices[deviceID] = e
	}
	e.refs++
	s.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			e.refs--
			if e.refs == 0 && s.devices[deviceID] == e {
				delete(s.devices, deviceID)
			}
		})
	}
	return e.device, release
}

// ActiveDevices reports how many devices are currently held.
func (s *Service) ActiveDevices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

func (s *Service) newDevice(deviceID string) *Device {
	local := s.locals.ForDevice(deviceID)
	log := s.log.With(zap.String("device", deviceID))
	identity := newIdentityResolver(local, s.remote, s.mirror, s.opts.IdentityTTL, s.opts.Now, log)
	winners := newWinnerStore(local, s.remote, s.mirror, s.opts.Now, log)
	return &Device{
		ID:       deviceID,
		Identity: identity,
		Winners:  winners,
		Progress: &ProgressStore{
			local:    local,
			remote:   s.remote,
			mirror:   s.mirror,
			catalog:  s.catalog,
			identity: identity,
			winners:  winners,
			now:      s.opts.Now,
			log:      log,
		},
	}
}

// Leaderboard returns the shared aggregator.
func (s *Service) Leaderboard() *Aggregator {
	return s.leaderboard
}

// Catalog returns the ordered puzzle catalog.
func (s *Service) Catalog(ctx context.Context) ([]domain.Puzzle, error) {
	return s.catalog.Puzzles(ctx)
}

// Puzzle looks up one catalog entry.
func (s *Service) Puzzle(ctx context.Context, puzzleID string) (domain.Puzzle, error) {
	return s.catalog.Puzzle(ctx, puzzleID)
}

// Device groups the local stores of a single client.
type Device struct {
	ID       string
	Identity *IdentityResolver
	Progress *ProgressStore
	Winners  *WinnerStore
}

// Logout clears the identity and the local progress and winner caches.
// Remote records are kept.
func (d *Device) Logout(ctx context.Context) error {
	if err := d.Identity.Logout(ctx); err != nil {
		return err
	}
	return d.Reset(ctx)
}

// Reset clears local progress and winners only.
func (d *Device) Reset(ctx context.Context) error {
	if err := d.Progress.Reset(ctx); err != nil {
		return err
	}
	return d.Winners.Reset(ctx)
}

// LocalProgress implements LocalSource.
func (d *Device) LocalProgress(ctx context.Context) []domain.UserProgress {
	return d.Progress.AllProgress(ctx)
}

// LocalWinners implements LocalSource.
func (d *Device) LocalWinners(ctx context.Context, puzzleID string) []domain.WinnerRecord {
	return d.Winners.ForPuzzle(ctx, puzzleID)
}

// catalogView adds id lookups on top of a CatalogRepository.
type catalogView struct {
	repo CatalogRepository
}

func (c *catalogView) Puzzles(ctx context.Context) ([]domain.Puzzle, error) {
	if c == nil || c.repo == nil {
		return nil, domain.ErrCatalogUnavailable
	}
	puzzles, err := c.repo.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	if len(puzzles) == 0 {
		return nil, domain.ErrCatalogUnavailable
	}
	return puzzles, nil
}

func (c *catalogView) IDs(ctx context.Context) ([]string, error) {
	puzzles, err := c.Puzzles(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(puzzles))
	for _, p := range puzzles {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (c *catalogView) Puzzle(ctx context.Context, puzzleID string) (domain.Puzzle, error) {
	puzzles, err := c.Puzzles(ctx)
	if err != nil {
		return domain.Puzzle{}, err
	}
	for _, p := range puzzles {
		if p.ID == puzzleID {
			return p, nil
		}
	}
	return domain.Puzzle{}, domain.ErrPuzzleNotFound
}
