package app

import (
	"context"

	"itef-puzzle-service/internal/domain"
)

// Keys under which device-local state is persisted.
const (
	KeyProgress    = "puzzleProgress"
	KeyWinners     = "puzzleWinners"
	KeyUserDetails = "itef_user_details"
)

// LocalStorage is a device-scoped string key/value store (the browser's local storage).
type LocalStorage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// LocalStorageProvider hands out the local storage of one device.
type LocalStorageProvider interface {
	ForDevice(deviceID string) LocalStorage
}

// RemoteStore is the shared document store that every device mirrors into.
type RemoteStore interface {
	// MirrorAttempt upserts the (participant, puzzle) document: created on the first
	// call, attemptCount incremented and score appended afterwards.
	MirrorAttempt(ctx context.Context, m domain.AttemptMirror) (domain.AttemptDoc, error)
	// MirrorWinner upserts a winner keyed by email_puzzleId.
	MirrorWinner(ctx context.Context, w domain.Winner) error
	// FetchWinners returns all winners, or only those of puzzleID when it is non-empty.
	FetchWinners(ctx context.Context, puzzleID string) ([]domain.Winner, error)
	FetchAllAttempts(ctx context.Context) ([]domain.AttemptDoc, error)
	FetchRegistrations(ctx context.Context) ([]domain.Registration, error)
	// RegisterParticipant upserts a registration without clearing existing fields.
	RegisterParticipant(ctx context.Context, r domain.Registration) error
}

// CatalogRepository loads the ordered puzzle catalog.
type CatalogRepository interface {
	Catalog(ctx context.Context) ([]domain.Puzzle, error)
}
