package app

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"itef-puzzle-service/internal/domain"
)

const minPhoneLength = 8

// IdentityResolver derives the participant of a device from its stored registration.
type IdentityResolver struct {
	local  LocalStorage
	remote RemoteStore
	mirror *Mirror
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger

	mu          sync.Mutex
	subscribers map[chan domain.Identity]struct{}
}

func newIdentityResolver(local LocalStorage, remote RemoteStore, mirror *Mirror, ttl time.Duration, now func() time.Time, log *zap.Logger) *IdentityResolver {
	return &IdentityResolver{
		local:       local,
		remote:      remote,
		mirror:      mirror,
		ttl:         ttl,
		now:         now,
		log:         log,
		subscribers: make(map[chan domain.Identity]struct{}),
	}
}

// GuestIdentity is returned whenever no valid registration exists.
func GuestIdentity() domain.Identity {
	return domain.Identity{ID: domain.GuestID, Name: "Guest User"}
}

// Current returns the registered identity and true, or the guest identity and
// false when registration is missing, malformed or older than the TTL.
func (r *IdentityResolver) Current(ctx context.Context) (domain.Identity, bool) {
	raw, ok, err := r.local.Get(ctx, KeyUserDetails)
	if err != nil {
		r.log.Warn("read identity", zap.Error(&domain.PersistenceError{Key: KeyUserDetails, Err: err}))
		return GuestIdentity(), false
	}
	if !ok {
		return GuestIdentity(), false
	}
	var details domain.UserDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		r.log.Warn("parse identity", zap.Error(&domain.PersistenceError{Key: KeyUserDetails, Err: err}))
		return GuestIdentity(), false
	}
	if strings.TrimSpace(details.Name) == "" || strings.TrimSpace(details.Email) == "" {
		return GuestIdentity(), false
	}
	if r.expired(details) {
		return GuestIdentity(), false
	}
	return identityFrom(details), true
}

func (r *IdentityResolver) expired(details domain.UserDetails) bool {
	if r.ttl <= 0 || details.LoginTimestamp == 0 {
		return false
	}
	return r.now().Sub(time.UnixMilli(details.LoginTimestamp)) > r.ttl
}

// Register validates and persists a registration, notifies subscribers and
// mirrors the registration remotely in the background.
func (r *IdentityResolver) Register(ctx context.Context, name, email, phone string) (domain.Identity, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if err := validateRegistration(name, email, phone); err != nil {
		return domain.Identity{}, err
	}

	now := r.now()
	details := domain.UserDetails{
		Name:           name,
		Email:          email,
		Mobile:         phone,
		LoginTimestamp: now.UnixMilli(),
	}
	data, err := json.Marshal(details)
	if err != nil {
		return domain.Identity{}, err
	}
	if err := r.local.Set(ctx, KeyUserDetails, string(data)); err != nil {
		return domain.Identity{}, &domain.PersistenceError{Key: KeyUserDetails, Err: err}
	}

	identity := identityFrom(details)
	r.broadcast(identity)

	reg := domain.Registration{Name: name, Email: identity.ID, Phone: phone, RegisteredAt: now}
	r.mirror.Enqueue("registerParticipant", func(ctx context.Context) error {
		return r.remote.RegisterParticipant(ctx, reg)
	})
	return identity, nil
}

// Logout forgets the stored registration and notifies subscribers.
func (r *IdentityResolver) Logout(ctx context.Context) error {
	if err := r.local.Remove(ctx, KeyUserDetails); err != nil {
		return &domain.PersistenceError{Key: KeyUserDetails, Err: err}
	}
	r.broadcast(GuestIdentity())
	return nil
}

// Subscribe returns a channel receiving identity changes.
// The caller must invoke the returned cancel function to avoid leaks.
func (r *IdentityResolver) Subscribe() (<-chan domain.Identity, func()) {
	ch := make(chan domain.Identity, 4)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *IdentityResolver) broadcast(identity domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.subscribers {
		select {
		case ch <- identity:
		default:
			// keep only the newest identity for slow readers
			select {
			case <-ch:
			default:
			}
			ch <- identity
		}
	}
}

func validateRegistration(name, email, phone string) error {
	switch {
	case name == "":
		return &domain.ValidationError{Field: "name", Message: "required"}
	case email == "":
		return &domain.ValidationError{Field: "email", Message: "required"}
	case phone == "":
		return &domain.ValidationError{Field: "phone", Message: "required"}
	case !strings.Contains(email, "@"):
		return &domain.ValidationError{Field: "email", Message: "must contain @"}
	case len(phone) < minPhoneLength:
		return &domain.ValidationError{Field: "phone", Message: "must be at least 8 characters"}
	}
	return nil
}

func identityFrom(details domain.UserDetails) domain.Identity {
	return domain.Identity{
		ID:    domain.NormalizeEmail(details.Email),
		Name:  strings.TrimSpace(details.Name),
		Email: strings.TrimSpace(details.Email),
	}
}
