// Package credential is the credential store: the directory of registered
// accounts keyed by email, holding derived password material.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/kv"
	"github.com/getkayan/accountguard/core/logger"
	"github.com/getkayan/accountguard/core/policy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store struct {
	mu     sync.Mutex
	kv     kv.Store
	hasher domain.Hasher
	idGen  domain.IDGenerator
	log    *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*Store)

func WithIDGenerator(gen domain.IDGenerator) Option {
	return func(s *Store) { s.idGen = gen }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

func NewStore(store kv.Store, hasher domain.Hasher, opts ...Option) *Store {
	s := &Store{
		kv:     store,
		hasher: hasher,
		idGen:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDefault(s.log).Named("credential")
	return s
}

// NormalizeEmail trims surrounding whitespace. Emails are otherwise compared
// exactly, so "A@b.com" and "a@b.com" are distinct accounts.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// Register creates an unverified account.
func (s *Store) Register(ctx context.Context, name, email, password string, now time.Time) (*domain.UserRecord, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("credential: %w: email is required", domain.ErrInvalidInput)
	}
	if err := policy.Validate(password); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrWeakPassword, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.find(ctx, email); err == nil {
		return nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("credential: hash password: %w", err)
	}

	u := &domain.UserRecord{
		ID:           s.idGen(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hashed,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err := kv.PutJSON(ctx, s.kv, kv.TableUsers, email, u); err != nil {
		return nil, err
	}

	s.log.Debug("user registered", zap.String("email", email), zap.String("id", u.ID))
	return u, nil
}

// FindByEmail returns domain.ErrNotFound when no account exists.
func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.UserRecord, error) {
	return s.find(ctx, NormalizeEmail(email))
}

// Authenticate looks up email and compares password against its credential
// material. Unknown emails still pay for one hash comparison.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*domain.UserRecord, error) {
	u, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.Compare(password, s.dummy())
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	if !s.hasher.Compare(password, u.PasswordHash) {
		return nil, domain.ErrWrongPassword
	}
	return u, nil
}

// UpdatePassword replaces the credential material of an existing account.
func (s *Store) UpdatePassword(ctx context.Context, email, newPassword string, now time.Time) error {
	if err := policy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrWeakPassword, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.find(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("credential: hash password: %w", err)
	}
	u.PasswordHash = hashed
	u.UpdatedAt = now

	return kv.PutJSON(ctx, s.kv, kv.TableUsers, u.Email, u)
}

// MarkVerified flags the account's email as verified. It is idempotent.
func (s *Store) MarkVerified(ctx context.Context, email string, now time.Time) (*domain.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.find(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u.EmailVerified {
		return u, nil
	}

	u.EmailVerified = true
	u.VerifiedAt = &now
	u.UpdatedAt = now
	if err := kv.PutJSON(ctx, s.kv, kv.TableUsers, u.Email, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes the account. Deleting an absent account is not an error.
func (s *Store) Delete(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kv.Remove(ctx, s.kv, kv.TableUsers, NormalizeEmail(email))
}

func (s *Store) find(ctx context.Context, email string) (*domain.UserRecord, error) {
	if email == "" {
		return nil, domain.ErrNotFound
	}
	u, err := kv.GetJSON[domain.UserRecord](ctx, s.kv, kv.TableUsers, email)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, kv.ErrNotFound):
		return nil, domain.ErrNotFound
	case errors.Is(err, kv.ErrCorrupt):
		s.log.Warn("ignoring unreadable user record", zap.String("email", email), zap.Error(err))
		return nil, domain.ErrNotFound
	default:
		return nil, err
	}
}

func (s *Store) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.New().String())
		if err != nil {
			s.log.Error("failed to derive dummy hash", zap.Error(err))
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
