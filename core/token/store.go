// Package token manages the lifecycle of email-verification and
// password-reset tokens.
//
// Verification tokens are stored keyed by token value, and any number may be
// live for one email. Reset tokens are stored keyed by email, so issuing a new
// one supersedes the previous; a token→email index makes them consumable by
// value.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/kv"
	"github.com/getkayan/accountguard/core/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store struct {
	mu    sync.Mutex
	kv    kv.Store
	idGen domain.IDGenerator
	log   *zap.Logger
}

type Option func(*Store)

// WithGenerator replaces the token value generator. Values must be
// unpredictable.
func WithGenerator(gen domain.IDGenerator) Option {
	return func(s *Store) { s.idGen = gen }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

func NewStore(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:    store,
		idGen: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDefault(s.log).Named("token")
	return s
}

// Issue records a fresh token of kind for email, valid until now+ttl.
func (s *Store) Issue(ctx context.Context, kind domain.TokenKind, email string, ttl time.Duration, now time.Time) (*domain.Token, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("token: unknown kind %q", kind)
	}
	if email == "" {
		return nil, fmt.Errorf("token: %w: email is required", domain.ErrInvalidInput)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token: %w: ttl must be positive", domain.ErrInvalidInput)
	}

	t := &domain.Token{
		Token:     s.idGen(),
		Email:     email,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == domain.TokenVerification {
		if err := kv.PutJSON(ctx, s.kv, kv.TableVerificationTokens, t.Token, t); err != nil {
			return nil, err
		}
		return t, nil
	}

	// One reset in flight per email: drop the previous token's index entry.
	if prev, err := s.loadReset(ctx, email); err == nil {
		if err := kv.Remove(ctx, s.kv, kv.TableResetIndex, prev.Token); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		return nil, err
	}

	if err := kv.PutJSON(ctx, s.kv, kv.TableResetTokens, email, t); err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, kv.TableResetIndex, t.Token, []byte(email)); err != nil {
		return nil, fmt.Errorf("%w: index reset token: %v", domain.ErrStorage, err)
	}
	return t, nil
}

// Consume validates and deletes a token, returning the email it was issued
// for. Unknown tokens yield domain.ErrInvalidToken; tokens at or past their
// expiry are deleted and yield domain.ErrTokenExpired.
func (s *Store) Consume(ctx context.Context, kind domain.TokenKind, value string, now time.Time) (string, error) {
	if value == "" {
		return "", domain.ErrInvalidToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case domain.TokenVerification:
		return s.consumeVerification(ctx, value, now)
	case domain.TokenPasswordReset:
		return s.consumeReset(ctx, value, now)
	default:
		return "", fmt.Errorf("token: unknown kind %q", kind)
	}
}

// Revoke deletes a live token without consuming it. Unknown tokens are
// ignored.
func (s *Store) Revoke(ctx context.Context, kind domain.TokenKind, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case domain.TokenVerification:
		return kv.Remove(ctx, s.kv, kv.TableVerificationTokens, value)
	case domain.TokenPasswordReset:
		raw, err := s.kv.Get(ctx, kv.TableResetIndex, value)
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reset index: %v", domain.ErrStorage, err)
		}
		if err := kv.Remove(ctx, s.kv, kv.TableResetIndex, value); err != nil {
			return err
		}
		if t, err := s.loadReset(ctx, string(raw)); err == nil && t.Token == value {
			return kv.Remove(ctx, s.kv, kv.TableResetTokens, string(raw))
		}
		return nil
	default:
		return fmt.Errorf("token: unknown kind %q", kind)
	}
}

func (s *Store) consumeVerification(ctx context.Context, value string, now time.Time) (string, error) {
	t, err := kv.GetJSON[domain.Token](ctx, s.kv, kv.TableVerificationTokens, value)
	if err != nil {
		return "", s.lookupError(ctx, kv.TableVerificationTokens, value, err)
	}
	if err := kv.Remove(ctx, s.kv, kv.TableVerificationTokens, value); err != nil {
		return "", err
	}
	if t.Kind != domain.TokenVerification {
		return "", domain.ErrInvalidToken
	}
	if t.Expired(now) {
		return "", domain.ErrTokenExpired
	}
	return t.Email, nil
}

func (s *Store) consumeReset(ctx context.Context, value string, now time.Time) (string, error) {
	raw, err := s.kv.Get(ctx, kv.TableResetIndex, value)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", domain.ErrInvalidToken
		}
		return "", fmt.Errorf("%w: reset index: %v", domain.ErrStorage, err)
	}
	email := string(raw)
	if err := kv.Remove(ctx, s.kv, kv.TableResetIndex, value); err != nil {
		return "", err
	}

	t, err := s.loadReset(ctx, email)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", domain.ErrInvalidToken
		}
		return "", err
	}
	if t.Token != value {
		// Stale index entry for a superseded token.
		return "", domain.ErrInvalidToken
	}
	if err := kv.Remove(ctx, s.kv, kv.TableResetTokens, email); err != nil {
		return "", err
	}
	if t.Expired(now) {
		return "", domain.ErrTokenExpired
	}
	return t.Email, nil
}

// loadReset returns kv.ErrNotFound for absent and unreadable records; the
// latter are deleted.
func (s *Store) loadReset(ctx context.Context, email string) (*domain.Token, error) {
	t, err := kv.GetJSON[domain.Token](ctx, s.kv, kv.TableResetTokens, email)
	if err != nil {
		return nil, s.lookupError(ctx, kv.TableResetTokens, email, err)
	}
	return t, nil
}

func (s *Store) lookupError(ctx context.Context, table kv.Table, key string, err error) error {
	switch {
	case errors.Is(err, kv.ErrNotFound):
		if table == kv.TableVerificationTokens {
			return domain.ErrInvalidToken
		}
		return kv.ErrNotFound
	case errors.Is(err, kv.ErrCorrupt):
		s.log.Warn("dropping unreadable token record", zap.String("table", string(table)), zap.Error(err))
		if rmErr := kv.Remove(ctx, s.kv, table, key); rmErr != nil {
			return rmErr
		}
		if table == kv.TableVerificationTokens {
			return domain.ErrInvalidToken
		}
		return kv.ErrNotFound
	default:
		return err
	}
}

// Sweep deletes expired and unreadable tokens of both kinds, along with
// orphaned reset index entries. It returns the number of tokens removed.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	keys, err := kv.ListKeys(ctx, s.kv, kv.TableVerificationTokens)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		t, err := kv.GetJSON[domain.Token](ctx, s.kv, kv.TableVerificationTokens, k)
		if err != nil && !errors.Is(err, kv.ErrCorrupt) {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return removed, err
		}
		if t == nil || t.Expired(now) {
			if err := kv.Remove(ctx, s.kv, kv.TableVerificationTokens, k); err != nil {
				return removed, err
			}
			removed++
		}
	}

	live := make(map[string]string)
	keys, err = kv.ListKeys(ctx, s.kv, kv.TableResetTokens)
	if err != nil {
		return removed, err
	}
	for _, k := range keys {
		t, err := kv.GetJSON[domain.Token](ctx, s.kv, kv.TableResetTokens, k)
		if err != nil && !errors.Is(err, kv.ErrCorrupt) {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return removed, err
		}
		if t == nil || t.Expired(now) {
			if err := kv.Remove(ctx, s.kv, kv.TableResetTokens, k); err != nil {
				return removed, err
			}
			removed++
			continue
		}
		live[t.Token] = k
	}

	keys, err = kv.ListKeys(ctx, s.kv, kv.TableResetIndex)
	if err != nil {
		return removed, err
	}
	for _, k := range keys {
		if _, ok := live[k]; ok {
			continue
		}
		if err := kv.Remove(ctx, s.kv, kv.TableResetIndex, k); err != nil {
			return removed, err
		}
	}

	if removed > 0 {
		s.log.Debug("swept expired tokens", zap.Int("removed", removed))
	}
	return removed, nil
}
