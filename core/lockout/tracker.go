// Package lockout tracks failed logins per email and derives timed lockouts.
//
// Each email moves through Clear → Accumulating → Locked → Clear. Failures are
// kept as a sliding-window log: an attempt older than the window, or exactly
// at its edge, no longer counts. Reaching MaxAttempts inside the window locks
// the email for LockoutDuration. Locks are removed lazily the first time they
// are observed past their expiry, or explicitly by Clear.
package lockout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/kv"
	"github.com/getkayan/accountguard/core/logger"
	"go.uber.org/zap"
)

// Config holds the thresholds of the tracker.
type Config struct {
	// MaxAttempts is the number of failures inside Window that triggers a lock.
	MaxAttempts int

	// Window is how long a failure is remembered.
	Window time.Duration

	// LockoutDuration is how long a lock lasts.
	LockoutDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		Window:          15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
	}
}

// Info describes a lockout event.
type Info struct {
	Email        string
	FailureCount int
	MaxAttempts  int
	LockedUntil  time.Time
}

// Hooks are extension points called by the tracker.
type Hooks struct {
	// OnLocked is called after an email becomes locked.
	OnLocked func(ctx context.Context, info *Info)

	// OnCleared is called after an email's history is cleared.
	OnCleared func(ctx context.Context, email string)
}

type attemptLog struct {
	Attempts []domain.LoginAttempt `json:"attempts"`
}

func (l *attemptLog) Validate() error {
	for i := range l.Attempts {
		if err := l.Attempts[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// live returns the attempts strictly newer than cutoff.
func (l *attemptLog) live(cutoff time.Time) []domain.LoginAttempt {
	kept := make([]domain.LoginAttempt, 0, len(l.Attempts))
	for _, a := range l.Attempts {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}

type Tracker struct {
	mu    sync.Mutex
	kv    kv.Store
	cfg   Config
	hooks Hooks
	log   *zap.Logger
}

type Option func(*Tracker)

func WithHooks(h Hooks) Option {
	return func(t *Tracker) { t.hooks = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

func NewTracker(store kv.Store, cfg Config, opts ...Option) *Tracker {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}

	t := &Tracker{kv: store, cfg: cfg}
	for _, opt := range opts {
		opt(t)
	}
	t.log = logger.OrDefault(t.log).Named("lockout")
	return t
}

func (t *Tracker) Config() Config { return t.cfg }

// RecordFailure appends a failed attempt for email at now. It returns the
// number of live attempts and whether this failure locked the email.
func (t *Tracker) RecordFailure(ctx context.Context, email, source string, now time.Time) (int, bool, error) {
	if source == "" {
		source = "unknown"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	log, err := t.loadAttempts(ctx, email)
	if err != nil {
		return 0, false, err
	}
	attempts := append(log.live(now.Add(-t.cfg.Window)), domain.LoginAttempt{
		Email:     email,
		Timestamp: now,
		Source:    source,
	})
	if err := kv.PutJSON(ctx, t.kv, kv.TableLoginAttempts, email, &attemptLog{Attempts: attempts}); err != nil {
		return 0, false, err
	}

	count := len(attempts)
	if count < t.cfg.MaxAttempts {
		return count, false, nil
	}

	lock := &domain.AccountLock{Email: email, LockedUntil: now.Add(t.cfg.LockoutDuration)}
	if err := kv.PutJSON(ctx, t.kv, kv.TableLockedAccounts, email, lock); err != nil {
		return count, false, err
	}

	t.log.Warn("account locked",
		zap.String("email", email),
		zap.Int("failures", count),
		zap.Time("locked_until", lock.LockedUntil),
	)
	if t.hooks.OnLocked != nil {
		t.hooks.OnLocked(ctx, &Info{
			Email:        email,
			FailureCount: count,
			MaxAttempts:  t.cfg.MaxAttempts,
			LockedUntil:  lock.LockedUntil,
		})
	}
	return count, true, nil
}

// LockState reports whether email is locked at now and until when. An
// expired lock is deleted and reported as unlocked.
func (t *Tracker) LockState(ctx context.Context, email string, now time.Time) (bool, time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, err := kv.GetJSON[domain.AccountLock](ctx, t.kv, kv.TableLockedAccounts, email)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return false, time.Time{}, nil
	case errors.Is(err, kv.ErrCorrupt):
		t.log.Warn("dropping unreadable lock record", zap.String("email", email), zap.Error(err))
		return false, time.Time{}, kv.Remove(ctx, t.kv, kv.TableLockedAccounts, email)
	case err != nil:
		return false, time.Time{}, err
	}

	if lock.Active(now) {
		return true, lock.LockedUntil, nil
	}
	return false, time.Time{}, kv.Remove(ctx, t.kv, kv.TableLockedAccounts, email)
}

// IsLocked reports whether email is locked at now.
func (t *Tracker) IsLocked(ctx context.Context, email string, now time.Time) (bool, error) {
	locked, _, err := t.LockState(ctx, email, now)
	return locked, err
}

// RemainingLockSeconds returns the whole seconds, rounded up, until the lock
// on email expires, or 0 when it is not locked.
func (t *Tracker) RemainingLockSeconds(ctx context.Context, email string, now time.Time) (int, error) {
	locked, until, err := t.LockState(ctx, email, now)
	if err != nil || !locked {
		return 0, err
	}
	return CeilSeconds(until.Sub(now)), nil
}

// Attempts returns the number of failures for email still inside the window.
func (t *Tracker) Attempts(ctx context.Context, email string, now time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	log, err := t.loadAttempts(ctx, email)
	if err != nil {
		return 0, err
	}
	return len(log.live(now.Add(-t.cfg.Window))), nil
}

// Clear removes every attempt and any lock for email.
func (t *Tracker) Clear(ctx context.Context, email string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := kv.Remove(ctx, t.kv, kv.TableLoginAttempts, email); err != nil {
		return err
	}
	if err := kv.Remove(ctx, t.kv, kv.TableLockedAccounts, email); err != nil {
		return err
	}
	if t.hooks.OnCleared != nil {
		t.hooks.OnCleared(ctx, email)
	}
	return nil
}

// Sweep removes expired locks and attempt logs with no live attempts. It
// returns the number of records removed.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0

	keys, err := kv.ListKeys(ctx, t.kv, kv.TableLockedAccounts)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		lock, err := kv.GetJSON[domain.AccountLock](ctx, t.kv, kv.TableLockedAccounts, k)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil && !errors.Is(err, kv.ErrCorrupt) {
			return removed, err
		}
		if lock == nil || !lock.Active(now) {
			if err := kv.Remove(ctx, t.kv, kv.TableLockedAccounts, k); err != nil {
				return removed, err
			}
			removed++
		}
	}

	keys, err = kv.ListKeys(ctx, t.kv, kv.TableLoginAttempts)
	if err != nil {
		return removed, err
	}
	cutoff := now.Add(-t.cfg.Window)
	for _, k := range keys {
		log, err := t.loadAttempts(ctx, k)
		if err != nil {
			return removed, err
		}
		if len(log.live(cutoff)) == 0 {
			if err := kv.Remove(ctx, t.kv, kv.TableLoginAttempts, k); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// loadAttempts returns an empty log for absent or unreadable records.
func (t *Tracker) loadAttempts(ctx context.Context, email string) (*attemptLog, error) {
	log, err := kv.GetJSON[attemptLog](ctx, t.kv, kv.TableLoginAttempts, email)
	switch {
	case err == nil:
		return log, nil
	case errors.Is(err, kv.ErrNotFound):
		return &attemptLog{}, nil
	case errors.Is(err, kv.ErrCorrupt):
		t.log.Warn("resetting unreadable attempt log", zap.String("email", email), zap.Error(err))
		return &attemptLog{}, nil
	default:
		return nil, err
	}
}

// CeilSeconds rounds d up to whole seconds; non-positive durations yield 0.
func CeilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
