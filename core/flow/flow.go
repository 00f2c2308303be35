// Package flow orchestrates the account operations on top of the credential,
// token, lockout and session stores.
//
// A Manager is the only caller-facing entry point:
//
//	mgr := flow.NewManager(users, tokens, attempts, sessions,
//	    flow.WithNotifier(notify.NewLogNotifier(nil)),
//	)
//	u, err := mgr.Login(ctx, "a@b.com", "Str0ng!Pass", "203.0.113.7")
//	if locked, ok := domain.AsLockedError(err); ok {
//	    fmt.Println("retry in", locked.RemainingSeconds, "seconds")
//	}
//
// Every operation holds the manager's mutex for its whole duration, so
// check-then-act sequences never interleave inside one process.
package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/getkayan/accountguard/core/audit"
	"github.com/getkayan/accountguard/core/credential"
	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/lockout"
	"github.com/getkayan/accountguard/core/logger"
	"github.com/getkayan/accountguard/core/notify"
	"github.com/getkayan/accountguard/core/session"
	"github.com/getkayan/accountguard/core/telemetry"
	"github.com/getkayan/accountguard/core/token"
	"go.uber.org/zap"
)

// UnknownSource is recorded for attempts whose caller address is not known.
const UnknownSource = "unknown"

// Config holds token lifetimes.
type Config struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

func DefaultConfig() Config {
	return Config{
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        24 * time.Hour,
	}
}

// Hook runs after a successful login or registration, before the session is
// established. Returning an error aborts the operation.
type Hook func(ctx context.Context, user *domain.SessionUser) error

type Manager struct {
	mu sync.Mutex

	users    *credential.Store
	tokens   *token.Store
	attempts *lockout.Tracker
	sessions *session.Manager

	notifier  domain.Notifier
	audit     *audit.Logger
	telemetry *telemetry.Provider
	clock     func() time.Time
	cfg       Config
	log       *zap.Logger

	postLogin        []Hook
	postRegistration []Hook
}

type Option func(*Manager)

// WithClock replaces time.Now as the source of "now".
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.clock = now }
}

func WithNotifier(n domain.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

func WithAudit(l *audit.Logger) Option {
	return func(m *Manager) { m.audit = l }
}

func WithTelemetry(p *telemetry.Provider) Option {
	return func(m *Manager) { m.telemetry = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithConfig sets token lifetimes. Non-positive values keep the defaults.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		if cfg.VerificationTTL > 0 {
			m.cfg.VerificationTTL = cfg.VerificationTTL
		}
		if cfg.ResetTTL > 0 {
			m.cfg.ResetTTL = cfg.ResetTTL
		}
	}
}

func NewManager(users *credential.Store, tokens *token.Store, attempts *lockout.Tracker, sessions *session.Manager, opts ...Option) *Manager {
	m := &Manager{
		users:    users,
		tokens:   tokens,
		attempts: attempts,
		sessions: sessions,
		clock:    time.Now,
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.OrDefault(m.log).Named("flow")
	if m.notifier == nil {
		m.notifier = notify.NewLogNotifier(m.log)
	}
	if m.telemetry == nil {
		m.telemetry = telemetry.Noop()
	}
	m.sessions.AddLogoutNotifier(session.LogoutNotifierFunc(m.onLogout))
	return m
}

func (m *Manager) AddPostLoginHook(h Hook)        { m.postLogin = append(m.postLogin, h) }
func (m *Manager) AddPostRegistrationHook(h Hook) { m.postRegistration = append(m.postRegistration, h) }

// Restore loads the persisted session, if any. Call it once at startup.
func (m *Manager) Restore(ctx context.Context) (*domain.SessionUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.sessions.Restore(ctx)
	if err != nil {
		return nil, err
	}
	if u != nil {
		m.telemetry.SessionCreated(ctx)
	}
	return u, nil
}

// CurrentUser returns the signed-in user, if any.
func (m *Manager) CurrentUser(ctx context.Context) (*domain.SessionUser, bool) {
	return m.sessions.Current()
}

// IsAccountLocked reports whether email is locked right now.
func (m *Manager) IsAccountLocked(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.attempts.IsLocked(ctx, credential.NormalizeEmail(email), m.clock())
}

// RemainingLockTime returns how long email stays locked, rounded up to whole
// seconds, or 0.
func (m *Manager) RemainingLockTime(ctx context.Context, email string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	secs, err := m.attempts.RemainingLockSeconds(ctx, credential.NormalizeEmail(email), m.clock())
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// FailedAttempts returns the failures for email still inside the window.
func (m *Manager) FailedAttempts(ctx context.Context, email string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.attempts.Attempts(ctx, credential.NormalizeEmail(email), m.clock())
}

// SweepResult counts the records removed by Sweep.
type SweepResult struct {
	Tokens  int
	Lockout int
}

// Sweep deletes expired tokens, expired locks and stale attempt logs.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	var res SweepResult
	var err error
	if res.Tokens, err = m.tokens.Sweep(ctx, now); err != nil {
		return res, err
	}
	if res.Lockout, err = m.attempts.Sweep(ctx, now); err != nil {
		return res, err
	}
	m.log.Debug("sweep finished", zap.Int("tokens", res.Tokens), zap.Int("lockout", res.Lockout))
	return res, nil
}

// setSession establishes u as the current session.
func (m *Manager) setSession(ctx context.Context, u *domain.SessionUser) error {
	_, had := m.sessions.Current()
	if err := m.sessions.Set(ctx, u); err != nil {
		return err
	}
	if !had {
		m.telemetry.SessionCreated(ctx)
	}
	return nil
}

func (m *Manager) onLogout(ctx context.Context, u *domain.SessionUser) {
	m.telemetry.SessionDestroyed(ctx)
	m.record(ctx, audit.NewEvent(audit.EventLogout, m.clock()).Email(u.Email).Success())
}

func (m *Manager) runHooks(ctx context.Context, hooks []Hook, u *domain.SessionUser) error {
	for _, h := range hooks {
		if err := h(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// record saves an audit event. Audit failures never fail the operation.
func (m *Manager) record(ctx context.Context, b *audit.EventBuilder) {
	if m.audit == nil {
		return
	}
	e := b.Build()
	if err := m.audit.Log(ctx, e); err != nil {
		m.log.Error("failed to save audit event", zap.String("type", e.Type), zap.Error(err))
	}
}

// result maps an operation outcome to a short metric label.
func result(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrAccountLocked):
		return "locked"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrEmailNotVerified):
		return "unverified"
	case errors.Is(err, domain.ErrWeakPassword):
		return "weak_password"
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrInvalidOrExpiredToken):
		return "invalid_token"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrNoSession):
		return "no_session"
	case errors.Is(err, domain.ErrAlreadyVerified):
		return "already_verified"
	default:
		return "error"
	}
}
