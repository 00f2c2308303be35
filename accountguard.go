// Package accountguard protects password accounts: registration with email
// verification, login with brute-force lockout, password reset, and a
// persisted current session.
//
// # Key Features
//
//   - Password policy: length, case, digit and symbol rules, reported one at a time
//   - Lockout: failed logins counted over a sliding window, timed locks
//   - Tokens: single-use verification and reset tokens with expiry
//   - Pluggable storage: memory, SQLite, PostgreSQL, MySQL, Redis or MongoDB
//   - Audit logging and OpenTelemetry metrics and traces
//
// # Subpackages
//
//   - core/flow: the Manager orchestrating every account operation
//   - core/credential, core/token, core/lockout, core/session: the stores
//   - core/policy: password rules
//   - core/audit, core/telemetry, core/notify: side channels
//   - persistence: backend selection; kgorm, kredis, kmongo: backends
//
// # Quick Start
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//	    return err
//	}
//	svc, err := accountguard.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer svc.Close(ctx)
//
//	u, err := svc.Login(ctx, "a@b.com", "Str0ng!Pass", remoteAddr)
package accountguard

import (
	"context"
	"errors"
	"time"

	"github.com/getkayan/accountguard/core/audit"
	"github.com/getkayan/accountguard/core/config"
	"github.com/getkayan/accountguard/core/credential"
	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/flow"
	"github.com/getkayan/accountguard/core/health"
	"github.com/getkayan/accountguard/core/lockout"
	"github.com/getkayan/accountguard/core/logger"
	"github.com/getkayan/accountguard/core/notify"
	"github.com/getkayan/accountguard/core/session"
	"github.com/getkayan/accountguard/core/telemetry"
	"github.com/getkayan/accountguard/core/token"
	"github.com/getkayan/accountguard/persistence"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Version is reported by the CLI and attached to telemetry.
const Version = "0.1.0"

// SessionUser is the caller-safe view of an account.
type SessionUser = domain.SessionUser

// Service is a ready-to-use Manager bound to its backend.
type Service struct {
	*flow.Manager

	backend   *persistence.Backend
	notifier  *notify.Async
	telemetry *telemetry.Provider
	audit     *audit.Logger
	health    *health.Manager
	log       *zap.Logger
}

type Option func(*options)

type options struct {
	notifier  domain.Notifier
	backend   *persistence.Backend
	log       *zap.Logger
	clock     func() time.Time
	telemetry []telemetry.Option
}

// WithNotifier delivers tokens through n. The default logs them.
func WithNotifier(n domain.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithBackend uses an already opened backend instead of cfg.StoreType. The
// Service takes ownership and closes it.
func WithBackend(b *persistence.Backend) Option {
	return func(o *options) { o.backend = b }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithTelemetry passes readers and span processors to the telemetry provider.
func WithTelemetry(opts ...telemetry.Option) Option {
	return func(o *options) { o.telemetry = append(o.telemetry, opts...) }
}

// New opens the configured backend, wires every store into a flow.Manager and
// restores the persisted session. A nil cfg uses config.Default.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := credential.NewHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.OrDefault(o.log)

	backend := o.backend
	if backend == nil {
		if backend, err = persistence.Open(ctx, cfg); err != nil {
			return nil, err
		}
	}

	tel, err := telemetry.NewProvider(telemetry.Config{
		ServiceName:    "accountguard",
		ServiceVersion: Version,
		SamplingRate:   1.0,
		Enabled:        cfg.TelemetryEnabled,
	}, o.telemetry...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	next := o.notifier
	if next == nil {
		next = notify.NewLogNotifier(log)
	}
	async := notify.NewAsync(next, notify.DefaultQueueSize, log)

	auditLog := audit.NewLogger(backend.Audit, audit.Hooks{
		IDGenerator: uuid.NewString,
		AlertOnRisk: func(ctx context.Context, e *audit.AuditEvent) {
			log.Warn("high risk security event",
				zap.String("type", e.Type),
				zap.String("email", e.Email),
				zap.String("source", e.Source),
			)
		},
	})

	users := credential.NewStore(backend.Store, hasher, credential.WithLogger(log))
	tokens := token.NewStore(backend.Store, token.WithLogger(log))
	attempts := lockout.NewTracker(backend.Store, lockout.Config{
		MaxAttempts:     cfg.MaxAttempts,
		Window:          cfg.AttemptWindow,
		LockoutDuration: cfg.LockoutDuration,
	}, lockout.WithLogger(log))
	sessions := session.NewManager(backend.Store, log)

	mgrOpts := []flow.Option{
		flow.WithNotifier(async),
		flow.WithAudit(auditLog),
		flow.WithTelemetry(tel),
		flow.WithLogger(log),
		flow.WithConfig(flow.Config{
			VerificationTTL: cfg.VerificationTTL,
			ResetTTL:        cfg.ResetTTL,
		}),
	}
	if o.clock != nil {
		mgrOpts = append(mgrOpts, flow.WithClock(o.clock))
	}

	checks := health.NewManager(Version)
	checks.Register(health.NewStoreChecker(cfg.StoreType, backend.Store))
	checks.Register(health.NewAuditChecker(backend.Audit))

	s := &Service{
		Manager:   flow.NewManager(users, tokens, attempts, sessions, mgrOpts...),
		backend:   backend,
		notifier:  async,
		telemetry: tel,
		audit:     auditLog,
		health:    checks,
		log:       log,
	}

	if _, err := s.Restore(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// Audit returns the audit logger, for querying past events.
func (s *Service) Audit() *audit.Logger {
	return s.audit
}

// Health probes the backend and its audit store.
func (s *Service) Health(ctx context.Context) *health.Report {
	return s.health.Check(ctx)
}

// Close drains pending notifications, flushes telemetry and closes the
// backend.
func (s *Service) Close(ctx context.Context) error {
	return errors.Join(
		s.notifier.Close(ctx),
		s.telemetry.Shutdown(ctx),
		s.backend.Close(),
	)
}
