package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getkayan/accountguard/core/audit"
	"github.com/getkayan/accountguard/core/credential"
	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/lockout"
	"github.com/getkayan/accountguard/core/telemetry"
	"go.uber.org/zap"
)

// Login authenticates email and password and establishes the session.
//
// A locked email fails with *domain.LockedError before the password is
// looked at. Unknown emails and wrong passwords both record a failure and
// both match domain.ErrInvalidCredentials. An unverified account with the
// right password fails with domain.ErrEmailNotVerified and leaves the
// attempt history untouched.
func (m *Manager) Login(ctx context.Context, email, password, source string) (*domain.SessionUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	email = credential.NormalizeEmail(email)
	if source == "" {
		source = UnknownSource
	}

	ctx, span := m.telemetry.StartSpan(ctx, "accountguard.login", telemetry.SpanOptions{Email: email, Source: source})
	u, err := m.login(ctx, email, password, source, m.clock())
	telemetry.EndSpan(span, err)
	m.telemetry.RecordLogin(ctx, result(err), time.Since(start))
	return u, err
}

func (m *Manager) login(ctx context.Context, email, password, source string, now time.Time) (*domain.SessionUser, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("login: %w: email and password are required", domain.ErrInvalidInput)
	}

	locked, until, err := m.attempts.LockState(ctx, email, now)
	if err != nil {
		return nil, err
	}
	if locked {
		lerr := &domain.LockedError{
			Email:            email,
			LockedUntil:      until,
			RemainingSeconds: lockout.CeilSeconds(until.Sub(now)),
		}
		m.record(ctx, audit.NewEvent(audit.EventLoginBlocked, now).
			Email(email).Source(source).Blocked().Risk(audit.RiskMedium).Message(lerr.Error()))
		return nil, lerr
	}

	user, err := m.users.Authenticate(ctx, email, password)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			return nil, err
		}
		if ferr := m.recordFailure(ctx, email, source, now, err); ferr != nil {
			return nil, ferr
		}
		return nil, err
	}

	if !user.EmailVerified {
		m.record(ctx, audit.NewEvent(audit.EventLoginFailure, now).
			Email(email).Source(source).Failure().Message("email not verified"))
		return nil, domain.ErrEmailNotVerified
	}

	su := user.SessionUser()
	if err := m.runHooks(ctx, m.postLogin, su); err != nil {
		return nil, err
	}
	if err := m.setSession(ctx, su); err != nil {
		return nil, err
	}
	// Only a login that produced a session resets the failure history.
	if err := m.attempts.Clear(ctx, email); err != nil {
		return nil, err
	}

	m.record(ctx, audit.NewEvent(audit.EventLoginSuccess, now).Email(email).Source(source).Success())
	m.log.Info("login succeeded", zap.String("email", email), zap.String("source", source))
	return su, nil
}

// recordFailure counts a failed login and audits the lockout it may cause.
func (m *Manager) recordFailure(ctx context.Context, email, source string, now time.Time, cause error) error {
	count, locked, err := m.attempts.RecordFailure(ctx, email, source, now)
	if err != nil {
		return err
	}

	m.record(ctx, audit.NewEvent(audit.EventLoginFailure, now).
		Email(email).Source(source).Failure().Message(domain.Reason(cause)))
	m.log.Info("login failed",
		zap.String("email", email),
		zap.String("reason", domain.Reason(cause)),
		zap.Int("failures", count),
	)

	if locked {
		m.telemetry.RecordLockout(ctx)
		m.record(ctx, audit.NewEvent(audit.EventLockout, now).
			Email(email).Source(source).Blocked().Risk(audit.RiskHigh).
			Message(fmt.Sprintf("%d failed attempts", count)))
	}
	return nil
}

// Logout clears the session. It never fails; storage errors are logged.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sessions.Clear(ctx); err != nil {
		m.log.Error("failed to clear persisted session", zap.Error(err))
	}
}
