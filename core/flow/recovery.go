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
	"github.com/getkayan/accountguard/core/policy"
	"github.com/getkayan/accountguard/core/telemetry"
	"go.uber.org/zap"
)

// RequestPasswordReset issues a reset token for email, replacing any earlier
// one. The result is the same whether or not the account exists; only the
// notifier learns the difference.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	email = credential.NormalizeEmail(email)

	ctx, span := m.telemetry.StartSpan(ctx, "accountguard.password_reset.request", telemetry.SpanOptions{
		Email:     email,
		TokenKind: string(domain.TokenPasswordReset),
	})
	err := m.requestReset(ctx, email, now)
	telemetry.EndSpan(span, err)
	m.telemetry.RecordPasswordReset(ctx, "request", result(err))
	return err
}

func (m *Manager) requestReset(ctx context.Context, email string, now time.Time) error {
	if email == "" {
		return fmt.Errorf("recovery: %w: email is required", domain.ErrInvalidInput)
	}

	locked, until, err := m.attempts.LockState(ctx, email, now)
	if err != nil {
		return err
	}
	if locked {
		return &domain.LockedError{
			Email:            email,
			LockedUntil:      until,
			RemainingSeconds: lockout.CeilSeconds(until.Sub(now)),
		}
	}

	t, err := m.tokens.Issue(ctx, domain.TokenPasswordReset, email, m.cfg.ResetTTL, now)
	if err != nil {
		return err
	}
	m.record(ctx, audit.NewEvent(audit.EventPasswordResetRequested, now).Email(email).Success())

	_, err = m.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := m.notifier.SendPasswordReset(ctx, email, t.Token); err != nil {
			m.log.Warn("password reset email not sent", zap.String("email", email), zap.Error(err))
		}
	case errors.Is(err, domain.ErrNotFound):
		m.log.Debug("password reset requested for unknown email", zap.String("email", email))
	default:
		return err
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password. Unknown,
// used and expired tokens all fail with domain.ErrInvalidOrExpiredToken.
// A successful reset also lifts any lockout on the account.
func (m *Manager) ResetPassword(ctx context.Context, tok, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	ctx, span := m.telemetry.StartSpan(ctx, "accountguard.password_reset.complete", telemetry.SpanOptions{
		TokenKind: string(domain.TokenPasswordReset),
	})
	email, err := m.resetPassword(ctx, tok, newPassword, now)
	telemetry.EndSpan(span, err)
	m.telemetry.RecordPasswordReset(ctx, "complete", result(err))

	if err != nil {
		m.record(ctx, audit.NewEvent(audit.EventPasswordResetFailed, now).Email(email).Failure().Message(err.Error()))
		return err
	}
	m.record(ctx, audit.NewEvent(audit.EventPasswordReset, now).Email(email).Success().Risk(audit.RiskMedium))
	return nil
}

func (m *Manager) resetPassword(ctx context.Context, tok, newPassword string, now time.Time) (string, error) {
	if err := policy.Validate(newPassword); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrWeakPassword, err)
	}

	email, err := m.tokens.Consume(ctx, domain.TokenPasswordReset, tok, now)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrTokenExpired) {
			return "", domain.ErrInvalidOrExpiredToken
		}
		return "", err
	}

	if err := m.users.UpdatePassword(ctx, email, newPassword, now); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return email, domain.ErrInvalidOrExpiredToken
		}
		return email, err
	}

	if err := m.attempts.Clear(ctx, email); err != nil {
		return email, err
	}

	m.log.Info("password reset", zap.String("email", email))
	return email, nil
}
