package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getkayan/accountguard/core/audit"
	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/telemetry"
	"go.uber.org/zap"
)

// ResendVerificationEmail issues another verification token for the signed-in
// user. Tokens issued earlier stay valid until used or expired.
func (m *Manager) ResendVerificationEmail(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	cur, ok := m.sessions.Current()
	if !ok {
		return domain.ErrNoSession
	}

	ctx, span := m.telemetry.StartSpan(ctx, "accountguard.verification.resend", telemetry.SpanOptions{
		Email:     cur.Email,
		UserID:    cur.ID,
		TokenKind: string(domain.TokenVerification),
	})
	err := m.resend(ctx, cur, now)
	telemetry.EndSpan(span, err)
	return err
}

func (m *Manager) resend(ctx context.Context, cur *domain.SessionUser, now time.Time) error {
	user, err := m.users.FindByEmail(ctx, cur.Email)
	if err != nil {
		return fmt.Errorf("verification: session account %q: %w", cur.Email, err)
	}
	if user.EmailVerified {
		if !cur.EmailVerified {
			if err := m.sessions.Set(ctx, user.SessionUser()); err != nil {
				return err
			}
		}
		return domain.ErrAlreadyVerified
	}
	return m.issueVerification(ctx, user.Email, now)
}

// VerifyEmail consumes a verification token and marks its account verified.
// The session is refreshed when it belongs to that account.
func (m *Manager) VerifyEmail(ctx context.Context, tok string) (*domain.SessionUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	ctx, span := m.telemetry.StartSpan(ctx, "accountguard.verification.verify", telemetry.SpanOptions{
		TokenKind: string(domain.TokenVerification),
	})
	u, err := m.verify(ctx, tok, now)
	telemetry.EndSpan(span, err)
	m.telemetry.RecordVerification(ctx, result(err))

	if err != nil {
		m.record(ctx, audit.NewEvent(audit.EventVerificationFailed, now).Failure().Message(err.Error()))
		return nil, err
	}
	m.record(ctx, audit.NewEvent(audit.EventVerified, now).Email(u.Email).Success())
	return u, nil
}

func (m *Manager) verify(ctx context.Context, tok string, now time.Time) (*domain.SessionUser, error) {
	email, err := m.tokens.Consume(ctx, domain.TokenVerification, tok, now)
	if err != nil {
		return nil, err
	}

	user, err := m.users.MarkVerified(ctx, email, now)
	if errors.Is(err, domain.ErrNotFound) {
		m.log.Warn("verification token for unknown account", zap.String("email", email))
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	su := user.SessionUser()
	if cur, ok := m.sessions.Current(); ok && cur.Email == email {
		if err := m.sessions.Set(ctx, su); err != nil {
			return nil, err
		}
	}

	m.log.Info("email verified", zap.String("email", email))
	return su, nil
}
