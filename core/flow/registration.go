package flow

import (
	"context"
	"time"

	"github.com/getkayan/accountguard/core/audit"
	"github.com/getkayan/accountguard/core/credential"
	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/telemetry"
	"go.uber.org/zap"
)

// Register creates an unverified account, sends it a verification token and
// signs it in.
func (m *Manager) Register(ctx context.Context, name, email, password string) (*domain.SessionUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	email = credential.NormalizeEmail(email)

	ctx, span := m.telemetry.StartSpan(ctx, "accountguard.register", telemetry.SpanOptions{Email: email})
	u, err := m.register(ctx, name, email, password, now)
	telemetry.EndSpan(span, err)
	m.telemetry.RecordRegistration(ctx, result(err))

	if err != nil {
		m.record(ctx, audit.NewEvent(audit.EventRegistration, now).Email(email).Failure().Message(err.Error()))
		return nil, err
	}
	m.record(ctx, audit.NewEvent(audit.EventRegistration, now).Email(email).Success())
	return u, nil
}

func (m *Manager) register(ctx context.Context, name, email, password string, now time.Time) (*domain.SessionUser, error) {
	user, err := m.users.Register(ctx, name, email, password, now)
	if err != nil {
		return nil, err
	}

	// Nothing is sent until every step has succeeded; on failure the account
	// and its token are removed so the email can register again.
	su := user.SessionUser()
	var tok *domain.Token
	fail := func(err error) (*domain.SessionUser, error) {
		m.undoRegistration(ctx, user.Email, tok)
		return nil, err
	}

	if err := m.runHooks(ctx, m.postRegistration, su); err != nil {
		return fail(err)
	}
	if tok, err = m.tokens.Issue(ctx, domain.TokenVerification, user.Email, m.cfg.VerificationTTL, now); err != nil {
		return fail(err)
	}
	if err := m.setSession(ctx, su); err != nil {
		return fail(err)
	}
	m.sendVerification(ctx, tok, now)

	m.log.Info("account registered", zap.String("email", email), zap.String("id", su.ID))
	return su, nil
}

func (m *Manager) undoRegistration(ctx context.Context, email string, tok *domain.Token) {
	if tok != nil {
		if err := m.tokens.Revoke(ctx, domain.TokenVerification, tok.Token); err != nil {
			m.log.Error("failed to revoke verification token", zap.String("email", email), zap.Error(err))
		}
	}
	if err := m.users.Delete(ctx, email); err != nil {
		m.log.Error("failed to remove partially registered account", zap.String("email", email), zap.Error(err))
		return
	}
	m.log.Warn("registration rolled back", zap.String("email", email))
}

// issueVerification stores a fresh verification token and hands it to the
// notifier.
func (m *Manager) issueVerification(ctx context.Context, email string, now time.Time) error {
	t, err := m.tokens.Issue(ctx, domain.TokenVerification, email, m.cfg.VerificationTTL, now)
	if err != nil {
		return err
	}
	m.sendVerification(ctx, t, now)
	return nil
}

// sendVerification delivers t. Delivery failures are logged, not returned.
func (m *Manager) sendVerification(ctx context.Context, t *domain.Token, now time.Time) {
	if err := m.notifier.SendVerification(ctx, t.Email, t.Token); err != nil {
		m.log.Warn("verification email not sent", zap.String("email", t.Email), zap.Error(err))
	}
	m.record(ctx, audit.NewEvent(audit.EventVerificationIssued, now).Email(t.Email).Success())
}
