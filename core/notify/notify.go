// Package notify delivers verification and password reset tokens.
//
// Real email delivery is out of scope: LogNotifier writes the token to the
// log, Recorder keeps it in memory, and Async moves any Notifier off the
// caller's goroutine.
package notify

import (
	"context"
	"sync"

	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/logger"
	"go.uber.org/zap"
)

// LogNotifier logs each token at info level instead of sending mail.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(l *zap.Logger) *LogNotifier {
	return &LogNotifier{log: logger.OrDefault(l).Named("notify")}
}

func (n *LogNotifier) SendVerification(ctx context.Context, email, token string) error {
	n.log.Info("verification email",
		zap.String("email", email),
		zap.String("token", token),
	)
	return nil
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	n.log.Info("password reset email",
		zap.String("email", email),
		zap.String("token", token),
	)
	return nil
}

// Message is one delivery seen by a Recorder.
type Message struct {
	Kind  domain.TokenKind
	Email string
	Token string
}

// Recorder keeps every delivery in memory. The CLI uses it to print tokens
// back to the operator; tests use it to pick tokens up.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) SendVerification(ctx context.Context, email, token string) error {
	r.add(Message{Kind: domain.TokenVerification, Email: email, Token: token})
	return nil
}

func (r *Recorder) SendPasswordReset(ctx context.Context, email, token string) error {
	r.add(Message{Kind: domain.TokenPasswordReset, Email: email, Token: token})
	return nil
}

func (r *Recorder) add(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message of kind sent to email.
func (r *Recorder) Last(kind domain.TokenKind, email string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		m := r.messages[i]
		if m.Kind == kind && m.Email == email {
			return m, true
		}
	}
	return Message{}, false
}

// Multi fans a delivery out to several notifiers and returns the first error.
type Multi []domain.Notifier

func (m Multi) SendVerification(ctx context.Context, email, token string) error {
	var first error
	for _, n := range m {
		if err := n.SendVerification(ctx, email, token); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) SendPasswordReset(ctx context.Context, email, token string) error {
	var first error
	for _, n := range m {
		if err := n.SendPasswordReset(ctx, email, token); err != nil && first == nil {
			first = err
		}
	}
	return first
}
