// Package session holds the currently authenticated user.
//
// The holder keeps zero or one SessionUser, mirrored into the
// current_session table so it survives a restart:
//
//	sessions := session.NewManager(store)
//	if _, err := sessions.Restore(ctx); err != nil {
//	    return err
//	}
//
//	if u, ok := sessions.Current(); ok {
//	    fmt.Println("signed in as", u.Email)
//	}
//
// Register notifiers to react to logouts:
//
//	sessions.AddLogoutNotifier(myNotifier)
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/kv"
	"github.com/getkayan/accountguard/core/logger"
	"go.uber.org/zap"
)

const currentKey = "current"

// LogoutNotifier is called after a session is cleared.
type LogoutNotifier interface {
	NotifyLogout(ctx context.Context, user *domain.SessionUser)
}

// LogoutNotifierFunc adapts a function to LogoutNotifier.
type LogoutNotifierFunc func(ctx context.Context, user *domain.SessionUser)

func (f LogoutNotifierFunc) NotifyLogout(ctx context.Context, user *domain.SessionUser) {
	f(ctx, user)
}

// Manager handles the lifecycle of the current session.
type Manager struct {
	mu        sync.RWMutex
	kv        kv.Store
	current   *domain.SessionUser
	notifiers []LogoutNotifier
	log       *zap.Logger
}

func NewManager(store kv.Store, l *zap.Logger) *Manager {
	return &Manager{
		kv:  store,
		log: logger.OrDefault(l).Named("session"),
	}
}

func (m *Manager) AddLogoutNotifier(n LogoutNotifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// Restore loads the persisted session, if any. An unreadable record is
// discarded and leaves the holder empty.
func (m *Manager) Restore(ctx context.Context) (*domain.SessionUser, error) {
	u, err := kv.GetJSON[domain.SessionUser](ctx, m.kv, kv.TableCurrentSession, currentKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return nil, nil
	case errors.Is(err, kv.ErrCorrupt):
		m.log.Warn("discarding unreadable session", zap.Error(err))
		return nil, kv.Remove(ctx, m.kv, kv.TableCurrentSession, currentKey)
	case err != nil:
		return nil, err
	}

	m.mu.Lock()
	m.current = u
	m.mu.Unlock()

	m.log.Debug("session restored", zap.String("email", u.Email))
	return copyUser(u), nil
}

// Set makes u the current session and persists it.
func (m *Manager) Set(ctx context.Context, u *domain.SessionUser) error {
	u = copyUser(u)
	if err := kv.PutJSON(ctx, m.kv, kv.TableCurrentSession, currentKey, u); err != nil {
		return err
	}

	m.mu.Lock()
	m.current = u
	m.mu.Unlock()
	return nil
}

// Current returns a copy of the current session user.
func (m *Manager) Current() (*domain.SessionUser, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, false
	}
	return copyUser(m.current), true
}

// Clear ends the session. The in-memory session is always dropped, even when
// the persisted copy cannot be removed.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	notifiers := append([]LogoutNotifier(nil), m.notifiers...)
	m.mu.Unlock()

	err := kv.Remove(ctx, m.kv, kv.TableCurrentSession, currentKey)

	if prev != nil {
		for _, n := range notifiers {
			n.NotifyLogout(ctx, copyUser(prev))
		}
	}
	return err
}

func copyUser(u *domain.SessionUser) *domain.SessionUser {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
