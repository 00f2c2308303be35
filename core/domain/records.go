// Package domain defines the records and collaborator contracts of accountguard.
//
// Every record persisted through a kv.Store is a typed struct with a JSON
// encoding and a Validate method that is run whenever the record is read back.
//
// # Records
//
//   - UserRecord: an account in the credential store, keyed by email
//   - Token: an email-verification or password-reset token
//   - LoginAttempt: one failed login, kept inside the lockout window
//   - AccountLock: an active lockout for an email
//   - SessionUser: the session-safe projection of a UserRecord
//
// # Collaborators
//
//   - Hasher: derives and compares password material
//   - Notifier: delivers tokens out of band
package domain

import (
	"errors"
	"fmt"
	"time"
)

// TokenKind distinguishes the two token families kept by the token store.
type TokenKind string

const (
	TokenVerification  TokenKind = "verification"
	TokenPasswordReset TokenKind = "password_reset"
)

func (k TokenKind) Valid() bool {
	return k == TokenVerification || k == TokenPasswordReset
}

// UserRecord is a registered account.
type UserRecord struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	PasswordHash  string     `json:"password_hash"`
	EmailVerified bool       `json:"email_verified"`
	RegisteredAt  time.Time  `json:"registered_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
}

func (u *UserRecord) Validate() error {
	switch {
	case u.ID == "":
		return errors.New("user: missing id")
	case u.Email == "":
		return errors.New("user: missing email")
	case u.PasswordHash == "":
		return fmt.Errorf("user %s: missing password material", u.Email)
	case u.RegisteredAt.IsZero():
		return fmt.Errorf("user %s: missing registration time", u.Email)
	case u.EmailVerified && u.VerifiedAt == nil:
		return fmt.Errorf("user %s: verified without verification time", u.Email)
	}
	return nil
}

// SessionUser returns the projection of u that is safe to hand to callers.
func (u *UserRecord) SessionUser() *SessionUser {
	return &SessionUser{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
	}
}

// SessionUser is the currently authenticated user without credential material.
type SessionUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
}

func (s *SessionUser) Validate() error {
	if s.ID == "" || s.Email == "" {
		return errors.New("session: incomplete user projection")
	}
	return nil
}

// Token is a single-use, expiring token bound to an email.
type Token struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	Kind      TokenKind `json:"kind"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t *Token) Validate() error {
	switch {
	case t.Token == "":
		return errors.New("token: missing value")
	case t.Email == "":
		return errors.New("token: missing email")
	case !t.Kind.Valid():
		return fmt.Errorf("token: unknown kind %q", t.Kind)
	case t.ExpiresAt.IsZero():
		return errors.New("token: missing expiry")
	}
	return nil
}

// Expired reports whether the token is dead at now. A token is invalid at or
// after its expiry.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// LoginAttempt is a recorded failed login.
type LoginAttempt struct {
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

func (a *LoginAttempt) Validate() error {
	if a.Email == "" || a.Timestamp.IsZero() {
		return errors.New("attempt: missing email or timestamp")
	}
	return nil
}

// AccountLock blocks logins for Email until LockedUntil.
type AccountLock struct {
	Email       string    `json:"email"`
	LockedUntil time.Time `json:"locked_until"`
}

func (l *AccountLock) Validate() error {
	if l.Email == "" || l.LockedUntil.IsZero() {
		return errors.New("lock: missing email or expiry")
	}
	return nil
}

// Active reports whether the lock still holds at now.
func (l *AccountLock) Active(now time.Time) bool {
	return l.LockedUntil.After(now)
}
