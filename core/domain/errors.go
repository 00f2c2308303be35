package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDuplicateEmail        = errors.New("email is already registered")
	ErrWeakPassword          = errors.New("password does not satisfy the password policy")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrEmailNotVerified      = errors.New("email address is not verified")
	ErrAccountLocked         = errors.New("account is locked")
	ErrInvalidToken          = errors.New("invalid token")
	ErrTokenExpired          = errors.New("token expired")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrNoSession             = errors.New("no active session")
	ErrAlreadyVerified       = errors.New("email address is already verified")
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
	ErrStorage               = errors.New("storage failure")
)

// credentialError keeps "unknown user" and "wrong password" apart for
// errors.Is while rendering both identically, so a caller that only prints
// the error cannot be used to enumerate accounts.
type credentialError struct {
	reason string
}

func (e *credentialError) Error() string { return ErrInvalidCredentials.Error() }

func (e *credentialError) Is(target error) bool { return target == ErrInvalidCredentials }

var (
	ErrUserNotFound  error = &credentialError{reason: "user_not_found"}
	ErrWrongPassword error = &credentialError{reason: "wrong_password"}
)

// Reason returns the internal failure reason for credential errors, for logs
// and audit records. It returns "" for other errors.
func Reason(err error) string {
	var ce *credentialError
	if errors.As(err, &ce) {
		return ce.reason
	}
	return ""
}

// LockedError is returned while an account is locked out.
type LockedError struct {
	Email            string
	LockedUntil      time.Time
	RemainingSeconds int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account is locked, retry in %d seconds", e.RemainingSeconds)
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// AsLockedError extracts a LockedError from err if possible.
func AsLockedError(err error) (*LockedError, bool) {
	var le *LockedError
	ok := errors.As(err, &le)
	return le, ok
}
