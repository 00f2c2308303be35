package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenExpiredAtBoundary(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := &Token{Token: "t", Email: "a@b.com", Kind: TokenVerification, ExpiresAt: now}

	assert.True(t, tok.Expired(now), "a token is dead at its expiry instant")
	assert.True(t, tok.Expired(now.Add(time.Nanosecond)))
	assert.False(t, tok.Expired(now.Add(-time.Nanosecond)))
}

func TestAccountLockActive(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := &AccountLock{Email: "a@b.com", LockedUntil: now}

	assert.False(t, l.Active(now))
	assert.True(t, l.Active(now.Add(-time.Second)))
}

func TestUserRecordValidate(t *testing.T) {
	now := time.Now()
	valid := UserRecord{ID: "1", Email: "a@b.com", PasswordHash: "h", RegisteredAt: now}
	require.NoError(t, valid.Validate())

	noHash := valid
	noHash.PasswordHash = ""
	assert.Error(t, noHash.Validate())

	verified := valid
	verified.EmailVerified = true
	assert.Error(t, verified.Validate(), "verified records carry a verification time")
	verified.VerifiedAt = &now
	assert.NoError(t, verified.Validate())
}

func TestSessionUserProjection(t *testing.T) {
	u := &UserRecord{ID: "1", Email: "a@b.com", Name: "Ana", PasswordHash: "secret"}
	s := u.SessionUser()

	assert.Equal(t, &SessionUser{ID: "1", Email: "a@b.com", Name: "Ana"}, s)
}

func TestCredentialErrors(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", ErrUserNotFound)

	assert.ErrorIs(t, wrapped, ErrUserNotFound)
	assert.ErrorIs(t, wrapped, ErrInvalidCredentials)
	assert.NotErrorIs(t, wrapped, ErrWrongPassword)
	assert.Equal(t, ErrUserNotFound.Error(), ErrWrongPassword.Error())
	assert.Equal(t, "user_not_found", Reason(wrapped))
	assert.Equal(t, "wrong_password", Reason(ErrWrongPassword))
	assert.Equal(t, "", Reason(errors.New("other")))
}

func TestLockedError(t *testing.T) {
	err := fmt.Errorf("login: %w", &LockedError{Email: "x@y.com", RemainingSeconds: 42})

	assert.ErrorIs(t, err, ErrAccountLocked)
	le, ok := AsLockedError(err)
	require.True(t, ok)
	assert.Equal(t, 42, le.RemainingSeconds)
	assert.Contains(t, err.Error(), "42 seconds")
}
