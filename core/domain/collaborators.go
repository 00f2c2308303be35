package domain

import "context"

// Hasher defines the interface for password hashing and verification.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) bool
}

// Notifier delivers tokens to the owner of an email address. Implementations
// must not assume the caller waits for delivery.
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// IDGenerator is a function that generates a new unique identifier.
type IDGenerator func() string
