// Package kv defines the key-value persistence contract used by every
// accountguard store, an in-memory implementation, and the typed JSON codec
// that validates records on read.
//
// Backends live in sibling adapter modules: kgorm (SQL via GORM), kredis
// (Redis) and kmongo (MongoDB). All of them are scoped per logical Table.
package kv

import (
	"context"
	"errors"
)

// Table names a logical table inside a Store.
type Table string

const (
	TableUsers              Table = "users"
	TableVerificationTokens Table = "verification_tokens"
	TableResetTokens        Table = "password_reset_tokens"
	TableResetIndex         Table = "password_reset_index"
	TableLoginAttempts      Table = "login_attempts"
	TableLockedAccounts     Table = "locked_accounts"
	TableCurrentSession     Table = "current_session"
)

// Tables lists every table the library writes to.
var Tables = []Table{
	TableUsers,
	TableVerificationTokens,
	TableResetTokens,
	TableResetIndex,
	TableLoginAttempts,
	TableLockedAccounts,
	TableCurrentSession,
}

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("kv: not found")

	// ErrCorrupt is returned by GetJSON when a stored value cannot be decoded
	// or fails validation.
	ErrCorrupt = errors.New("kv: corrupt record")
)

// Store is the persistence collaborator. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, table Table, key string) ([]byte, error)
	Set(ctx context.Context, table Table, key string, value []byte) error
	Delete(ctx context.Context, table Table, key string) error
	Keys(ctx context.Context, table Table) ([]string, error)
	Close() error
}
