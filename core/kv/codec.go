package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getkayan/accountguard/core/domain"
)

// Validator is implemented by every persisted record.
type Validator interface {
	Validate() error
}

// GetJSON loads key from table and decodes it into a new T.
//
// It returns ErrNotFound when the key is absent, an error wrapping ErrCorrupt
// when the value does not decode or validate, and an error wrapping
// domain.ErrStorage for backend failures.
func GetJSON[T any, PT interface {
	*T
	Validator
}](ctx context.Context, s Store, table Table, key string) (*T, error) {
	raw, err := s.Get(ctx, table, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %s/%s: %v", domain.ErrStorage, table, key, err)
	}

	rec := PT(new(T))
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrCorrupt, table, key, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrCorrupt, table, key, err)
	}
	return (*T)(rec), nil
}

// PutJSON validates and stores rec under key.
func PutJSON(ctx context.Context, s Store, table Table, key string, rec Validator) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("kv: refusing to store invalid %s record: %w", table, err)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kv: encode %s/%s: %w", table, key, err)
	}
	if err := s.Set(ctx, table, key, raw); err != nil {
		return fmt.Errorf("%w: set %s/%s: %v", domain.ErrStorage, table, key, err)
	}
	return nil
}

// Remove deletes key from table, wrapping backend failures in domain.ErrStorage.
func Remove(ctx context.Context, s Store, table Table, key string) error {
	if err := s.Delete(ctx, table, key); err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", domain.ErrStorage, table, key, err)
	}
	return nil
}

// ListKeys returns the keys of table, wrapping backend failures in domain.ErrStorage.
func ListKeys(ctx context.Context, s Store, table Table) ([]string, error) {
	keys, err := s.Keys(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("%w: keys %s: %v", domain.ErrStorage, table, err)
	}
	return keys, nil
}
