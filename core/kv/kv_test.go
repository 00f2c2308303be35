package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/kv"
	"github.com/getkayan/accountguard/core/kv/kvtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	kvtest.RunStoreTests(t, func(t *testing.T) kv.Store {
		return kv.NewMemoryStore()
	})
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := kv.NewMemoryStore()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, kv.TableUsers, "k", buf))
	buf[0] = 'x'

	got, err := s.Get(ctx, kv.TableUsers, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestJSONRoundTripValidatesOnRead(t *testing.T) {
	s := kv.NewMemoryStore()
	ctx := context.Background()

	lock := &domain.AccountLock{Email: "a@b.com", LockedUntil: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, kv.PutJSON(ctx, s, kv.TableLockedAccounts, lock.Email, lock))

	got, err := kv.GetJSON[domain.AccountLock](ctx, s, kv.TableLockedAccounts, lock.Email)
	require.NoError(t, err)
	assert.True(t, lock.LockedUntil.Equal(got.LockedUntil))

	require.NoError(t, s.Set(ctx, kv.TableLockedAccounts, "broken", []byte("{not json")))
	_, err = kv.GetJSON[domain.AccountLock](ctx, s, kv.TableLockedAccounts, "broken")
	assert.ErrorIs(t, err, kv.ErrCorrupt)

	require.NoError(t, s.Set(ctx, kv.TableLockedAccounts, "empty", []byte(`{"email":""}`)))
	_, err = kv.GetJSON[domain.AccountLock](ctx, s, kv.TableLockedAccounts, "empty")
	assert.ErrorIs(t, err, kv.ErrCorrupt)

	_, err = kv.GetJSON[domain.AccountLock](ctx, s, kv.TableLockedAccounts, "missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestPutJSONRejectsInvalidRecords(t *testing.T) {
	s := kv.NewMemoryStore()
	err := kv.PutJSON(context.Background(), s, kv.TableUsers, "x", &domain.UserRecord{})
	assert.Error(t, err)

	keys, _ := s.Keys(context.Background(), kv.TableUsers)
	assert.Empty(t, keys)
}

type failingStore struct{ kv.MemoryStore }

func (f *failingStore) Get(ctx context.Context, table kv.Table, key string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestGetJSONWrapsBackendErrors(t *testing.T) {
	_, err := kv.GetJSON[domain.UserRecord](context.Background(), &failingStore{}, kv.TableUsers, "a@b.com")
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NotErrorIs(t, err, kv.ErrNotFound)
}
