package session

import (
	"context"
	"testing"

	"github.com/getkayan/accountguard/core/domain"
	"github.com/getkayan/accountguard/core/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetCurrentClear(t *testing.T) {
	m := NewManager(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	_, ok := m.Current()
	assert.False(t, ok)

	u := &domain.SessionUser{ID: "1", Email: "a@b.com", Name: "Ana"}
	require.NoError(t, m.Set(ctx, u))

	got, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, u, got)

	// Callers cannot mutate the held session through returned copies.
	got.EmailVerified = true
	again, _ := m.Current()
	assert.False(t, again.EmailVerified)

	require.NoError(t, m.Clear(ctx))
	_, ok = m.Current()
	assert.False(t, ok)
}

func TestRestoreFromStore(t *testing.T) {
	store := kv.NewMemoryStore()
	ctx := context.Background()

	first := NewManager(store, nil)
	require.NoError(t, first.Set(ctx, &domain.SessionUser{ID: "1", Email: "a@b.com"}))

	second := NewManager(store, nil)
	u, err := second.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "a@b.com", u.Email)

	cur, ok := second.Current()
	require.True(t, ok)
	assert.Equal(t, "1", cur.ID)
}

func TestRestoreEmptyAndCorrupt(t *testing.T) {
	store := kv.NewMemoryStore()
	ctx := context.Background()
	m := NewManager(store, nil)

	u, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, store.Set(ctx, kv.TableCurrentSession, currentKey, []byte(`{"id":""}`)))
	u, err = m.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	keys, _ := store.Keys(ctx, kv.TableCurrentSession)
	assert.Empty(t, keys)
}

func TestLogoutNotifier(t *testing.T) {
	m := NewManager(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	var notified []string
	m.AddLogoutNotifier(LogoutNotifierFunc(func(ctx context.Context, u *domain.SessionUser) {
		notified = append(notified, u.Email)
	}))

	require.NoError(t, m.Clear(ctx))
	assert.Empty(t, notified, "no session, nothing to notify")

	require.NoError(t, m.Set(ctx, &domain.SessionUser{ID: "1", Email: "a@b.com"}))
	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, []string{"a@b.com"}, notified)
}
