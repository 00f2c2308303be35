// Package kvtest holds the conformance suite every kv.Store backend runs.
package kvtest

import (
	"context"
	"testing"

	"github.com/getkayan/accountguard/core/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreTests exercises the kv.Store contract against the store returned
// by newStore. newStore is called once per subtest and must return an empty
// store.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), kv.TableUsers, "nobody@example.com")
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, kv.TableUsers, "a@b.com", []byte(`{"v":1}`)))
		got, err := s.Get(ctx, kv.TableUsers, "a@b.com")
		require.NoError(t, err)
		assert.Equal(t, `{"v":1}`, string(got))

		require.NoError(t, s.Set(ctx, kv.TableUsers, "a@b.com", []byte(`{"v":2}`)))
		got, err = s.Get(ctx, kv.TableUsers, "a@b.com")
		require.NoError(t, err)
		assert.Equal(t, `{"v":2}`, string(got))
	})

	t.Run("TablesAreIsolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, kv.TableUsers, "k", []byte("users")))
		require.NoError(t, s.Set(ctx, kv.TableLockedAccounts, "k", []byte("locks")))

		got, err := s.Get(ctx, kv.TableUsers, "k")
		require.NoError(t, err)
		assert.Equal(t, "users", string(got))

		_, err = s.Get(ctx, kv.TableLoginAttempts, "k")
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("DeleteAndKeys", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, k := range []string{"c", "a", "b"} {
			require.NoError(t, s.Set(ctx, kv.TableVerificationTokens, k, []byte(k)))
		}
		keys, err := s.Keys(ctx, kv.TableVerificationTokens)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)

		require.NoError(t, s.Delete(ctx, kv.TableVerificationTokens, "b"))
		require.NoError(t, s.Delete(ctx, kv.TableVerificationTokens, "missing"))

		keys, err = s.Keys(ctx, kv.TableVerificationTokens)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "c"}, keys)

		keys, err = s.Keys(ctx, kv.TableResetTokens)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}
