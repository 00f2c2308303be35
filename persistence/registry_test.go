package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/getkayan/accountguard/core/config"
	"github.com/getkayan/accountguard/core/kv"
	"github.com/getkayan/accountguard/kgorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"memory", "mongo", "mysql", "postgres", "redis", "sqlite"}, Names())
}

func TestOpenMemory(t *testing.T) {
	cfg := config.Default()
	cfg.StoreType = "memory"

	b, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &kv.MemoryStore{}, b.Store)
	assert.NotNil(t, b.Audit)
}

func TestOpenSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.StoreType = "sqlite"
	cfg.DSN = filepath.Join(t.TempDir(), "accountguard.db")

	b, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &kgorm.Store{}, b.Store)
	assert.IsType(t, &kgorm.AuditStore{}, b.Audit)

	ctx := context.Background()
	require.NoError(t, b.Store.Set(ctx, kv.TableUsers, "k", []byte("v")))
	got, err := b.Store.Get(ctx, kv.TableUsers, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestOpenUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.StoreType = "cassandra"

	_, err := Open(context.Background(), cfg)
	assert.ErrorContains(t, err, `unknown storage provider "cassandra"`)
}

func TestRegisterCustom(t *testing.T) {
	called := false
	Register("custom-test", func(ctx context.Context, cfg *config.Config) (*Backend, error) {
		called = true
		return openMemory(ctx, cfg)
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(factories, "custom-test")
		registryMu.Unlock()
	})

	cfg := config.Default()
	cfg.StoreType = "custom-test"
	_, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, called)
}
