// Package persistence opens the storage backend named by the configuration.
//
// Backends register a Factory under the STORE_TYPE value that selects them:
// "memory", the SQL dialects known to kgorm ("sqlite", "postgres",
// "mysql"), "redis" and "mongo".
package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/getkayan/accountguard/core/audit"
	"github.com/getkayan/accountguard/core/config"
	"github.com/getkayan/accountguard/core/kv"
	"github.com/getkayan/accountguard/kgorm"
	"github.com/getkayan/accountguard/kmongo"
	"github.com/getkayan/accountguard/kredis"
	"github.com/redis/go-redis/v9"
)

// Backend is an opened store plus the audit store living next to it.
type Backend struct {
	Store kv.Store
	Audit audit.AuditStore
}

// Close releases the backend's connections.
func (b *Backend) Close() error {
	return b.Store.Close()
}

// Factory opens a backend from configuration.
type Factory func(ctx context.Context, cfg *config.Config) (*Backend, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

func init() {
	Register("memory", openMemory)
	for _, dialect := range kgorm.Dialects() {
		Register(dialect, openSQL(dialect))
	}
	Register("redis", openRedis)
	Register("mongo", openMongo)
}

// Register adds a backend factory, replacing any previous one with the same
// name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = f
}

// Names returns the registered backend names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the backend selected by cfg.StoreType.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	registryMu.RLock()
	f, ok := factories[cfg.StoreType]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("persistence: unknown storage provider %q", cfg.StoreType)
	}
	return f(ctx, cfg)
}

func openMemory(ctx context.Context, cfg *config.Config) (*Backend, error) {
	return &Backend{Store: kv.NewMemoryStore(), Audit: audit.NewMemoryStore()}, nil
}

func openSQL(dialect string) Factory {
	return func(ctx context.Context, cfg *config.Config) (*Backend, error) {
		db, err := kgorm.Open(dialect, cfg.DSN, nil)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: kgorm.NewStore(db), Audit: kgorm.NewAuditStore(db)}, nil
	}
}

func openRedis(ctx context.Context, cfg *config.Config) (*Backend, error) {
	s, err := kredis.Open(ctx, &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.RedisPrefix)
	if err != nil {
		return nil, err
	}
	return &Backend{Store: s, Audit: kredis.NewAuditStore(s.Client(), cfg.RedisPrefix)}, nil
}

func openMongo(ctx context.Context, cfg *config.Config) (*Backend, error) {
	s, err := kmongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	return &Backend{Store: s, Audit: kmongo.NewAuditStore(s.Database())}, nil
}
