package kgorm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DialectorOpener is an alias for a function that returns a gorm.Dialector for a given DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	providers  = make(map[string]DialectorOpener)
)

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

// Register adds a SQL dialect to the registry, replacing any previous one
// with the same name.
func Register(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers[name] = opener
}

// Dialects returns the registered dialect names, sorted.
func Dialects() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open connects to dsn with the named dialect and migrates the kv and audit
// tables. A nil cfg uses a silent gorm logger.
func Open(name, dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	registryMu.RLock()
	opener, ok := providers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("gorm: unknown storage provider %q", name)
	}

	if cfg == nil {
		cfg = &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	}

	db, err := gorm.Open(opener(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("gorm: open %s: %w", name, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the tables this package uses.
func AutoMigrate(db *gorm.DB, models ...any) error {
	baseModels := []any{
		&gormEntry{},
		&gormAuditEvent{},
	}
	if err := db.AutoMigrate(append(baseModels, models...)...); err != nil {
		return fmt.Errorf("gorm: migrate: %w", err)
	}
	return nil
}
