// Package kgorm stores accountguard tables in a SQL database through GORM.
//
// Every kv.Table lives in the single kv_entries table, keyed by
// (namespace, entry_key). Audit events get their own audit_events table.
//
//	db, err := kgorm.Open("sqlite", "accountguard.db", nil)
//	if err != nil {
//	    return err
//	}
//	store := kgorm.NewStore(db)
package kgorm

import (
	"context"
	"time"

	"github.com/getkayan/accountguard/core/kv"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements kv.Store on top of a *gorm.DB.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Get(ctx context.Context, table kv.Table, key string) ([]byte, error) {
	var entries []gormEntry
	res := s.db.WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", string(table), key).
		Limit(1).
		Find(&entries)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(entries) == 0 {
		return nil, kv.ErrNotFound
	}
	return entries[0].Value, nil
}

func (s *Store) Set(ctx context.Context, table kv.Table, key string, value []byte) error {
	e := &gormEntry{
		Namespace: string(table),
		EntryKey:  key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(e).Error
}

func (s *Store) Delete(ctx context.Context, table kv.Table, key string) error {
	return s.db.WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", string(table), key).
		Delete(&gormEntry{}).Error
}

func (s *Store) Keys(ctx context.Context, table kv.Table) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&gormEntry{}).
		Where("namespace = ?", string(table)).
		Order("entry_key").
		Pluck("entry_key", &keys).Error
	return keys, err
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
