package kgorm

import (
	"context"
	"time"

	"github.com/getkayan/accountguard/core/audit"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditStore implements audit.AuditStore in the audit_events table.
type AuditStore struct {
	db *gorm.DB
}

func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) SaveEvent(ctx context.Context, event *audit.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(fromCoreAuditEvent(event)).Error
}

func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.AuditEvent, error) {
	q := s.db.WithContext(ctx).Model(&gormAuditEvent{})
	if filter.Email != "" {
		q = q.Where("email = ?", filter.Email)
	}
	if len(filter.Types) > 0 {
		q = q.Where("type IN ?", filter.Types)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if !filter.StartTime.IsZero() {
		q = q.Where("created_at >= ?", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		q = q.Where("created_at < ?", filter.EndTime)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []gormAuditEvent
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]audit.AuditEvent, len(rows))
	for i := range rows {
		events[i] = toCoreAuditEvent(&rows[i])
	}
	return events, nil
}

func (s *AuditStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", olderThan).Delete(&gormAuditEvent{})
	return res.RowsAffected, res.Error
}
