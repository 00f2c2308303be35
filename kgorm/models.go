package kgorm

import (
	"time"

	"github.com/getkayan/accountguard/core/audit"
)

// gormEntry is one kv record. Namespace holds the kv.Table name.
type gormEntry struct {
	Namespace string `gorm:"primaryKey;size:64"`
	EntryKey  string `gorm:"primaryKey;size:191"`
	Value     []byte
	UpdatedAt time.Time
}

func (gormEntry) TableName() string { return "kv_entries" }

type gormAuditEvent struct {
	ID        string `gorm:"primaryKey;size:64"`
	Type      string `gorm:"index;size:64"`
	Email     string `gorm:"index;size:191"`
	Status    string `gorm:"index;size:16"`
	Message   string
	Source    string    `gorm:"size:191"`
	Risk      string    `gorm:"size:16"`
	CreatedAt time.Time `gorm:"index"`
}

func (gormAuditEvent) TableName() string { return "audit_events" }

func fromCoreAuditEvent(e *audit.AuditEvent) *gormAuditEvent {
	if e == nil {
		return nil
	}
	return &gormAuditEvent{
		ID:        e.ID,
		Type:      e.Type,
		Email:     e.Email,
		Status:    e.Status,
		Message:   e.Message,
		Source:    e.Source,
		Risk:      string(e.Risk),
		CreatedAt: e.CreatedAt,
	}
}

func toCoreAuditEvent(e *gormAuditEvent) audit.AuditEvent {
	return audit.AuditEvent{
		ID:        e.ID,
		Type:      e.Type,
		Email:     e.Email,
		Status:    e.Status,
		Message:   e.Message,
		Source:    e.Source,
		Risk:      audit.RiskLevel(e.Risk),
		CreatedAt: e.CreatedAt,
	}
}
