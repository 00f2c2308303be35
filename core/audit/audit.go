// Package audit records security events emitted by the account flows.
package audit

import (
	"context"
	"time"
)

// RiskLevel categorizes the severity of audit events.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// AuditEvent represents a structured security event record.
type AuditEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`   // e.g., "auth.login.success"
	Email     string    `json:"email"`  // The account the event concerns
	Status    string    `json:"status"` // "success", "failure", "blocked"
	Message   string    `json:"message,omitempty"`
	Source    string    `json:"source,omitempty"` // Caller address, if known
	Risk      RiskLevel `json:"risk,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditStore defines the interface for persisting and querying audit events.
type AuditStore interface {
	// SaveEvent persists an audit event.
	SaveEvent(ctx context.Context, event *AuditEvent) error

	// Query returns events matching the filter, newest first.
	Query(ctx context.Context, filter Filter) ([]AuditEvent, error)

	// Purge deletes events older than the specified time.
	// Returns the number of events deleted.
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// Filter for querying audit events. Zero fields match everything.
type Filter struct {
	Email     string
	Types     []string
	Statuses  []string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// Matches reports whether e satisfies f.
func (f Filter) Matches(e *AuditEvent) bool {
	if f.Email != "" && e.Email != f.Email {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, e.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, e.Status) {
		return false
	}
	if !f.StartTime.IsZero() && e.CreatedAt.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && !e.CreatedAt.Before(f.EndTime) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusBlocked = "blocked"
)

const (
	EventLoginSuccess = "auth.login.success"
	EventLoginFailure = "auth.login.failure"
	EventLoginBlocked = "auth.login.blocked"
	EventLockout      = "auth.lockout"
	EventLogout       = "auth.logout"

	EventRegistration       = "identity.registration"
	EventVerificationIssued = "identity.verification.initiate"
	EventVerified           = "identity.verification.success"
	EventVerificationFailed = "identity.verification.failure"

	EventPasswordResetRequested = "auth.password.reset.initiate"
	EventPasswordReset          = "auth.password.reset.success"
	EventPasswordResetFailed    = "auth.password.reset.failure"
)

// ---- Event Builder ----

// EventBuilder provides a fluent API for creating audit events.
type EventBuilder struct {
	event *AuditEvent
}

// NewEvent starts building an event of eventType that happened at at.
func NewEvent(eventType string, at time.Time) *EventBuilder {
	return &EventBuilder{
		event: &AuditEvent{
			Type:      eventType,
			CreatedAt: at,
			Risk:      RiskLow,
		},
	}
}

func (b *EventBuilder) Email(email string) *EventBuilder {
	b.event.Email = email
	return b
}

func (b *EventBuilder) Success() *EventBuilder {
	b.event.Status = StatusSuccess
	return b
}

func (b *EventBuilder) Failure() *EventBuilder {
	b.event.Status = StatusFailure
	return b
}

func (b *EventBuilder) Blocked() *EventBuilder {
	b.event.Status = StatusBlocked
	return b
}

func (b *EventBuilder) Message(msg string) *EventBuilder {
	b.event.Message = msg
	return b
}

func (b *EventBuilder) Source(src string) *EventBuilder {
	b.event.Source = src
	return b
}

func (b *EventBuilder) Risk(level RiskLevel) *EventBuilder {
	b.event.Risk = level
	return b
}

// Build returns the constructed event.
func (b *EventBuilder) Build() *AuditEvent {
	return b.event
}

// ---- Hooks ----

// Hooks provides extension points for audit behavior.
type Hooks struct {
	// AlertOnRisk is called for high risk events after they are saved.
	AlertOnRisk func(ctx context.Context, event *AuditEvent)

	// IDGenerator generates event IDs. If nil, the store should generate.
	IDGenerator func() string
}

// ---- Logger Wrapper ----

// Logger wraps an AuditStore and applies hooks.
type Logger struct {
	store AuditStore
	hooks Hooks
}

func NewLogger(store AuditStore, hooks Hooks) *Logger {
	return &Logger{store: store, hooks: hooks}
}

// Log persists an audit event with hooks applied.
func (l *Logger) Log(ctx context.Context, event *AuditEvent) error {
	if event.ID == "" && l.hooks.IDGenerator != nil {
		event.ID = l.hooks.IDGenerator()
	}

	if err := l.store.SaveEvent(ctx, event); err != nil {
		return err
	}

	if event.Risk == RiskHigh && l.hooks.AlertOnRisk != nil {
		l.hooks.AlertOnRisk(ctx, event)
	}
	return nil
}

// Query delegates to the store.
func (l *Logger) Query(ctx context.Context, filter Filter) ([]AuditEvent, error) {
	return l.store.Query(ctx, filter)
}

// Store returns the underlying store for direct access.
func (l *Logger) Store() AuditStore {
	return l.store
}
