// Package health probes the storage an accountguard service depends on.
//
// Checks run concurrently under a shared timeout and are folded into a
// single Report:
//
//   - StatusHealthy: every check passed
//   - StatusDegraded: a non-critical check failed
//   - StatusUnhealthy: a critical check failed
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/getkayan/accountguard/core/audit"
	"github.com/getkayan/accountguard/core/kv"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the result of a single probe.
type Check struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"-"`
	LatencyMs int64         `json:"latency_ms"`
}

// Report is the combined result of every registered check, ordered by name.
type Report struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) *Check
}

// CheckFunc adapts a function to Checker.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) *Check
}

func (c CheckFunc) Name() string                     { return c.CheckName }
func (c CheckFunc) Check(ctx context.Context) *Check { return c.Fn(ctx) }

// Manager runs registered checks.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	version  string
	timeout  time.Duration
}

type ManagerOption func(*Manager)

func NewManager(version string, opts ...ManagerOption) *Manager {
	m := &Manager{
		version: version,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithTimeout bounds a whole Check run.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = d
	}
}

func (m *Manager) Register(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

func (m *Manager) RegisterFunc(name string, fn func(ctx context.Context) *Check) {
	m.Register(CheckFunc{CheckName: name, Fn: fn})
}

// Check runs all checks and returns the report.
func (m *Manager) Check(ctx context.Context) *Report {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	report := &Report{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
		Checks:    make([]Check, 0, len(checkers)),
	}

	var wg sync.WaitGroup
	results := make(chan *Check, len(checkers))

	for _, checker := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			start := time.Now()
			check := c.Check(ctx)
			if check == nil {
				check = &Check{Name: c.Name(), Status: StatusUnhealthy}
			}
			check.Latency = time.Since(start)
			check.LatencyMs = check.Latency.Milliseconds()
			results <- check
		}(checker)
	}

	wg.Wait()
	close(results)

	for check := range results {
		report.Checks = append(report.Checks, *check)

		switch check.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			if report.Status != StatusUnhealthy {
				report.Status = StatusDegraded
			}
		}
	}
	sort.Slice(report.Checks, func(i, j int) bool {
		return report.Checks[i].Name < report.Checks[j].Name
	})

	return report
}

func (m *Manager) IsHealthy(ctx context.Context) bool {
	return m.Check(ctx).Status == StatusHealthy
}

// StoreChecker lists the users table. A failure is critical.
type StoreChecker struct {
	name  string
	store kv.Store
}

func NewStoreChecker(name string, store kv.Store) *StoreChecker {
	return &StoreChecker{name: name, store: store}
}

func (c *StoreChecker) Name() string { return c.name }

func (c *StoreChecker) Check(ctx context.Context) *Check {
	check := &Check{Name: c.name}

	keys, err := c.store.Keys(ctx, kv.TableUsers)
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		return check
	}
	check.Status = StatusHealthy
	check.Message = fmt.Sprintf("%d accounts", len(keys))
	return check
}

// AuditChecker reads the newest audit event. Audit logging is best effort,
// so a failure only degrades the report.
type AuditChecker struct {
	store audit.AuditStore
}

func NewAuditChecker(store audit.AuditStore) *AuditChecker {
	return &AuditChecker{store: store}
}

func (c *AuditChecker) Name() string { return "audit" }

func (c *AuditChecker) Check(ctx context.Context) *Check {
	check := &Check{Name: c.Name()}

	if c.store == nil {
		check.Status = StatusDegraded
		check.Message = "no audit store"
		return check
	}
	if _, err := c.store.Query(ctx, audit.Filter{Limit: 1}); err != nil {
		check.Status = StatusDegraded
		check.Message = err.Error()
		return check
	}
	check.Status = StatusHealthy
	check.Message = "ok"
	return check
}
