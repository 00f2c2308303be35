package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps audit events in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	events []AuditEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveEvent(ctx context.Context, event *AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []AuditEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if filter.Matches(&s.events[i]) {
			out = append(out, s.events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var n int64
	for _, e := range s.events {
		if e.CreatedAt.Before(olderThan) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return n, nil
}
