package kredis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/getkayan/accountguard/core/audit"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AuditStore implements audit.AuditStore as a sorted set of JSON events.
type AuditStore struct {
	client redis.UniversalClient
	key    string
}

func NewAuditStore(client redis.UniversalClient, prefix string) *AuditStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &AuditStore{client: client, key: prefix + "audit_events"}
}

func (s *AuditStore) SaveEvent(ctx context.Context, event *audit.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis audit: encode: %w", err)
	}
	return s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(event.CreatedAt.UnixMilli()),
		Member: raw,
	}).Err()
}

func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.AuditEvent, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !filter.StartTime.IsZero() {
		rng.Min = strconv.FormatInt(filter.StartTime.UnixMilli(), 10)
	}
	if !filter.EndTime.IsZero() {
		rng.Max = "(" + strconv.FormatInt(filter.EndTime.UnixMilli(), 10)
	}

	members, err := s.client.ZRevRangeByScore(ctx, s.key, rng).Result()
	if err != nil {
		return nil, fmt.Errorf("redis audit: query: %w", err)
	}

	var out []audit.AuditEvent
	for _, m := range members {
		var e audit.AuditEvent
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			continue
		}
		if !filter.Matches(&e) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *AuditStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	upper := "(" + strconv.FormatInt(olderThan.UnixMilli(), 10)
	return s.client.ZRemRangeByScore(ctx, s.key, "-inf", upper).Result()
}
