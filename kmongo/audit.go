package kmongo

import (
	"context"
	"fmt"
	"time"

	"github.com/getkayan/accountguard/core/audit"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type auditDocument struct {
	ID        string    `bson:"_id"`
	Type      string    `bson:"type"`
	Email     string    `bson:"email"`
	Status    string    `bson:"status"`
	Message   string    `bson:"message,omitempty"`
	Source    string    `bson:"source,omitempty"`
	Risk      string    `bson:"risk,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// AuditStore implements audit.AuditStore in the audit_events collection.
type AuditStore struct {
	coll *mongo.Collection
}

func NewAuditStore(db *mongo.Database) *AuditStore {
	return &AuditStore{coll: db.Collection("audit_events")}
}

func (s *AuditStore) SaveEvent(ctx context.Context, event *audit.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	_, err := s.coll.InsertOne(ctx, auditDocument{
		ID:        event.ID,
		Type:      event.Type,
		Email:     event.Email,
		Status:    event.Status,
		Message:   event.Message,
		Source:    event.Source,
		Risk:      string(event.Risk),
		CreatedAt: event.CreatedAt,
	})
	return err
}

func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.AuditEvent, error) {
	q := bson.M{}
	if filter.Email != "" {
		q["email"] = filter.Email
	}
	if len(filter.Types) > 0 {
		q["type"] = bson.M{"$in": filter.Types}
	}
	if len(filter.Statuses) > 0 {
		q["status"] = bson.M{"$in": filter.Statuses}
	}
	created := bson.M{}
	if !filter.StartTime.IsZero() {
		created["$gte"] = filter.StartTime
	}
	if !filter.EndTime.IsZero() {
		created["$lt"] = filter.EndTime
	}
	if len(created) > 0 {
		q["created_at"] = created
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := s.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo audit: query: %w", err)
	}
	var docs []auditDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo audit: query: %w", err)
	}

	events := make([]audit.AuditEvent, len(docs))
	for i, d := range docs {
		events[i] = audit.AuditEvent{
			ID:        d.ID,
			Type:      d.Type,
			Email:     d.Email,
			Status:    d.Status,
			Message:   d.Message,
			Source:    d.Source,
			Risk:      audit.RiskLevel(d.Risk),
			CreatedAt: d.CreatedAt,
		}
	}
	return events, nil
}

func (s *AuditStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": olderThan}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
