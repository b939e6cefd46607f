package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nexthire/nexthire-api/internal/core/domain"
)

const collectionAudit = "audit_logs"

// AuditRepository appends abuse events to the audit_logs collection.
// Documents are only ever inserted.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionAudit)}
}

type auditDoc struct {
	ID              string          `bson:"_id"`
	Kind            string          `bson:"kind"`
	Timestamp       time.Time       `bson:"timestamp"`
	IP              string          `bson:"ip"`
	Email           string          `bson:"email,omitempty"`
	UserAgent       string          `bson:"userAgent,omitempty"`
	Browser         string          `bson:"browser,omitempty"`
	OS              string          `bson:"os,omitempty"`
	DeviceType      string          `bson:"deviceType,omitempty"`
	Geo             *domain.GeoInfo `bson:"geo,omitempty"`
	AttemptsByIP    int             `bson:"attemptsByIP,omitempty"`
	AttemptsByEmail int             `bson:"attemptsByEmail,omitempty"`
	InputField      string          `bson:"inputField,omitempty"`
	MaliciousValue  string          `bson:"maliciousValue,omitempty"`
	RelatedEmails   []string        `bson:"relatedEmails,omitempty"`
	RelatedIPs      []string        `bson:"relatedIPs,omitempty"`
}

// Record satisfies ports.AuditSink.
func (r *AuditRepository) Record(ctx context.Context, ev domain.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := auditDoc{
		ID:              ev.ID,
		Kind:            string(ev.Kind),
		Timestamp:       ev.Timestamp.UTC(),
		IP:              ev.Client.IP,
		Email:           ev.Email,
		UserAgent:       ev.Client.UserAgent,
		Browser:         ev.Client.Browser,
		OS:              ev.Client.OS,
		DeviceType:      ev.Client.DeviceType,
		Geo:             ev.Client.Geo,
		AttemptsByIP:    ev.AttemptsByIP,
		AttemptsByEmail: ev.AttemptsByEmail,
		InputField:      ev.InputField,
		MaliciousValue:  ev.MaliciousValue,
		RelatedEmails:   ev.RelatedEmails,
		RelatedIPs:      ev.RelatedIPs,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// EnsureIndexes creates the lookup indexes used by investigations.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "ip", Value: 1}}},
		{Keys: bson.D{{Key: "email", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
