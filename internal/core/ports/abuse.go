package ports

import (
	"context"

	"github.com/nexthire/nexthire-api/internal/core/domain"
)

// AttemptCounter is a time-windowed counter store. A key whose window has
// elapsed counts as zero.
type AttemptCounter interface {
	// Increment adds one failure and returns the count inside the current window.
	Increment(ctx context.Context, key string) (int, error)
	// Count returns the current count without modifying it.
	Count(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
	// Remember adds member to the set under key unless the set already holds
	// limit members. The set shares the counter window semantics.
	Remember(ctx context.Context, key, member string, limit int) error
	// Members returns the set under key in sorted order.
	Members(ctx context.Context, key string) ([]string, error)
}

// AuditSink records abuse events. Records are never updated.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// ClientDescriber enriches a requester with user-agent and location details.
type ClientDescriber interface {
	Describe(ip, userAgent string) domain.ClientInfo
}

// ClientRequest identifies who sent a request.
type ClientRequest struct {
	IP        string
	UserAgent string
}
