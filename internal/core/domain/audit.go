package domain

import "time"

// AuditKind identifies which abuse tracker produced an audit event.
type AuditKind string

const (
	AuditLoginBruteForce AuditKind = "login_bruteforce"
	AuditTwoFABruteForce AuditKind = "twofa_bruteforce"
	AuditMaliciousInput  AuditKind = "malicious_input"
)

// RedactedValue replaces secrets that must never reach the audit log.
const RedactedValue = "[redacted]"

// GeoInfo is the coarse location resolved for a client IP.
type GeoInfo struct {
	Country   string  `json:"country,omitempty" bson:"country,omitempty"`
	City      string  `json:"city,omitempty" bson:"city,omitempty"`
	Latitude  float64 `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty" bson:"longitude,omitempty"`
}

// ClientInfo describes the requester behind a blocked attempt.
type ClientInfo struct {
	IP         string
	UserAgent  string
	Browser    string
	OS         string
	DeviceType string
	Geo        *GeoInfo
}

// AuditEvent is an append-only record written when a tracker blocks a request.
type AuditEvent struct {
	ID              string
	Kind            AuditKind
	Timestamp       time.Time
	Email           string
	Client          ClientInfo
	AttemptsByIP    int
	AttemptsByEmail int
	InputField      string
	MaliciousValue  string
	// RelatedEmails are the emails the IP failed against inside the window,
	// RelatedIPs the IPs that failed against the email. Both are capped.
	RelatedEmails []string
	RelatedIPs    []string
}

// ShardKey groups events that must be written in order.
func (e AuditEvent) ShardKey() string {
	if e.Email != "" {
		return e.Email
	}
	return e.Client.IP
}
