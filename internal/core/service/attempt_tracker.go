package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nexthire/nexthire-api/internal/core/domain"
	"github.com/nexthire/nexthire-api/internal/core/ports"
)

const unknownEmail = "unknown"

const (
	prefixLoginIP    = "login:ip:"
	prefixLoginEmail = "login:email:"
	prefixCodeEmail  = "2fa:email:"
	prefixInputIP    = "input:ip:"
	prefixInputEmail = "input:email:"

	// Sets of the other side of each failed attempt, for audit events.
	prefixSeenLoginIP    = "seen:login:ip:"
	prefixSeenLoginEmail = "seen:login:email:"
	prefixSeenCodeEmail  = "seen:2fa:email:"
)

// maxRelated caps the emails or IPs kept per key.
const maxRelated = 20

// AttemptPolicy holds the per-tracker thresholds. A key is blocked once its
// count is strictly greater than the threshold.
type AttemptPolicy struct {
	LoginMaxPerIP    int
	LoginMaxPerEmail int
	CodeMaxPerEmail  int
	InputMaxPerIP    int
	InputMaxPerEmail int
}

func DefaultAttemptPolicy() AttemptPolicy {
	return AttemptPolicy{
		LoginMaxPerIP:    10,
		LoginMaxPerEmail: 5,
		CodeMaxPerEmail:  5,
		InputMaxPerIP:    3,
		InputMaxPerEmail: 3,
	}
}

// AttemptTracker applies brute-force and malicious-input limits on top of an
// AttemptCounter and writes one audit event for every blocked attempt.
type AttemptTracker struct {
	counter   ports.AttemptCounter
	audit     ports.AuditSink
	describer ports.ClientDescriber
	policy    AttemptPolicy
	log       zerolog.Logger
	now       func() time.Time
}

func NewAttemptTracker(
	counter ports.AttemptCounter,
	audit ports.AuditSink,
	describer ports.ClientDescriber,
	policy AttemptPolicy,
	log zerolog.Logger,
) *AttemptTracker {
	return &AttemptTracker{
		counter:   counter,
		audit:     audit,
		describer: describer,
		policy:    policy,
		log:       log,
		now:       time.Now,
	}
}

// TrackLogin counts a failed password check against both the client IP and
// the email, then rejects when either exceeds its limit. Successful checks
// are not counted but are still rejected while a limit is exceeded.
func (t *AttemptTracker) TrackLogin(ctx context.Context, client ports.ClientRequest, email string, failed bool) error {
	email = domain.NormalizeEmail(email)

	byIP, err := t.touch(ctx, prefixLoginIP+client.IP, failed)
	if err != nil {
		return err
	}
	byEmail, err := t.touch(ctx, prefixLoginEmail+email, failed)
	if err != nil {
		return err
	}
	if failed {
		t.remember(ctx, prefixSeenLoginIP+client.IP, email)
		t.remember(ctx, prefixSeenLoginEmail+email, client.IP)
	}

	if byIP <= t.policy.LoginMaxPerIP && byEmail <= t.policy.LoginMaxPerEmail {
		return nil
	}

	t.record(ctx, domain.AuditEvent{
		Kind:            domain.AuditLoginBruteForce,
		Email:           email,
		AttemptsByIP:    byIP,
		AttemptsByEmail: byEmail,
		RelatedEmails:   t.members(ctx, prefixSeenLoginIP+client.IP),
		RelatedIPs:      t.members(ctx, prefixSeenLoginEmail+email),
	}, client)
	return domain.ErrTooManyLoginAttempts
}

// CheckLogin refuses a login whose IP or email is already over its limit
// without counting anything. AuthService calls it before the user lookup so
// blocked clients never pay for a password hash.
func (t *AttemptTracker) CheckLogin(ctx context.Context, client ports.ClientRequest, email string) error {
	return t.TrackLogin(ctx, client, email, false)
}

// TrackCode applies the 2FA limit, keyed by email only.
func (t *AttemptTracker) TrackCode(ctx context.Context, client ports.ClientRequest, email string, failed bool) error {
	email = domain.NormalizeEmail(email)

	byEmail, err := t.touch(ctx, prefixCodeEmail+email, failed)
	if err != nil {
		return err
	}
	if failed {
		t.remember(ctx, prefixSeenCodeEmail+email, client.IP)
	}
	if byEmail <= t.policy.CodeMaxPerEmail {
		return nil
	}

	t.record(ctx, domain.AuditEvent{
		Kind:            domain.AuditTwoFABruteForce,
		Email:           email,
		AttemptsByEmail: byEmail,
		RelatedIPs:      t.members(ctx, prefixSeenCodeEmail+email),
	}, client)
	return domain.ErrTooManyCodeAttempts
}

// ResetLogin clears the email login counter after a correct password.
func (t *AttemptTracker) ResetLogin(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if err := t.counter.Reset(ctx, prefixLoginEmail+email); err != nil {
		return err
	}
	return t.counter.Reset(ctx, prefixSeenLoginEmail+email)
}

// ResetCode clears the 2FA counter after a correct code.
func (t *AttemptTracker) ResetCode(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if err := t.counter.Reset(ctx, prefixCodeEmail+email); err != nil {
		return err
	}
	return t.counter.Reset(ctx, prefixSeenCodeEmail+email)
}

// Violation describes the first malicious value found in a request.
type Violation struct {
	Field     string
	Value     string
	Sensitive bool
}

// TrackInput enforces the malicious-input limit. With a nil violation it only
// refuses clients that already used up their allowance. A violation under
// the limit yields domain.ErrMaliciousInput, over it
// domain.ErrTooManyMaliciousInputs plus an audit event.
//
// Requests without an email are tracked by IP only.
func (t *AttemptTracker) TrackInput(ctx context.Context, client ports.ClientRequest, email string, v *Violation) error {
	email = domain.NormalizeEmail(email)
	ipKey := prefixInputIP + client.IP
	emailKey := ""
	if email != "" {
		emailKey = prefixInputEmail + email
	}

	if v == nil {
		byIP, err := t.counter.Count(ctx, ipKey)
		if err != nil {
			return fmt.Errorf("track input: %w", err)
		}
		byEmail := 0
		if emailKey != "" {
			if byEmail, err = t.counter.Count(ctx, emailKey); err != nil {
				return fmt.Errorf("track input: %w", err)
			}
		}
		if byIP >= t.policy.InputMaxPerIP || byEmail >= t.policy.InputMaxPerEmail {
			return domain.ErrTooManyMaliciousInputs
		}
		return nil
	}

	byIP, err := t.counter.Increment(ctx, ipKey)
	if err != nil {
		return fmt.Errorf("track input: %w", err)
	}
	byEmail := 0
	if emailKey != "" {
		if byEmail, err = t.counter.Increment(ctx, emailKey); err != nil {
			return fmt.Errorf("track input: %w", err)
		}
	}

	if byIP <= t.policy.InputMaxPerIP && byEmail <= t.policy.InputMaxPerEmail {
		return domain.ErrMaliciousInput
	}

	if email == "" {
		email = unknownEmail
	}
	value := v.Value
	if v.Sensitive {
		value = domain.RedactedValue
	}
	t.record(ctx, domain.AuditEvent{
		Kind:            domain.AuditMaliciousInput,
		Email:           email,
		AttemptsByIP:    byIP,
		AttemptsByEmail: byEmail,
		InputField:      v.Field,
		MaliciousValue:  value,
	}, client)
	return domain.ErrTooManyMaliciousInputs
}

func (t *AttemptTracker) touch(ctx context.Context, key string, failed bool) (int, error) {
	var (
		n   int
		err error
	)
	if failed {
		n, err = t.counter.Increment(ctx, key)
	} else {
		n, err = t.counter.Count(ctx, key)
	}
	if err != nil {
		return 0, fmt.Errorf("attempt counter %q: %w", key, err)
	}
	return n, nil
}

// remember and members only feed audit context, so store failures are logged
// and never decide the request.
func (t *AttemptTracker) remember(ctx context.Context, key, member string) {
	if err := t.counter.Remember(ctx, key, member, maxRelated); err != nil {
		t.log.Error().Err(err).Str("key", key).Msg("failed to remember related attempt")
	}
}

func (t *AttemptTracker) members(ctx context.Context, key string) []string {
	m, err := t.counter.Members(ctx, key)
	if err != nil {
		t.log.Error().Err(err).Str("key", key).Msg("failed to load related attempts")
		return nil
	}
	return m
}

// record fills in the client details and hands the event to the audit sink.
// Sink failures are logged; the request is rejected either way.
func (t *AttemptTracker) record(ctx context.Context, ev domain.AuditEvent, client ports.ClientRequest) {
	ev.ID = uuid.NewString()
	ev.Timestamp = t.now().UTC()
	if t.describer != nil {
		ev.Client = t.describer.Describe(client.IP, client.UserAgent)
	} else {
		ev.Client = domain.ClientInfo{IP: client.IP, UserAgent: client.UserAgent}
	}

	t.log.Warn().
		Str("kind", string(ev.Kind)).
		Str("ip", client.IP).
		Int("attempts_by_ip", ev.AttemptsByIP).
		Int("attempts_by_email", ev.AttemptsByEmail).
		Msg("request blocked")

	if t.audit == nil {
		return
	}
	if err := t.audit.Record(ctx, ev); err != nil {
		t.log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("failed to record audit event")
	}
}
