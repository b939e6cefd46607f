package service

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexthire/nexthire-api/internal/core/domain"
	"github.com/nexthire/nexthire-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User // keyed by email
	nextID int
	finds  int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.CodeExpiration != nil {
		exp := *u.CodeExpiration
		clone.CodeExpiration = &exp
	}
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.Email]; exists {
		return nil, domain.ErrUserExists
	}
	r.nextID++
	copy := cloneUser(user)
	copy.ID = "user-" + strconv.Itoa(r.nextID)
	r.users[copy.Email] = cloneUser(copy)
	return copy, nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	if u, ok := r.users[email]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) SetVerificationCode(_ context.Context, id, code string, exp time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.VerificationCode = code
		u.CodeExpiration = &exp
	})
}

func (r *stubUserRepo) ClearVerificationCode(_ context.Context, id string) error {
	return r.mutate(id, func(u *domain.User) {
		u.VerificationCode = ""
		u.CodeExpiration = nil
	})
}

func (r *stubUserRepo) LinkChat(_ context.Context, email, chatID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.ChatID = chatID
	return cloneUser(u), nil
}

func (r *stubUserRepo) mutate(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			fn(u)
			return nil
		}
	}
	return domain.ErrUserNotFound
}

// fakeCounter has no window; window behaviour is covered by the stores.
type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int
	sets   map[string][]string
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int), sets: make(map[string][]string)}
}

func (c *fakeCounter) Increment(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.counts[key]++
	return c.counts[key], nil
}

func (c *fakeCounter) Count(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	return c.counts[key], nil
}

func (c *fakeCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, key)
	delete(c.sets, key)
	return nil
}

func (c *fakeCounter) Remember(_ context.Context, key, member string, limit int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if len(c.sets[key]) < limit && !slices.Contains(c.sets[key], member) {
		c.sets[key] = append(c.sets[key], member)
	}
	return nil
}

func (c *fakeCounter) Members(_ context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := slices.Clone(c.sets[key])
	slices.Sort(out)
	return out, nil
}

type stubAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *stubAudit) Record(_ context.Context, ev domain.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func (a *stubAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

type stubNotifier struct {
	mu    sync.Mutex
	sent  map[string]string // chatID -> last code
	err   error
	calls int
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{sent: make(map[string]string)}
}

func (n *stubNotifier) SendCode(_ context.Context, chatID, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.err != nil {
		return n.err
	}
	n.sent[chatID] = code
	return nil
}

type stubCaptcha struct {
	ok  bool
	err error
}

func (c stubCaptcha) Verify(context.Context, string, string) (bool, error) {
	return c.ok, c.err
}

var errBoom = errors.New("boom")

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// testHasher keeps Argon2 cheap in unit tests.
func testHasher() *PasswordHasher {
	return NewPasswordHasher(HashParams{Memory: 1024, Iterations: 1, Parallelism: 1})
}

var testClient = ports.ClientRequest{IP: "203.0.113.7", UserAgent: "go-test"}

type authFixture struct {
	svc      *AuthService
	repo     *stubUserRepo
	counter  *fakeCounter
	audit    *stubAudit
	notifier *stubNotifier
	tokens   *TokenIssuer
}

func newAuthFixture(opts AuthOptions) *authFixture {
	f := &authFixture{
		repo:     newStubUserRepo(),
		counter:  newFakeCounter(),
		audit:    &stubAudit{},
		notifier: newStubNotifier(),
		tokens:   NewTokenIssuer("secret", time.Hour),
	}
	tracker := NewAttemptTracker(f.counter, f.audit, nil, DefaultAttemptPolicy(), zerolog.Nop())
	f.svc = NewAuthService(AuthDeps{
		Users:    f.repo,
		Hasher:   testHasher(),
		Tokens:   f.tokens,
		Tracker:  tracker,
		Notifier: f.notifier,
	}, opts, zerolog.Nop())
	return f
}

// registerLinked registers a user and links a chat to it.
func (f *authFixture) registerLinked(email, password, chatID string) *domain.User {
	u, err := f.svc.Register(context.Background(), ports.RegisterInput{
		Name: "Test", Email: email, Password: password, PhoneNumber: "555-0100",
	})
	if err != nil {
		panic(err)
	}
	if chatID != "" {
		if _, err := f.repo.LinkChat(context.Background(), u.Email, chatID); err != nil {
			panic(err)
		}
	}
	return u
}
