package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/nexthire/nexthire-api/internal/core/domain"
	"github.com/nexthire/nexthire-api/internal/core/service"
	"github.com/nexthire/nexthire-api/internal/infrastructure/attempts"
)

// ---------------------------------------------------------------------------
// In-memory collaborators
// ---------------------------------------------------------------------------

type memUsers struct {
	mu    sync.Mutex
	users map[string]domain.User // keyed by id
	next  int
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]domain.User{}} }

func (m *memUsers) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return nil, domain.ErrUserExists
		}
	}
	m.next++
	clone := *u
	clone.ID = "user-" + strconv.Itoa(m.next)
	m.users[clone.ID] = clone
	return &clone, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			clone := u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) SetVerificationCode(_ context.Context, id, code string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.VerificationCode = code
	u.CodeExpiration = &exp
	m.users[id] = u
	return nil
}

func (m *memUsers) ClearVerificationCode(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.VerificationCode = ""
	u.CodeExpiration = nil
	m.users[id] = u
	return nil
}

func (m *memUsers) LinkChat(_ context.Context, email, chatID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == email {
			u.ChatID = chatID
			m.users[id] = u
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
	next int
}

func newMemJobs() *memJobs { return &memJobs{jobs: map[string]domain.Job{}} }

func (m *memJobs) Create(_ context.Context, j *domain.Job) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	clone := *j
	clone.ID = "job-" + strconv.Itoa(m.next)
	m.jobs[clone.ID] = clone
	return &clone, nil
}

func (m *memJobs) FindAll(_ context.Context) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (m *memJobs) FindByOwner(_ context.Context, owner string) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Job
	for _, j := range m.jobs {
		if j.OwnerID == owner {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memJobs) FindOwned(_ context.Context, id, owner string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.OwnerID != owner {
		return nil, domain.ErrJobNotFound
	}
	return &j, nil
}

func (m *memJobs) Update(_ context.Context, j *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = *j
	return nil
}

func (m *memJobs) DeleteOwned(_ context.Context, id, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.OwnerID != owner {
		return domain.ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

type inbox struct {
	mu    sync.Mutex
	codes map[string]string // chat id → last code
}

func (i *inbox) SendCode(_ context.Context, chatID, code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[chatID] = code
	return nil
}

func (i *inbox) last(chatID string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.codes[chatID]
}

type auditLog struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *auditLog) Record(_ context.Context, ev domain.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func (a *auditLog) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

const masterEmail = "boss@x.com"

type testServer struct {
	e      *echo.Echo
	users  *memUsers
	inbox  *inbox
	audit  *auditLog
	tokens *service.TokenIssuer
}

func newTestServer(t *testing.T, opts ...func(*Dependencies)) *testServer {
	t.Helper()
	log := zerolog.Nop()
	users := newMemUsers()
	box := &inbox{codes: map[string]string{}}
	audit := &auditLog{}
	tokens := service.NewTokenIssuer("test-secret", time.Hour)
	tracker := service.NewAttemptTracker(attempts.NewMemoryStore(15*time.Minute), audit, nil, service.DefaultAttemptPolicy(), log)

	auth := service.NewAuthService(service.AuthDeps{
		Users:    users,
		Hasher:   service.NewPasswordHasher(service.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}),
		Tokens:   tokens,
		Tracker:  tracker,
		Notifier: box,
	}, service.AuthOptions{MasterEmail: masterEmail}, log)

	reg := prometheus.NewRegistry()
	deps := Dependencies{
		Auth:       auth,
		Jobs:       service.NewJobService(newMemJobs(), log),
		Tokens:     tokens,
		Users:      users,
		Tracker:    tracker,
		Registerer: reg,
		Gatherer:   reg,
		Log:        log,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e := NewRouter(deps)
	return &testServer{e: e, users: users, inbox: box, audit: audit, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// registerFrom posts a registration from remoteAddr carrying the given
// X-Forwarded-For header.
func (s *testServer) registerFrom(t *testing.T, remoteAddr, forwardedFor, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/users/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func scriptRegistration(i int) string {
	return `{"name":"<script>alert(1)</script>","email":"eve` + strconv.Itoa(i) + `@x.com","password":"Abcd123!","phoneNumber":"1"}`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
}

// signIn registers email, links a chat and completes both login steps.
func (s *testServer) signIn(t *testing.T, name, email, chatID string) (userID, token string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/users/register", "",
		`{"name":"`+name+`","email":"`+email+`","password":"Abcd123!","phoneNumber":"555-0100"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", email, rec.Code, rec.Body.String())
	}
	if _, err := s.users.LinkChat(context.Background(), email, chatID); err != nil {
		t.Fatalf("link chat: %v", err)
	}

	rec = s.do(t, http.MethodPost, "/users/login", "", `{"email":"`+email+`","password":"Abcd123!"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	code := s.inbox.last(chatID)

	rec = s.do(t, http.MethodPost, "/users/login-validation", "",
		`{"email":"`+email+`","verificationCode":"`+code+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	decode(t, rec, &resp)
	return resp.UserID, resp.Token
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestRouter_AliceEndToEnd(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/users/register", "",
		`{"name":"Alice","email":"alice@x.com","password":"Abcd123!","phoneNumber":"555-0100"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "argon2id") {
		t.Fatal("register response leaks the password hash")
	}
	var reg struct {
		User domain.User `json:"user"`
	}
	decode(t, rec, &reg)
	aliceID := reg.User.ID
	if reg.User.Role != domain.RoleUser {
		t.Fatalf("expected role user, got %q", reg.User.Role)
	}

	if _, err := s.users.LinkChat(context.Background(), "alice@x.com", "1001"); err != nil {
		t.Fatalf("link chat: %v", err)
	}

	rec = s.do(t, http.MethodPost, "/users/login", "", `{"email":"alice@x.com","password":"Abcd123!"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	code := s.inbox.last("1001")
	if !regexp.MustCompile(`^[0-9a-f]{6}$`).MatchString(code) {
		t.Fatalf("expected 6 hex chars, got %q", code)
	}

	rec = s.do(t, http.MethodPost, "/users/login-validation", "",
		`{"email":"alice@x.com","verificationCode":"`+code+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var session struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	decode(t, rec, &session)
	subject, err := s.tokens.Parse(session.Token)
	if err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	if subject != aliceID || session.UserID != aliceID {
		t.Fatalf("token subject %q does not match alice %q", subject, aliceID)
	}

	// The code is single use.
	rec = s.do(t, http.MethodPost, "/users/login-validation", "",
		`{"email":"alice@x.com","verificationCode":"`+code+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reused code: expected 400, got %d", rec.Code)
	}

	profilePath := "/users/" + aliceID + "/profile"
	rec = s.do(t, http.MethodGet, profilePath, session.Token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var profile struct {
		User domain.User `json:"user"`
	}
	decode(t, rec, &profile)
	if profile.User.Email != "alice@x.com" || profile.User.Name != "Alice" {
		t.Fatalf("unexpected profile %+v", profile.User)
	}

	if rec = s.do(t, http.MethodGet, profilePath, "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}

	_, bobToken := s.signIn(t, "Bob", "bob@x.com", "1002")
	if rec = s.do(t, http.MethodGet, profilePath, bobToken, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("other user: expected 403, got %d", rec.Code)
	}

	_, bossToken := s.signIn(t, "Boss", masterEmail, "1003")
	if rec = s.do(t, http.MethodGet, profilePath, bossToken, ""); rec.Code != http.StatusOK {
		t.Fatalf("master: expected 200, got %d", rec.Code)
	}
}

func TestRouter_LoginBruteForce(t *testing.T) {
	s := newTestServer(t)
	s.signIn(t, "Alice", "alice@x.com", "1001")

	for i := 1; i <= 5; i++ {
		rec := s.do(t, http.MethodPost, "/users/login", "", `{"email":"alice@x.com","password":"Wrong123!"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rec.Code)
		}
	}
	rec := s.do(t, http.MethodPost, "/users/login", "", `{"email":"alice@x.com","password":"Wrong123!"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("attempt 6: expected 429, got %d", rec.Code)
	}
	if n := s.audit.count(); n != 1 {
		t.Fatalf("expected one audit event, got %d", n)
	}

	// Still blocked with the right password.
	rec = s.do(t, http.MethodPost, "/users/login", "", `{"email":"alice@x.com","password":"Abcd123!"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("correct password while blocked: expected 429, got %d", rec.Code)
	}
}

func TestRouter_UnknownEmailLooksLikeWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.signIn(t, "Alice", "alice@x.com", "1001")

	wrong := s.do(t, http.MethodPost, "/users/login", "", `{"email":"alice@x.com","password":"Wrong123!"}`)
	unknown := s.do(t, http.MethodPost, "/users/login", "", `{"email":"nobody@x.com","password":"Wrong123!"}`)

	if wrong.Code != unknown.Code || wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("responses differ: %d %s vs %d %s", wrong.Code, wrong.Body.String(), unknown.Code, unknown.Body.String())
	}
}

func TestRouter_MaliciousInput(t *testing.T) {
	s := newTestServer(t)

	payload := `{"name":"<script>alert(1)</script>","email":"eve@x.com","password":"Abcd123!","phoneNumber":"1"}`
	for i := 1; i <= 3; i++ {
		rec := s.do(t, http.MethodPost, "/users/register", "", payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("violation %d: expected 400, got %d", i, rec.Code)
		}
	}
	if _, err := s.users.FindByEmail(context.Background(), "eve@x.com"); err == nil {
		t.Fatal("malicious registration was persisted")
	}

	rec := s.do(t, http.MethodPost, "/users/register", "", payload)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("violation 4: expected 429, got %d", rec.Code)
	}

	clean := `{"name":"Eve","email":"eve2@x.com","password":"Abcd123!","phoneNumber":"1"}`
	rec = s.do(t, http.MethodPost, "/users/register", "", clean)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("clean request from blocked IP: expected 429, got %d", rec.Code)
	}
	if n := s.audit.count(); n != 1 {
		t.Fatalf("expected one audit event, got %d", n)
	}
}

func TestRouter_MaliciousInput_ForwardedForIgnoredWithoutProxy(t *testing.T) {
	s := newTestServer(t)

	// One socket rotating X-Forwarded-For still shares one counter.
	var codes []int
	for i := 0; i < 4; i++ {
		rec := s.registerFrom(t, "198.51.100.9:4000", "10.0.0."+strconv.Itoa(i), scriptRegistration(i))
		codes = append(codes, rec.Code)
	}
	want := []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, codes)
		}
	}

	if n := s.audit.count(); n != 1 {
		t.Fatalf("expected one audit event, got %d", n)
	}
	if ip := s.audit.events[0].Client.IP; ip != "198.51.100.9" {
		t.Fatalf("audit must record the socket address, got %q", ip)
	}
}

func TestRouter_MaliciousInput_TrustedProxyForwardsClientIP(t *testing.T) {
	_, proxies, _ := net.ParseCIDR("192.0.2.0/24")
	s := newTestServer(t, func(d *Dependencies) { d.TrustedProxies = []*net.IPNet{proxies} })

	for i := 0; i < 3; i++ {
		if rec := s.registerFrom(t, "192.0.2.10:5555", "203.0.113.50", scriptRegistration(i)); rec.Code != http.StatusBadRequest {
			t.Fatalf("violation %d: expected 400, got %d", i+1, rec.Code)
		}
	}
	if rec := s.registerFrom(t, "192.0.2.10:5555", "203.0.113.50", scriptRegistration(3)); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("violation 4: expected 429, got %d", rec.Code)
	}

	// Another client behind the same proxy has its own counter.
	if rec := s.registerFrom(t, "192.0.2.10:5555", "203.0.113.51", scriptRegistration(4)); rec.Code != http.StatusBadRequest {
		t.Fatalf("other client: expected 400, got %d", rec.Code)
	}

	if n := s.audit.count(); n != 1 {
		t.Fatalf("expected one audit event, got %d", n)
	}
	if ip := s.audit.events[0].Client.IP; ip != "203.0.113.50" {
		t.Fatalf("audit must record the forwarded client, got %q", ip)
	}
}

func TestRouter_JobLifecycle(t *testing.T) {
	s := newTestServer(t)
	aliceID, alice := s.signIn(t, "Alice", "alice@x.com", "1001")
	_, bob := s.signIn(t, "Bob", "bob@x.com", "1002")
	_, boss := s.signIn(t, "Boss", masterEmail, "1003")

	rec := s.do(t, http.MethodPost, "/jobs/createjob", alice,
		`{"Position":"Engineer","Company":"<b>Acme</b><u>!</u>","CL":true,"Status":false,"Applied date":"2024-03-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Job domain.Job `json:"job"`
	}
	decode(t, rec, &created)
	if created.Job.Company != "<b>Acme</b>!" {
		t.Fatalf("company not sanitized: %q", created.Job.Company)
	}
	if created.Job.OwnerID != aliceID || created.Job.AppliedDate != "2024-03-01T00:00:00Z" {
		t.Fatalf("unexpected job %+v", created.Job)
	}
	jobPath := "/jobs/" + created.Job.ID

	if rec = s.do(t, http.MethodGet, "/jobs/"+aliceID, alice, ""); rec.Code != http.StatusOK {
		t.Fatalf("own list: expected 200, got %d", rec.Code)
	}
	if rec = s.do(t, http.MethodGet, "/jobs/"+aliceID, bob, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("other list: expected 403, got %d", rec.Code)
	}
	if rec = s.do(t, http.MethodGet, "/jobs/getjobs", alice, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("getjobs as user: expected 403, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/jobs/getjobs", boss, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("getjobs as master: expected 200, got %d", rec.Code)
	}
	var all struct {
		Count int `json:"count"`
	}
	decode(t, rec, &all)
	if all.Count != 1 {
		t.Fatalf("expected 1 job, got %d", all.Count)
	}

	if rec = s.do(t, http.MethodPatch, jobPath, alice, `{"owner":"x"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("forbidden field: expected 400, got %d", rec.Code)
	}
	if rec = s.do(t, http.MethodPatch, jobPath, bob, `{"Phase":"Offer"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("patch by other: expected 404, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodPatch, jobPath, alice, `{"Phase":"Offer","Status":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec = s.do(t, http.MethodDelete, jobPath, bob, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("delete by other: expected 404, got %d", rec.Code)
	}
	if rec = s.do(t, http.MethodDelete, jobPath, alice, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	if rec = s.do(t, http.MethodGet, "/jobs/"+aliceID, alice, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("empty list: expected 404, got %d", rec.Code)
	}
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(t, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d", rec.Code)
	}
	rec := s.do(t, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
}
