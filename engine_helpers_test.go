package goIdentity_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/memory"
	"github.com/MrEthical07/goIdentity/provider"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-horse-battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureMailer struct {
	mu   sync.Mutex
	sent []goIdentity.Mail
	err  error
}

func (m *captureMailer) Send(_ context.Context, mail goIdentity.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return m.err
}

// last returns the most recent mail for template.
func (m *captureMailer) last(t *testing.T, template string) goIdentity.Mail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Template == template {
			return m.sent[i]
		}
	}
	t.Fatalf("no %s mail sent", template)
	return goIdentity.Mail{}
}

// fakeAdapter answers Exchange from a token→identity table.
type fakeAdapter struct {
	name       provider.Name
	mu         sync.Mutex
	identities map[string]provider.Identity
	err        error
	calls      int
}

func newFakeAdapter(name provider.Name) *fakeAdapter {
	return &fakeAdapter{name: name, identities: map[string]provider.Identity{}}
}

func (f *fakeAdapter) Name() provider.Name { return f.name }

func (f *fakeAdapter) AuthURL(state string) string {
	return "https://idp.example/" + string(f.name) + "?state=" + state
}

func (f *fakeAdapter) Exchange(_ context.Context, token string) (provider.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return provider.Identity{}, f.err
	}
	id, ok := f.identities[token]
	if !ok {
		return provider.Identity{}, errors.Join(provider.ErrUpstream, errors.New("token rejected"))
	}
	return id, nil
}

func (f *fakeAdapter) set(token string, id provider.Identity) {
	f.mu.Lock()
	f.identities[token] = id
	f.mu.Unlock()
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	engine  *goIdentity.Engine
	users   *memory.Users
	refresh *memory.RefreshTokens
	actions *memory.ActionTokens
	mailer  *captureMailer
	clock   *testClock
	google  *fakeAdapter
	github  *fakeAdapter
	mr      *miniredis.Miniredis
}

func testConfig() goIdentity.Config {
	cfg := goIdentity.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-refresh-secret-012345678")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newHarness(t *testing.T, mutate ...func(*goIdentity.Config)) *harness {
	t.Helper()
	return buildHarness(t, nil, mutate...)
}

func newHarnessWithSink(t *testing.T, sink goIdentity.AuditSink) *harness {
	t.Helper()
	return buildHarness(t, sink, func(c *goIdentity.Config) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 64
		c.Audit.DropIfFull = false
	})
}

func buildHarness(t *testing.T, sink goIdentity.AuditSink, mutate ...func(*goIdentity.Config)) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	h := &harness{
		users:   memory.NewUsers(),
		refresh: memory.NewRefreshTokens(),
		actions: memory.NewActionTokens(),
		mailer:  &captureMailer{},
		clock:   newTestClock(),
		google:  newFakeAdapter(provider.Google),
		github:  newFakeAdapter(provider.GitHub),
		mr:      mr,
	}

	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(h.users).
		WithRefreshTokenRepository(h.refresh).
		WithActionTokenRepository(h.actions).
		WithProvider(h.google).
		WithProvider(h.github).
		WithMailer(h.mailer).
		WithAuditSink(sink).
		WithClock(h.clock.Now).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	h.engine = engine

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return h
}

func (h *harness) register(t *testing.T, email string) goIdentity.AuthResult {
	t.Helper()
	res, err := h.engine.Register(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

// ssoState runs the popup half of the flow and returns a filled state.
func (h *harness) ssoState(t *testing.T, name provider.Name, token string) string {
	t.Helper()
	ctx := context.Background()
	url, err := h.engine.GenerateSSOAuthURL(ctx, name)
	if err != nil {
		t.Fatalf("generate auth url: %v", err)
	}
	if err := h.engine.ProcessSSOToken(ctx, name, token, url.State); err != nil {
		t.Fatalf("process sso token: %v", err)
	}
	return url.State
}

func mustUser(t *testing.T, h *harness, userID string) goIdentity.UserRecord {
	t.Helper()
	u, err := h.users.GetUserByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user %s: %v", userID, err)
	}
	return u
}
