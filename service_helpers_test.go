package authcore_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authcore "github.com/crewlink/authcore"
	"github.com/crewlink/authcore/memstore"
	"github.com/crewlink/authcore/token"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type captureMailer struct {
	mu   sync.Mutex
	sent []authcore.Email
}

func (m *captureMailer) Send(ctx context.Context, e authcore.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

// lastOfKind returns the most recent message of the given kind.
func (m *captureMailer) lastOfKind(kind authcore.EmailKind) (authcore.Email, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind {
			return m.sent[i], true
		}
	}
	return authcore.Email{}, false
}

func (m *captureMailer) countOfKind(kind authcore.EmailKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.sent {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type testEnv struct {
	svc    *authcore.Service
	store  *memstore.Store
	mailer *captureMailer
	clock  *fakeClock
	redis  *miniredis.Miniredis
	cfg    authcore.Config
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.Token.AccessSecret = bytes.Repeat([]byte("a"), 32)
	cfg.Token.RefreshSecret = bytes.Repeat([]byte("b"), 32)
	cfg.OAuth.StateSecret = bytes.Repeat([]byte("s"), 32)
	cfg.Password.BcryptCost = 4
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*authcore.Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	store := memstore.New()
	store.AddRole(cfg.Account.DefaultRole, "users:read")

	clock := newFakeClock()
	mailer := &captureMailer{}

	svc, err := authcore.New().
		WithConfig(cfg).
		WithStore(store).
		WithRedis(rdb).
		WithMailer(mailer).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	t.Cleanup(func() {
		svc.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &testEnv{svc: svc, store: store, mailer: mailer, clock: clock, redis: mr, cfg: cfg}
}

func (e *testEnv) register(t *testing.T, email, password string) *authcore.AuthResult {
	t.Helper()

	res, err := e.svc.Register(context.Background(), authcore.RegisterInput{
		Email:    email,
		Password: password,
		FullName: "Test User",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

// registerVerified registers and completes email verification by link.
func (e *testEnv) registerVerified(t *testing.T, email, password string) *authcore.AuthResult {
	t.Helper()

	res := e.register(t, email, password)
	msg, ok := e.mailer.lastOfKind(authcore.EmailVerification)
	if !ok {
		t.Fatal("no verification email captured")
	}
	if err := e.svc.VerifyEmailByLink(context.Background(), msg.Link); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	return res
}

func (e *testEnv) parseAccess(t *testing.T, pair token.Pair) token.Payload {
	t.Helper()

	tm, err := token.NewManager(token.Config{
		AccessTTL:     e.cfg.Token.AccessTTL,
		RefreshTTL:    e.cfg.Token.RefreshTTL,
		AccessSecret:  e.cfg.Token.AccessSecret,
		RefreshSecret: e.cfg.Token.RefreshSecret,
		Issuer:        e.cfg.Token.Issuer,
		SessionGrace:  e.cfg.Token.SessionGrace,
		Leeway:        e.cfg.Token.Leeway,
	})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	claims, err := tm.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	return claims.Payload()
}
