package authcore

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPassword  = "correct-horse-battery"
	wrongPassword = "wrong-password-123"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
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

// countingHasher records every Verify call.
type countingHasher struct {
	password.Hasher
	verifies atomic.Int64
}

func (h *countingHasher) Verify(plaintext, digest string) (bool, error) {
	h.verifies.Add(1)
	return h.Hasher.Verify(plaintext, digest)
}

// flakyRegistry fails Create with session.ErrUnavailable for the first n calls, or on
// every call when n is negative.
type flakyRegistry struct {
	*session.MemoryStore
	mu    sync.Mutex
	fails int
	calls int
}

func (f *flakyRegistry) Create(ctx context.Context, s *session.Session) error {
	f.mu.Lock()
	f.calls++
	fail := f.fails < 0 || f.calls <= f.fails
	f.mu.Unlock()
	if fail {
		return session.ErrUnavailable
	}
	return f.MemoryStore.Create(ctx, s)
}

type testEnv struct {
	engine   *Engine
	accounts *account.MemoryStore
	sessions session.Registry
	clock    *testClock
	hasher   *countingHasher
	audit    *ChannelSink
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.PrivateKey = append([]byte(nil), testSigningKey...)
	cfg.Token.TTL = time.Hour
	cfg.Lockout.Threshold = 3
	cfg.Lockout.Duration = 15 * time.Minute
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 1024
	cfg.Audit.DropIfFull = false
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestHasher(t *testing.T) *countingHasher {
	t.Helper()
	bc, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	return &countingHasher{Hasher: bc}
}

func newTestEnv(t *testing.T, cfg Config, registry session.Registry) *testEnv {
	t.Helper()

	if registry == nil {
		registry = session.NewMemoryStore()
	}

	env := &testEnv{
		accounts: account.NewMemoryStore(),
		sessions: registry,
		clock:    newTestClock(),
		hasher:   newTestHasher(t),
		audit:    NewChannelSink(4096),
	}
	engine, err := New().
		WithConfig(cfg).
		WithAccountStore(env.accounts).
		WithSessionRegistry(registry).
		WithHasher(env.hasher).
		WithAuditSink(env.audit).
		WithClock(env.clock.Now).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	env.engine = engine
	t.Cleanup(engine.Close)
	return env
}

func (env *testEnv) register(t *testing.T, username string) *User {
	t.Helper()
	u, err := env.engine.Register(context.Background(), username, username+"@example.com", testPassword)
	if err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
	return u
}

func (env *testEnv) login(t *testing.T, identifier string) *LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), identifier, testPassword, SessionMetadata{})
	if err != nil {
		t.Fatalf("Login(%q): %v", identifier, err)
	}
	return res
}

// auditEvents closes the engine and returns every event delivered so far.
func (env *testEnv) auditEvents() []AuditEvent {
	env.engine.Close()
	var out []AuditEvent
	for {
		select {
		case ev := <-env.audit.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}
