package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/session"
)

func TestBuildRejectsIncompleteWiring(t *testing.T) {
	cfg := testConfig()

	cases := []struct {
		name    string
		builder *Builder
		want    string
	}{
		{
			name:    "missing account store",
			builder: New().WithConfig(cfg).WithSessionRegistry(session.NewMemoryStore()),
			want:    "account store required",
		},
		{
			name:    "missing session registry",
			builder: New().WithConfig(cfg).WithAccountStore(account.NewMemoryStore()),
			want:    "session registry required",
		},
	}
	for _, tc := range cases {
		_, err := tc.builder.Build()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"short hs256 key":   func(c *Config) { c.Token.PrivateKey = []byte("short") },
		"zero threshold":    func(c *Config) { c.Lockout.Threshold = 0 },
		"zero lock window":  func(c *Config) { c.Lockout.Duration = 0 },
		"zero token ttl":    func(c *Config) { c.Token.TTL = 0 },
		"weak bcrypt cost":  func(c *Config) { c.Password.BcryptCost = 4 },
		"unknown algorithm": func(c *Config) { c.Password.Algorithm = "md5" },
		"ed25519 no keys":   func(c *Config) { c.Token.SigningMethod = "ed25519" },
		"short min length":  func(c *Config) { c.Password.MinLength = 4 },
	}
	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		_, err := New().
			WithConfig(cfg).
			WithAccountStore(account.NewMemoryStore()).
			WithSessionRegistry(session.NewMemoryStore()).
			Build()
		if err == nil {
			t.Fatalf("%s: expected Build to fail", name)
		}
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().
		WithConfig(testConfig()).
		WithAccountStore(account.NewMemoryStore()).
		WithSessionRegistry(session.NewMemoryStore()).
		WithHasher(newTestHasher(t))
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderClonesConfig(t *testing.T) {
	cfg := testConfig()
	env := newTestEnv(t, cfg, nil)

	cfg.Token.PrivateKey[0] ^= 0xff

	got := env.engine.Config()
	if got.Token.PrivateKey[0] == cfg.Token.PrivateKey[0] {
		t.Fatal("engine config shares the caller's key buffer")
	}
}

func TestSeparateLockoutStoreKeepsUnknownIdentifiersApart(t *testing.T) {
	store := lockout.NewMemoryStore()
	accounts := account.NewMemoryStore()
	clock := newTestClock()
	e, err := New().
		WithConfig(testConfig()).
		WithAccountStore(accounts).
		WithSessionRegistry(session.NewMemoryStore()).
		WithLockoutStore(store).
		WithHasher(newTestHasher(t)).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	u, err := e.Register(ctx, "alice", "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// An unknown identifier equal to a real account id must not touch that account.
	for i := 0; i < 3; i++ {
		_, _ = e.Login(ctx, u.ID, wrongPassword, SessionMetadata{})
	}
	st, err := store.Load(ctx, u.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !st.IsZero() {
		t.Fatalf("real account state modified: %+v", st)
	}
	if _, err := e.Login(ctx, "alice", testPassword, SessionMetadata{}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if rec, _ := accounts.FindByID(ctx, u.ID); rec.FailedLoginAttempts != 0 {
		t.Fatal("account store lockout fields must be unused with a separate lockout store")
	}
}

func TestNilEngineIsNotReady(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	if _, err := e.Login(ctx, "alice", testPassword, SessionMetadata{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Login: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.AuthenticateRequest(ctx, "token"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("AuthenticateRequest: expected ErrEngineNotReady, got %v", err)
	}
	if err := e.Logout(ctx, "sid"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("Logout: expected ErrEngineNotReady, got %v", err)
	}
	if e.AuditDropped() != 0 {
		t.Fatal("expected zero dropped events")
	}
	e.Close()
}
