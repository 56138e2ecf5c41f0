package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	env.register(t, "alice")
	ctx := context.Background()

	res := env.login(t, "alice")
	if err := env.engine.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := env.engine.AuthenticateRequest(ctx, res.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}

	// Idempotent, including for ids that never existed.
	if err := env.engine.Logout(ctx, res.SessionID); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if err := env.engine.Logout(ctx, "no-such-session"); err != nil {
		t.Fatalf("Logout unknown: %v", err)
	}
	if err := env.engine.Logout(ctx, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty id, got %v", err)
	}
}

func TestAuthenticateExpiryBoundary(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	env.register(t, "alice")
	ctx := context.Background()

	res := env.login(t, "alice")

	env.clock.Advance(time.Hour - time.Second)
	if _, err := env.engine.AuthenticateRequest(ctx, res.Token); err != nil {
		t.Fatalf("one second before expiry: %v", err)
	}

	env.clock.Advance(time.Second)
	if _, err := env.engine.AuthenticateRequest(ctx, res.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("at expiry: expected ErrTokenExpired, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricAuthenticateExpired]; got != 1 {
		t.Fatalf("expired metric = %d", got)
	}
}

func TestAuthenticateRejectsForeignTokens(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	u := env.register(t, "alice")
	res := env.login(t, "alice")
	ctx := context.Background()

	foreign, err := jwt.NewManager(jwt.Config{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("another-secret-another-secret-00"),
		Issuer:        "authcore",
		Audience:      "authcore-api",
		Now:           env.clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	forged, _, err := foreign.Issue(u.ID, "admin", res.SessionID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for name, token := range map[string]string{
		"empty":     "",
		"garbage":   "not.a.token",
		"forged":    forged,
		"truncated": res.Token[:len(res.Token)-4],
	} {
		if _, err := env.engine.AuthenticateRequest(ctx, token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("%s: expected ErrTokenInvalid, got %v", name, err)
		}
	}
}

func TestAuthenticateInactiveUser(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	u := env.register(t, "alice")
	res := env.login(t, "alice")
	ctx := context.Background()

	// Bypass Deactivate so the session survives.
	if err := env.accounts.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := env.engine.AuthenticateRequest(ctx, res.Token); !errors.Is(err, ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestLogoutAllAndActiveSessions(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	u := env.register(t, "alice")
	ctx := WithUserAgent(context.Background(), "test-agent/1.0")

	var ids []string
	for i := 0; i < 3; i++ {
		res, err := env.engine.Login(ctx, "alice", testPassword, SessionMetadata{Device: "laptop"})
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		ids = append(ids, res.SessionID)
		env.clock.Advance(time.Second)
	}

	list, err := env.engine.ActiveSessions(ctx, u.ID)
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(list))
	}
	for i, info := range list {
		if info.SessionID != ids[i] {
			t.Fatalf("session %d = %q, want %q", i, info.SessionID, ids[i])
		}
		if info.UserAgent != "test-agent/1.0" || info.Device != "laptop" {
			t.Fatalf("unexpected metadata: %+v", info)
		}
	}

	n, err := env.engine.LogoutAll(ctx, u.ID)
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("LogoutAll revoked %d, want 3", n)
	}
	list, err = env.engine.ActiveSessions(ctx, u.ID)
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no sessions, got %d", len(list))
	}

	n, err = env.engine.LogoutAll(ctx, u.ID)
	if err != nil || n != 0 {
		t.Fatalf("second LogoutAll = %d, %v", n, err)
	}
}

func TestPurgeExpiredSessions(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	env.register(t, "alice")
	env.login(t, "alice")
	env.login(t, "alice")

	n, err := env.engine.PurgeExpiredSessions(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("purge before expiry = %d, %v", n, err)
	}

	env.clock.Advance(2 * time.Hour)
	n, err = env.engine.PurgeExpiredSessions(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpiredSessions: %v", err)
	}
	if n != 2 {
		t.Fatalf("purged %d, want 2", n)
	}
}
