package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct-horse-battery"

func newTestServer(t *testing.T) (*httptest.Server, *authcore.Engine, func(time.Duration)) {
	t.Helper()

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}

	var mu sync.Mutex
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		current = current.Add(d)
		mu.Unlock()
	}

	cfg := authcore.DefaultConfig()
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Token.TTL = time.Hour
	cfg.Lockout.Threshold = 2
	cfg.Lockout.Duration = 10 * time.Minute

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := authcore.New().
		WithConfig(cfg).
		WithAccountStore(account.NewMemoryStore()).
		WithSessionRegistry(session.NewMemoryStore()).
		WithHasher(hasher).
		WithClock(now).
		WithLogger(logger).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(NewRouter(engine, Options{Logger: logger, Now: now}))
	t.Cleanup(srv.Close)
	return srv, engine, advance
}

type envelope struct {
	Status            string          `json:"status"`
	Code              string          `json:"code"`
	Message           string          `json:"message"`
	RemainingAttempts *int            `json:"remaining_attempts"`
	Data              json.RawMessage `json:"data"`
}

func do(t *testing.T, srv *httptest.Server, method, path, token, body string) (*http.Response, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s %s body %q: %v", method, path, raw, err)
		}
	}
	return resp, env
}

func registerAndLogin(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	resp, _ := do(t, srv, http.MethodPost, "/auth/v1/register", "",
		`{"username":"`+username+`","email":"`+username+`@example.com","password":"`+testPassword+`"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	resp, env := do(t, srv, http.MethodPost, "/auth/v1/login", "",
		`{"identifier":"`+username+`","password":"`+testPassword+`","device":"laptop"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d (%s)", resp.StatusCode, env.Code)
	}
	var out loginResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if out.Token == "" || out.TokenType != "Bearer" {
		t.Fatalf("unexpected login response: %+v", out)
	}
	return out.Token
}

func TestRegisterLoginMe(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	resp, env := do(t, srv, http.MethodGet, "/auth/v1/me", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	var user map[string]any
	if err := json.Unmarshal(env.Data, &user); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if user["username"] != "alice" || user["email"] != "alice@example.com" {
		t.Fatalf("unexpected user %v", user)
	}
	if _, ok := user["password_hash"]; ok {
		t.Fatal("digest leaked in response")
	}
}

func TestRegisterErrors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	registerAndLogin(t, srv, "bob")

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"duplicate", `{"username":"BOB","email":"other@example.com","password":"` + testPassword + `"}`, http.StatusConflict, "CONFLICT"},
		{"short password", `{"username":"carol","email":"carol@example.com","password":"short"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad email", `{"username":"carol","email":"not-an-email","password":"` + testPassword + `"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", `{"username":"carol","admin":true}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"trailing value", `{"username":"carol"}{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed", `{`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, env := do(t, srv, http.MethodPost, "/auth/v1/register", "", tc.body)
			if resp.StatusCode != tc.status || env.Code != tc.code {
				t.Fatalf("got %d %s, want %d %s", resp.StatusCode, env.Code, tc.status, tc.code)
			}
			if env.Status != "error" {
				t.Fatalf("status field = %q", env.Status)
			}
		})
	}
}

func TestLoginLockoutResponses(t *testing.T) {
	srv, _, _ := newTestServer(t)
	registerAndLogin(t, srv, "dave")

	bad := `{"identifier":"dave","password":"wrong-password-123"}`
	resp, env := do(t, srv, http.MethodPost, "/auth/v1/login", "", bad)
	if resp.StatusCode != http.StatusUnauthorized || env.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("got %d %s", resp.StatusCode, env.Code)
	}
	if env.RemainingAttempts == nil || *env.RemainingAttempts != 1 {
		t.Fatalf("remaining_attempts = %v, want 1", env.RemainingAttempts)
	}

	resp, env = do(t, srv, http.MethodPost, "/auth/v1/login", "", bad)
	if resp.StatusCode != http.StatusTooManyRequests || env.Code != "ACCOUNT_LOCKED" {
		t.Fatalf("got %d %s", resp.StatusCode, env.Code)
	}
	if got := resp.Header.Get("Retry-After"); got != "600" {
		t.Fatalf("Retry-After = %q, want 600", got)
	}

	good := `{"identifier":"dave","password":"` + testPassword + `"}`
	resp, env = do(t, srv, http.MethodPost, "/auth/v1/login", "", good)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("correct password while locked: got %d %s", resp.StatusCode, env.Code)
	}
}

func TestUnknownAndWrongPasswordLookAlike(t *testing.T) {
	srv, _, _ := newTestServer(t)
	registerAndLogin(t, srv, "erin")

	respKnown, known := do(t, srv, http.MethodPost, "/auth/v1/login", "", `{"identifier":"erin","password":"wrong-password-123"}`)
	respUnknown, unknown := do(t, srv, http.MethodPost, "/auth/v1/login", "", `{"identifier":"nobody","password":"wrong-password-123"}`)

	if respKnown.StatusCode != respUnknown.StatusCode || known.Code != unknown.Code || known.Message != unknown.Message {
		t.Fatalf("responses differ: %+v vs %+v", known, unknown)
	}
	if known.RemainingAttempts == nil || unknown.RemainingAttempts == nil || *known.RemainingAttempts != *unknown.RemainingAttempts {
		t.Fatalf("remaining attempts differ: %v vs %v", known.RemainingAttempts, unknown.RemainingAttempts)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := registerAndLogin(t, srv, "frank")

	resp, _ := do(t, srv, http.MethodPost, "/auth/v1/logout", token, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	resp, env := do(t, srv, http.MethodGet, "/auth/v1/me", token, "")
	if resp.StatusCode != http.StatusUnauthorized || env.Code != "UNAUTHORIZED" {
		t.Fatalf("after logout: %d %s", resp.StatusCode, env.Code)
	}
}

func TestTokenFailuresShareResponse(t *testing.T) {
	srv, _, advance := newTestServer(t)
	token := registerAndLogin(t, srv, "grace")
	revoked := registerAndLogin(t, srv, "heidi")
	do(t, srv, http.MethodPost, "/auth/v1/logout", revoked, "")

	_, missing := do(t, srv, http.MethodGet, "/auth/v1/me", "", "")
	_, garbage := do(t, srv, http.MethodGet, "/auth/v1/me", "not.a.jwt", "")
	_, gone := do(t, srv, http.MethodGet, "/auth/v1/me", revoked, "")
	advance(2 * time.Hour)
	resp, expired := do(t, srv, http.MethodGet, "/auth/v1/me", token, "")

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expired status = %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatal("missing WWW-Authenticate header")
	}
	for name, env := range map[string]envelope{"missing": missing, "garbage": garbage, "revoked": gone} {
		if env.Code != expired.Code || env.Message != expired.Message || env.Status != expired.Status {
			t.Fatalf("%s response %+v differs from expired %+v", name, env, expired)
		}
	}
}

func TestSessionsAndLogoutAll(t *testing.T) {
	srv, _, _ := newTestServer(t)
	first := registerAndLogin(t, srv, "ivan")
	resp, env := do(t, srv, http.MethodPost, "/auth/v1/login", "", `{"identifier":"ivan","password":"`+testPassword+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second login status = %d", resp.StatusCode)
	}
	var second loginResponse
	if err := json.Unmarshal(env.Data, &second); err != nil {
		t.Fatalf("decode: %v", err)
	}

	_, env = do(t, srv, http.MethodGet, "/auth/v1/sessions", first, "")
	var listed struct {
		Current string                 `json:"current"`
		Items   []authcore.SessionInfo `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &listed); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(listed.Items) != 2 {
		t.Fatalf("sessions = %d, want 2", len(listed.Items))
	}

	resp, env = do(t, srv, http.MethodPost, "/auth/v1/logout-all", second.Token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout-all status = %d", resp.StatusCode)
	}
	var revoked map[string]int
	_ = json.Unmarshal(env.Data, &revoked)
	if revoked["sessions_revoked"] != 2 {
		t.Fatalf("sessions_revoked = %d, want 2", revoked["sessions_revoked"])
	}
	if resp, _ := do(t, srv, http.MethodGet, "/auth/v1/me", first, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("first token still valid: %d", resp.StatusCode)
	}
}

func TestChangePasswordKeepsCurrentSession(t *testing.T) {
	srv, _, _ := newTestServer(t)
	current := registerAndLogin(t, srv, "judy")
	_, env := do(t, srv, http.MethodPost, "/auth/v1/login", "", `{"identifier":"judy","password":"`+testPassword+`"}`)
	var other loginResponse
	_ = json.Unmarshal(env.Data, &other)

	resp, env := do(t, srv, http.MethodPost, "/auth/v1/password", current,
		`{"current_password":"wrong-password-123","new_password":"brand-new-password"}`)
	if resp.StatusCode != http.StatusUnauthorized || env.Code != "INVALID_CREDENTIALS" || env.RemainingAttempts != nil {
		t.Fatalf("wrong current: %d %s %v", resp.StatusCode, env.Code, env.RemainingAttempts)
	}

	resp, env = do(t, srv, http.MethodPost, "/auth/v1/password", current,
		`{"current_password":"`+testPassword+`","new_password":"brand-new-password"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change status = %d %s", resp.StatusCode, env.Code)
	}

	if resp, _ := do(t, srv, http.MethodGet, "/auth/v1/me", current, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("current session revoked: %d", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodGet, "/auth/v1/me", other.Token, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("other session kept: %d", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodPost, "/auth/v1/login", "", `{"identifier":"judy","password":"brand-new-password"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password: %d", resp.StatusCode)
	}
}

func TestDeactivatedUserForbidden(t *testing.T) {
	srv, engine, _ := newTestServer(t)
	token := registerAndLogin(t, srv, "ken")

	claims, err := engine.AuthenticateRequest(context.Background(), token)
	if err != nil {
		t.Fatalf("AuthenticateRequest: %v", err)
	}
	if err := engine.Deactivate(context.Background(), claims.UserID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	resp, env := do(t, srv, http.MethodPost, "/auth/v1/login", "", `{"identifier":"ken","password":"`+testPassword+`"}`)
	if resp.StatusCode != http.StatusForbidden || env.Code != "USER_INACTIVE" {
		t.Fatalf("login while inactive: %d %s", resp.StatusCode, env.Code)
	}
	if resp, _ := do(t, srv, http.MethodGet, "/auth/v1/me", token, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked token after deactivate: %d", resp.StatusCode)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if resp, _ := do(t, srv, http.MethodGet, "/healthz", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
	if resp, _ := do(t, srv, http.MethodGet, "/readyz", "", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz = %d", resp.StatusCode)
	}
}

type pingFailService struct{ Service }

func (pingFailService) Ping(context.Context) error { return errors.New("redis down") }

func TestReadinessFailure(t *testing.T) {
	srv := httptest.NewServer(NewRouter(pingFailService{}, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}))
	defer srv.Close()

	resp, env := do(t, srv, http.MethodGet, "/readyz", "", "")
	if resp.StatusCode != http.StatusServiceUnavailable || env.Code != "NOT_READY" {
		t.Fatalf("got %d %s", resp.StatusCode, env.Code)
	}
}

func TestErrorResponseInternalHidesCause(t *testing.T) {
	status, body := errorResponse(errors.New("pq: connection refused"))
	if status != http.StatusInternalServerError || body.Code != "INTERNAL_ERROR" {
		t.Fatalf("got %d %s", status, body.Code)
	}
	if strings.Contains(body.Message, "pq") {
		t.Fatalf("cause leaked: %q", body.Message)
	}
}
