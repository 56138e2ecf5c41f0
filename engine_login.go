package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/session"
)

// Login verifies identifier (username or email, case-insensitive) and password and
// opens a session.
//
// Failures are reported as *InvalidCredentialsError, *AccountLockedError,
// ErrUserInactive or an ErrInternal-matching error. A wrong password and an unknown
// identifier are indistinguishable. Metadata fields left empty are taken from ctx.
func (e *Engine) Login(ctx context.Context, identifier, plaintext string, meta SessionMetadata) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricLoginLatency, start)

	normalized := account.NormalizeIdentifier(identifier)
	if normalized == "" {
		return nil, &ValidationError{Field: "identifier", Reason: "required"}
	}
	if plaintext == "" {
		return nil, &ValidationError{Field: "password", Reason: "required"}
	}
	meta = metadataFromContext(ctx, meta)

	var rec *account.Record
	deps := e.loginFlowDeps(&rec)
	res, err := flows.RunLogin(ctx, flows.LoginRequest{
		Identifier: normalized,
		Password:   plaintext,
		Metadata: session.Metadata{
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			Device:    meta.Device,
		},
	}, deps)
	if err != nil {
		return nil, err
	}

	user := userFromRecord(rec)
	user.LastLoginAt = e.now().UTC()
	e.logger.InfoContext(ctx, "login succeeded", "operation", "login", "outcome", "success", "user_id", res.User.ID)
	return &LoginResult{
		User:      user,
		Token:     res.Token,
		SessionID: res.SessionID,
		ExpiresAt: res.ExpiresAt,
	}, nil
}

// loginFlowDeps binds the flow to this engine. Every account read stores the record in
// *rec so the caller can build the User view without another round trip.
func (e *Engine) loginFlowDeps(rec **account.Record) flows.LoginDeps {
	load := func(r *account.Record, err error) (flows.LoginUser, error) {
		if errors.Is(err, account.ErrNotFound) {
			return flows.LoginUser{}, ErrUserNotFound
		}
		if err != nil {
			return flows.LoginUser{}, err
		}
		*rec = r
		return loginUserFromRecord(r), nil
	}

	return flows.LoginDeps{
		Now:            e.now,
		Retry:          e.retry(),
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		DummyDigest:    e.dummyDigest,
		FindUser: func(ctx context.Context, identifier string) (flows.LoginUser, error) {
			return load(e.accounts.FindByIdentifier(ctx, identifier))
		},
		ReloadUser: func(ctx context.Context, userID string) (flows.LoginUser, error) {
			return load(e.accounts.FindByID(ctx, userID))
		},
		UpdatePasswordHash: e.accounts.UpdatePasswordHash,
		UpdateLastLogin: func(ctx context.Context, userID string, at time.Time) error {
			return e.accounts.UpdateLastLogin(ctx, userID, at.UTC())
		},
		Lockout:       e.lockout,
		Phantom:       e.phantom,
		Hasher:        e.hasher,
		NewSessionID:  internal.NewSessionID,
		IssueToken:    e.jwtManager.Issue,
		CreateSession: e.sessions.Create,
		Metrics: flows.LoginMetrics{
			Success:        int(MetricLoginSuccess),
			Failure:        int(MetricLoginFailure),
			Locked:         int(MetricLoginLocked),
			Inactive:       int(MetricLoginInactive),
			AccountLocked:  int(MetricAccountLocked),
			SessionCreated: int(MetricSessionCreated),
			HashUpgraded:   int(MetricPasswordHashUpgraded),
		},
		Events: flows.LoginEvents{
			Success:  auditEventLoginSuccess,
			Failure:  auditEventLoginFailure,
			Locked:   auditEventLoginLocked,
			Inactive: auditEventLoginInactive,
		},
		Errors: flows.LoginErrors{
			UserNotFound:     ErrUserNotFound,
			UserInactive:     ErrUserInactive,
			CredentialStore:  ErrCredentialStore,
			DuplicateSession: ErrDuplicateSession,
			InvalidCredentials: func(remaining int) error {
				return &InvalidCredentialsError{RemainingAttempts: remaining}
			},
			AccountLocked: func(until time.Time) error {
				return &AccountLockedError{RetryAfter: until}
			},
			Internal: e.internal,
		},
		MetricInc: e.metricIncInt,
		EmitAudit: e.emitAudit,
		Warn:      e.warn,
	}
}

func loginUserFromRecord(r *account.Record) flows.LoginUser {
	return flows.LoginUser{
		ID:           r.ID,
		Role:         string(r.Role),
		PasswordHash: r.PasswordHash,
		Active:       r.IsActive,
	}
}

func (e *Engine) metricIncInt(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) metricAddInt(id int, n uint64) {
	e.metricAdd(MetricID(id), n)
}
