package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/lockout"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
)

// LoginUser is the flow-local account view.
type LoginUser struct {
	ID           string
	Role         string
	PasswordHash string
	Active       bool
}

// LoginRequest carries an already normalised identifier.
type LoginRequest struct {
	Identifier string
	Password   string
	Metadata   session.Metadata
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	User      LoginUser
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// LoginLockout is the subset of lockout.Tracker used by login.
type LoginLockout interface {
	Acquire(ctx context.Context, key string) (func(), error)
	Check(ctx context.Context, key string) (lockout.State, error)
	RecordFailure(ctx context.Context, key string) (lockout.State, error)
	RecordSuccess(ctx context.Context, key string) error
	Remaining(s lockout.State) int
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	Success        int
	Failure        int
	Locked         int
	Inactive       int
	AccountLocked  int
	SessionCreated int
	HashUpgraded   int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Success  string
	Failure  string
	Locked   string
	Inactive string
}

// LoginErrors carries host-level errors used by the login flow.
type LoginErrors struct {
	UserNotFound       error
	UserInactive       error
	CredentialStore    error
	DuplicateSession   error
	InvalidCredentials func(remaining int) error
	AccountLocked      func(until time.Time) error
	Internal           func(kind, cause error) error
}

// LoginDeps captures login dependencies.
//
// Phantom tracks failures for identifiers that match no account, so unknown and known
// identifiers produce the same sequence of remaining-attempt hints and locks.
type LoginDeps struct {
	Now            func() time.Time
	Retry          Retry
	UpgradeOnLogin bool
	DummyDigest    string

	FindUser           func(ctx context.Context, identifier string) (LoginUser, error)
	ReloadUser         func(ctx context.Context, userID string) (LoginUser, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error
	UpdateLastLogin    func(ctx context.Context, userID string, at time.Time) error

	Lockout LoginLockout
	Phantom LoginLockout
	Hasher  password.Hasher

	NewSessionID  func() (string, error)
	IssueToken    func(userID, role, sessionID string) (string, time.Time, error)
	CreateSession func(ctx context.Context, s *session.Session) error

	Metrics   LoginMetrics
	Events    LoginEvents
	Errors    LoginErrors
	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID, sessionID string, err error, meta func() map[string]string)
	Warn      func(msg string, args ...any)
}

// RunLogin authenticates req and, on success, persists a session before returning its
// token.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) (LoginResult, error) {
	var user LoginUser
	err := deps.Retry.Do(ctx, "find_user", func() error {
		u, err := deps.FindUser(ctx, req.Identifier)
		user = u
		return err
	})
	if errors.Is(err, deps.Errors.UserNotFound) {
		return LoginResult{}, runUnknownLogin(ctx, req, deps)
	}
	if err != nil {
		return LoginResult{}, deps.Errors.Internal(nil, err)
	}

	release, err := deps.Lockout.Acquire(ctx, user.ID)
	if err != nil {
		return LoginResult{}, deps.Errors.Internal(nil, err)
	}
	defer release()

	if _, err := checkLockout(ctx, deps.Lockout, user.ID, user.ID, req, deps); err != nil {
		return LoginResult{}, err
	}

	if !user.Active {
		deps.MetricInc(deps.Metrics.Inactive)
		deps.EmitAudit(ctx, deps.Events.Inactive, false, user.ID, "", deps.Errors.UserInactive, nil)
		return LoginResult{}, deps.Errors.UserInactive
	}

	ok, err := verifyPassword(ctx, &user, req.Password, deps)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		return LoginResult{}, recordFailure(ctx, deps.Lockout, user.ID, user.ID, req, deps)
	}

	err = deps.Retry.Do(ctx, "lockout_reset", func() error {
		return deps.Lockout.RecordSuccess(ctx, user.ID)
	})
	if err != nil {
		return LoginResult{}, deps.Errors.Internal(nil, err)
	}
	release()

	if deps.UpgradeOnLogin {
		upgradeHash(ctx, user, req.Password, deps)
	}
	if err := deps.UpdateLastLogin(ctx, user.ID, deps.Now()); err != nil {
		deps.Warn("last login update failed", "user_id", user.ID, "error", err)
	}

	result, err := issueSession(ctx, user, req.Metadata, deps)
	if err != nil {
		return LoginResult{}, err
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, result.SessionID, nil, nil)
	return result, nil
}

// runUnknownLogin mirrors the known-account path against the phantom tracker and a
// dummy digest. It always fails.
func runUnknownLogin(ctx context.Context, req LoginRequest, deps LoginDeps) error {
	release, err := deps.Phantom.Acquire(ctx, req.Identifier)
	if err != nil {
		return deps.Errors.Internal(nil, err)
	}
	defer release()

	if _, err := checkLockout(ctx, deps.Phantom, req.Identifier, "", req, deps); err != nil {
		return err
	}
	_, _ = deps.Hasher.Verify(req.Password, deps.DummyDigest)
	return recordFailure(ctx, deps.Phantom, req.Identifier, "", req, deps)
}

func checkLockout(ctx context.Context, lock LoginLockout, key, userID string, req LoginRequest, deps LoginDeps) (lockout.State, error) {
	var state lockout.State
	err := deps.Retry.Do(ctx, "lockout_check", func() error {
		s, err := lock.Check(ctx, key)
		state = s
		return err
	})

	var locked *lockout.LockedError
	if errors.As(err, &locked) {
		lockedErr := deps.Errors.AccountLocked(locked.Until)
		deps.MetricInc(deps.Metrics.Locked)
		deps.EmitAudit(ctx, deps.Events.Locked, false, userID, "", lockedErr, identifierMeta(req))
		return state, lockedErr
	}
	if err != nil {
		return state, deps.Errors.Internal(nil, err)
	}
	return state, nil
}

func recordFailure(ctx context.Context, lock LoginLockout, key, userID string, req LoginRequest, deps LoginDeps) error {
	var state lockout.State
	err := deps.Retry.Do(ctx, "lockout_record_failure", func() error {
		s, err := lock.RecordFailure(ctx, key)
		state = s
		return err
	})
	if err != nil {
		return deps.Errors.Internal(nil, err)
	}

	if state.LockedAt(deps.Now()) {
		lockedErr := deps.Errors.AccountLocked(state.LockedUntil)
		deps.MetricInc(deps.Metrics.AccountLocked)
		deps.EmitAudit(ctx, deps.Events.Locked, false, userID, "", lockedErr, identifierMeta(req))
		return lockedErr
	}

	failErr := deps.Errors.InvalidCredentials(lock.Remaining(state))
	deps.MetricInc(deps.Metrics.Failure)
	deps.EmitAudit(ctx, deps.Events.Failure, false, userID, "", failErr, identifierMeta(req))
	return failErr
}

// verifyPassword re-reads the account once when the stored digest is malformed, in case
// the first read raced a password update.
func verifyPassword(ctx context.Context, user *LoginUser, plaintext string, deps LoginDeps) (bool, error) {
	ok, err := deps.Hasher.Verify(plaintext, user.PasswordHash)
	if errors.Is(err, password.ErrMalformedHash) {
		deps.Warn("malformed password digest, re-reading account", "user_id", user.ID)
		fresh, rerr := deps.ReloadUser(ctx, user.ID)
		if rerr != nil {
			return false, deps.Errors.Internal(nil, rerr)
		}
		*user = fresh
		ok, err = deps.Hasher.Verify(plaintext, user.PasswordHash)
	}
	if err != nil {
		return false, deps.Errors.Internal(deps.Errors.CredentialStore, err)
	}
	return ok, nil
}

func upgradeHash(ctx context.Context, user LoginUser, plaintext string, deps LoginDeps) {
	needs, err := deps.Hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	digest, err := deps.Hasher.Hash(plaintext)
	if err != nil {
		deps.Warn("password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := deps.UpdatePasswordHash(ctx, user.ID, digest); err != nil {
		deps.Warn("password rehash store failed", "user_id", user.ID, "error", err)
		return
	}
	deps.MetricInc(deps.Metrics.HashUpgraded)
}

// issueSession persists the session before the token leaves this function. A jti
// collision regenerates the identifier once.
func issueSession(ctx context.Context, user LoginUser, meta session.Metadata, deps LoginDeps) (LoginResult, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		sid, err := deps.NewSessionID()
		if err != nil {
			return LoginResult{}, deps.Errors.Internal(nil, err)
		}
		token, expiresAt, err := deps.IssueToken(user.ID, user.Role, sid)
		if err != nil {
			return LoginResult{}, deps.Errors.Internal(nil, err)
		}

		sess := &session.Session{
			ID:        sid,
			UserID:    user.ID,
			CreatedAt: deps.Now(),
			ExpiresAt: expiresAt,
			Metadata:  meta.Clamp(),
		}
		err = deps.Retry.Do(ctx, "session_create", func() error {
			return deps.CreateSession(ctx, sess)
		})
		if err == nil {
			deps.MetricInc(deps.Metrics.SessionCreated)
			return LoginResult{
				User:      user,
				Token:     token,
				SessionID: sid,
				ExpiresAt: expiresAt,
			}, nil
		}
		if !errors.Is(err, session.ErrDuplicate) {
			return LoginResult{}, deps.Errors.Internal(nil, err)
		}
		lastErr = err
		deps.Warn("session id collision", "user_id", user.ID, "attempt", attempt+1)
	}
	return LoginResult{}, deps.Errors.Internal(deps.Errors.DuplicateSession, lastErr)
}

func identifierMeta(req LoginRequest) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"identifier": req.Identifier}
	}
}
