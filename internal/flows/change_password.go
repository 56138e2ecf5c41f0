package flows

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/authcore/password"
)

type ChangePasswordRequest struct {
	UserID           string
	CurrentPassword  string
	NewPassword      string
	CurrentSessionID string
}

type ChangePasswordMetrics struct {
	Success        int
	InvalidOld     int
	SessionRevoked int
}

type ChangePasswordEvents struct {
	Success string
	Failure string
}

type ChangePasswordErrors struct {
	UserNotFound       error
	UserInactive       error
	CredentialStore    error
	InvalidCredentials func(remaining int) error
	Internal           func(kind, cause error) error
}

// ChangePasswordDeps captures change-password dependencies.
type ChangePasswordDeps struct {
	Retry  Retry
	Hasher password.Hasher

	ValidateNew        func(current, next string) error
	FindUser           func(ctx context.Context, userID string) (LoginUser, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error
	RevokeAllForUser   func(ctx context.Context, userID, exceptID string) (int, error)

	Metrics   ChangePasswordMetrics
	Events    ChangePasswordEvents
	Errors    ChangePasswordErrors
	MetricInc func(int)
	MetricAdd func(int, uint64)
	EmitAudit func(ctx context.Context, event string, success bool, userID, sessionID string, err error, meta func() map[string]string)
	Warn      func(msg string, args ...any)
}

// RunChangePassword re-verifies the current password, stores the new digest and revokes
// every other session of the user. It returns how many sessions were revoked.
//
// Re-verification is not counted by the lockout tracker: the caller already holds a
// live session.
func RunChangePassword(ctx context.Context, req ChangePasswordRequest, deps ChangePasswordDeps) (int, error) {
	fail := func(err error) (int, error) {
		deps.EmitAudit(ctx, deps.Events.Failure, false, req.UserID, req.CurrentSessionID, err, nil)
		return 0, err
	}

	if err := deps.ValidateNew(req.CurrentPassword, req.NewPassword); err != nil {
		return fail(err)
	}

	var user LoginUser
	load := func() error {
		return deps.Retry.Do(ctx, "find_user", func() error {
			u, err := deps.FindUser(ctx, req.UserID)
			user = u
			return err
		})
	}
	if err := load(); err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return fail(deps.Errors.UserNotFound)
		}
		return fail(deps.Errors.Internal(nil, err))
	}
	if !user.Active {
		return fail(deps.Errors.UserInactive)
	}

	ok, err := deps.Hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if errors.Is(err, password.ErrMalformedHash) {
		deps.Warn("malformed password digest, re-reading account", "user_id", user.ID)
		if lerr := load(); lerr != nil {
			return fail(deps.Errors.Internal(nil, lerr))
		}
		ok, err = deps.Hasher.Verify(req.CurrentPassword, user.PasswordHash)
	}
	if err != nil {
		return fail(deps.Errors.Internal(deps.Errors.CredentialStore, err))
	}
	if !ok {
		deps.MetricInc(deps.Metrics.InvalidOld)
		return fail(deps.Errors.InvalidCredentials(-1))
	}

	digest, err := deps.Hasher.Hash(req.NewPassword)
	if err != nil {
		return fail(deps.Errors.Internal(deps.Errors.CredentialStore, err))
	}
	err = deps.Retry.Do(ctx, "password_update", func() error {
		return deps.UpdatePasswordHash(ctx, user.ID, digest)
	})
	if err != nil {
		return fail(deps.Errors.Internal(nil, err))
	}

	var revoked int
	err = deps.Retry.Do(ctx, "session_revoke_all", func() error {
		n, err := deps.RevokeAllForUser(ctx, user.ID, req.CurrentSessionID)
		revoked = n
		return err
	})
	if err != nil {
		// The new password is stored. Surface the failure so the caller can retry the
		// revocation through LogoutAll.
		deps.Warn("session revocation after password change failed", "user_id", user.ID, "error", err)
		return fail(deps.Errors.Internal(nil, err))
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.MetricAdd(deps.Metrics.SessionRevoked, uint64(revoked))
	deps.EmitAudit(ctx, deps.Events.Success, true, user.ID, req.CurrentSessionID, nil, func() map[string]string {
		return map[string]string{"sessions_revoked": strconv.Itoa(revoked)}
	})
	return revoked, nil
}
