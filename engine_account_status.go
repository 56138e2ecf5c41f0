package authcore

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/authcore/account"
)

// Deactivate disables userID and revokes all of its sessions. Login and
// AuthenticateRequest report ErrUserInactive until Activate is called.
func (e *Engine) Deactivate(ctx context.Context, userID string) error {
	if err := e.setActive(ctx, userID, false); err != nil {
		return err
	}
	e.metricInc(MetricAccountDisabled)

	var revoked int
	err := e.retry().Do(ctx, "session_revoke_all", func() error {
		n, err := e.sessions.RevokeAllForUser(ctx, userID, "")
		revoked = n
		return err
	})
	if err != nil {
		return e.internal(nil, err)
	}
	e.metricAdd(MetricSessionRevoked, uint64(revoked))
	e.emitAudit(ctx, auditEventAccountStatusChange, true, userID, "", nil, func() map[string]string {
		return map[string]string{"active": "false", "sessions_revoked": strconv.Itoa(revoked)}
	})
	return nil
}

// Activate re-enables userID. Lockout state is left as it was.
func (e *Engine) Activate(ctx context.Context, userID string) error {
	if err := e.setActive(ctx, userID, true); err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventAccountStatusChange, true, userID, "", nil, func() map[string]string {
		return map[string]string{"active": "true"}
	})
	return nil
}

func (e *Engine) setActive(ctx context.Context, userID string, active bool) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if userID == "" {
		return &ValidationError{Field: "user_id", Reason: "required"}
	}
	err := e.retry().Do(ctx, "account_set_active", func() error {
		return e.accounts.SetActive(ctx, userID, active)
	})
	if errors.Is(err, account.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return e.internal(nil, err)
	}
	e.logger.InfoContext(ctx, "account status changed", "operation", "set_active", "user_id", userID, "active", active)
	return nil
}

// Unlock clears the failure counter and any lock on userID.
func (e *Engine) Unlock(ctx context.Context, userID string) error {
	if _, err := e.LookupUser(ctx, userID); err != nil {
		return err
	}

	release, err := e.lockout.Acquire(ctx, userID)
	if err != nil {
		return e.internal(nil, err)
	}
	defer release()

	err = e.retry().Do(ctx, "lockout_unlock", func() error {
		return e.lockout.Unlock(ctx, userID)
	})
	if err != nil {
		return e.internal(nil, err)
	}
	e.metricInc(MetricAccountUnlocked)
	e.emitAudit(ctx, auditEventAccountUnlock, true, userID, "", nil, nil)
	e.logger.InfoContext(ctx, "account unlocked", "operation", "unlock", "user_id", userID)
	return nil
}

// LockoutStatus reports the failure counter and lock of userID. A lock that has run out
// is reported as unlocked.
func (e *Engine) LockoutStatus(ctx context.Context, userID string) (LockoutStatus, error) {
	if _, err := e.LookupUser(ctx, userID); err != nil {
		return LockoutStatus{}, err
	}

	st, err := e.lockout.Status(ctx, userID)
	if err != nil {
		return LockoutStatus{}, e.internal(nil, err)
	}
	out := LockoutStatus{
		FailedAttempts:    st.FailedAttempts,
		RemainingAttempts: e.lockout.Remaining(st),
		Locked:            st.LockedAt(e.now()),
	}
	if out.Locked {
		out.LockedUntil = st.LockedUntil
	}
	return out, nil
}

// LookupUser returns the caller-facing view of userID.
func (e *Engine) LookupUser(ctx context.Context, userID string) (*User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "required"}
	}

	var rec *account.Record
	err := e.retry().Do(ctx, "find_user", func() error {
		r, err := e.accounts.FindByID(ctx, userID)
		rec = r
		return err
	})
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, e.internal(nil, err)
	}
	return userFromRecord(rec), nil
}
