package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal/flows"
)

// ChangePassword replaces the password of userID after re-verifying the current one,
// then revokes every other session. currentSessionID, when set, survives. It returns the
// number of sessions revoked.
//
// Failed current-password checks do not count toward lockout and report
// RemainingAttempts < 0.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next, currentSessionID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, &ValidationError{Field: "user_id", Reason: "required"}
	}
	if current == "" {
		return 0, &ValidationError{Field: "current_password", Reason: "required"}
	}

	revoked, err := flows.RunChangePassword(ctx, flows.ChangePasswordRequest{
		UserID:           userID,
		CurrentPassword:  current,
		NewPassword:      next,
		CurrentSessionID: currentSessionID,
	}, e.changePasswordFlowDeps())
	if err != nil {
		return 0, err
	}
	e.logger.InfoContext(ctx, "password changed", "operation", "change_password", "outcome", "success", "user_id", userID, "sessions_revoked", revoked)
	return revoked, nil
}

func (e *Engine) changePasswordFlowDeps() flows.ChangePasswordDeps {
	return flows.ChangePasswordDeps{
		Retry:              e.retry(),
		Hasher:             e.hasher,
		ValidateNew:        e.validateNewPassword,
		FindUser:           e.findLoginUser,
		UpdatePasswordHash: e.accounts.UpdatePasswordHash,
		RevokeAllForUser:   e.sessions.RevokeAllForUser,
		Metrics: flows.ChangePasswordMetrics{
			Success:        int(MetricPasswordChangeSuccess),
			InvalidOld:     int(MetricPasswordChangeInvalidOld),
			SessionRevoked: int(MetricSessionRevoked),
		},
		Events: flows.ChangePasswordEvents{
			Success: auditEventPasswordChangeSuccess,
			Failure: auditEventPasswordChangeFailure,
		},
		Errors: flows.ChangePasswordErrors{
			UserNotFound:    ErrUserNotFound,
			UserInactive:    ErrUserInactive,
			CredentialStore: ErrCredentialStore,
			InvalidCredentials: func(remaining int) error {
				return &InvalidCredentialsError{RemainingAttempts: remaining}
			},
			Internal: e.internal,
		},
		MetricInc: e.metricIncInt,
		MetricAdd: e.metricAddInt,
		EmitAudit: e.emitAudit,
		Warn:      e.warn,
	}
}
