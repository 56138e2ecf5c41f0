package authcore

import (
	"context"
	"errors"
)

const (
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterFailure       = "register_failure"
	auditEventRegisterDuplicate     = "register_duplicate"
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginLocked           = "login_locked"
	auditEventLoginInactive         = "login_inactive"
	auditEventLogout                = "logout"
	auditEventLogoutAll             = "logout_all"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventAccountStatusChange   = "account_status_change"
	auditEventAccountUnlock         = "account_unlock"
	auditEventAuthenticateFailure   = "authenticate_failure"
)

// auditCodes maps error kinds to the stable reason codes carried in AuditEvent.Error.
// Order matters: the internal kinds also match ErrInternal, so they come first.
var auditCodes = []struct {
	kind error
	code string
}{
	{ErrCredentialStore, "credential_store"},
	{ErrDuplicateSession, "duplicate_session"},
	{ErrValidation, "validation"},
	{ErrDuplicateUser, "duplicate"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrAccountLocked, "account_locked"},
	{ErrUserInactive, "user_inactive"},
	{ErrTokenExpired, "token_expired"},
	{ErrTokenInvalid, "token_invalid"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrUserNotFound, "user_not_found"},
}

const auditCodeInternal = "internal_error"

func auditCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range auditCodes {
		if errors.Is(err, c.kind) {
			return c.code
		}
	}
	return auditCodeInternal
}

// emitAudit hands one event to the dispatcher. meta is only evaluated when auditing is
// enabled.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, sessionID string, err error, meta func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	ev := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     auditCode(err),
	}
	if meta != nil {
		ev.Metadata = meta()
	}
	e.audit.Emit(ctx, ev)
}
