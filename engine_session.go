package authcore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
)

// AuthenticateRequest verifies a bearer token and confirms its session is still live.
//
// It returns ErrTokenExpired, ErrTokenInvalid, ErrSessionNotFound or ErrUserInactive.
// Transport layers should present the first three identically.
func (e *Engine) AuthenticateRequest(ctx context.Context, token string) (*Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricAuthenticateLatency, start)

	if token == "" {
		e.metricInc(MetricAuthenticateInvalid)
		return nil, ErrTokenInvalid
	}

	claims, err := flows.RunAuthenticate(ctx, token, e.authenticateFlowDeps())
	if err != nil {
		return nil, err
	}

	out := &Claims{
		UserID:    claims.UserID(),
		SessionID: claims.SessionID(),
		Role:      claims.Role,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func (e *Engine) authenticateFlowDeps() flows.AuthenticateDeps {
	return flows.AuthenticateDeps{
		Now:            e.now,
		Retry:          e.retry(),
		VerifyToken:    e.jwtManager.Verify,
		ValidSessionID: internal.ValidSessionID,
		FindSession:    e.sessions.FindActive,
		FindUser:       e.findLoginUser,
		Metrics: flows.AuthenticateMetrics{
			Success:         int(MetricAuthenticateSuccess),
			Expired:         int(MetricAuthenticateExpired),
			Invalid:         int(MetricAuthenticateInvalid),
			SessionNotFound: int(MetricAuthenticateSessionNotFound),
		},
		FailureEvent: auditEventAuthenticateFailure,
		Errors: flows.AuthenticateErrors{
			TokenExpired:    ErrTokenExpired,
			TokenInvalid:    ErrTokenInvalid,
			SessionNotFound: ErrSessionNotFound,
			UserInactive:    ErrUserInactive,
			UserNotFound:    ErrUserNotFound,
			Internal:        e.internal,
		},
		MetricInc: e.metricIncInt,
		EmitAudit: e.emitAudit,
	}
}

func (e *Engine) findLoginUser(ctx context.Context, userID string) (flows.LoginUser, error) {
	rec, err := e.accounts.FindByID(ctx, userID)
	if errors.Is(err, account.ErrNotFound) {
		return flows.LoginUser{}, ErrUserNotFound
	}
	if err != nil {
		return flows.LoginUser{}, err
	}
	return loginUserFromRecord(rec), nil
}

// Logout revokes one session. Revoking an unknown or already revoked session succeeds.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if sessionID == "" {
		return &ValidationError{Field: "session_id", Reason: "required"}
	}

	err := e.retry().Do(ctx, "session_revoke", func() error {
		return e.sessions.Revoke(ctx, sessionID)
	})
	if err != nil {
		return e.internal(nil, err)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventLogout, true, "", sessionID, nil, nil)
	return nil
}

// LogoutAll revokes every session of userID and returns how many were removed.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, &ValidationError{Field: "user_id", Reason: "required"}
	}
	return e.revokeAll(ctx, userID, auditEventLogoutAll)
}

func (e *Engine) revokeAll(ctx context.Context, userID, event string) (int, error) {
	var revoked int
	err := e.retry().Do(ctx, "session_revoke_all", func() error {
		n, err := e.sessions.RevokeAllForUser(ctx, userID, "")
		revoked = n
		return err
	})
	if err != nil {
		return 0, e.internal(nil, err)
	}

	e.metricInc(MetricLogoutAll)
	e.metricAdd(MetricSessionRevoked, uint64(revoked))
	e.emitAudit(ctx, event, true, userID, "", nil, func() map[string]string {
		return map[string]string{"sessions_revoked": strconv.Itoa(revoked)}
	})
	return revoked, nil
}

// ActiveSessions lists the live sessions of userID, oldest first.
func (e *Engine) ActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "required"}
	}

	var out []SessionInfo
	err := e.retry().Do(ctx, "session_list", func() error {
		list, err := e.sessions.ListForUser(ctx, userID, e.now())
		if err != nil {
			return err
		}
		out = make([]SessionInfo, 0, len(list))
		for _, s := range list {
			out = append(out, sessionInfoFrom(s))
		}
		return nil
	})
	if err != nil {
		return nil, e.internal(nil, err)
	}
	return out, nil
}
