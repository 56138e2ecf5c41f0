package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/session"
)

type AuthenticateMetrics struct {
	Success         int
	Expired         int
	Invalid         int
	SessionNotFound int
}

type AuthenticateErrors struct {
	TokenExpired    error
	TokenInvalid    error
	SessionNotFound error
	UserInactive    error
	UserNotFound    error
	Internal        func(kind, cause error) error
}

// AuthenticateDeps captures request authentication dependencies.
type AuthenticateDeps struct {
	Now   func() time.Time
	Retry Retry

	VerifyToken func(token string) (*jwt.Claims, error)
	// ValidSessionID, when set, rejects a jti the engine could not have issued before
	// the registry is consulted.
	ValidSessionID func(id string) bool
	FindSession    func(ctx context.Context, id string, now time.Time) (*session.Session, error)
	FindUser       func(ctx context.Context, userID string) (LoginUser, error)

	Metrics      AuthenticateMetrics
	FailureEvent string
	Errors       AuthenticateErrors
	MetricInc    func(int)
	EmitAudit    func(ctx context.Context, event string, success bool, userID, sessionID string, err error, meta func() map[string]string)
}

// RunAuthenticate accepts a token only when its signature and claims verify, its
// session is live and belongs to the token subject, and the owning user is active.
func RunAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) (*jwt.Claims, error) {
	claims, err := deps.VerifyToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			deps.MetricInc(deps.Metrics.Expired)
			return nil, deps.Errors.TokenExpired
		}
		deps.MetricInc(deps.Metrics.Invalid)
		deps.EmitAudit(ctx, deps.FailureEvent, false, "", "", deps.Errors.TokenInvalid, nil)
		return nil, deps.Errors.TokenInvalid
	}
	if deps.ValidSessionID != nil && !deps.ValidSessionID(claims.SessionID()) {
		deps.MetricInc(deps.Metrics.Invalid)
		deps.EmitAudit(ctx, deps.FailureEvent, false, "", "", deps.Errors.TokenInvalid, func() map[string]string {
			return map[string]string{"reason": "malformed_session_id"}
		})
		return nil, deps.Errors.TokenInvalid
	}

	var sess *session.Session
	err = deps.Retry.Do(ctx, "session_find", func() error {
		s, err := deps.FindSession(ctx, claims.SessionID(), deps.Now())
		sess = s
		return err
	})
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
		deps.MetricInc(deps.Metrics.SessionNotFound)
		return nil, deps.Errors.SessionNotFound
	case err != nil:
		return nil, deps.Errors.Internal(nil, err)
	}
	if sess.UserID != claims.UserID() {
		deps.MetricInc(deps.Metrics.SessionNotFound)
		deps.EmitAudit(ctx, deps.FailureEvent, false, claims.UserID(), claims.SessionID(), deps.Errors.SessionNotFound, func() map[string]string {
			return map[string]string{"reason": "subject_mismatch"}
		})
		return nil, deps.Errors.SessionNotFound
	}

	var user LoginUser
	err = deps.Retry.Do(ctx, "find_user", func() error {
		u, err := deps.FindUser(ctx, claims.UserID())
		user = u
		return err
	})
	if errors.Is(err, deps.Errors.UserNotFound) {
		return nil, deps.Errors.UserInactive
	}
	if err != nil {
		return nil, deps.Errors.Internal(nil, err)
	}
	if !user.Active {
		deps.EmitAudit(ctx, deps.FailureEvent, false, user.ID, claims.SessionID(), deps.Errors.UserInactive, nil)
		return nil, deps.Errors.UserInactive
	}

	deps.MetricInc(deps.Metrics.Success)
	return claims, nil
}
