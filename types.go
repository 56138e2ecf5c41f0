package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/session"
)

// User is the caller-facing view of an account. It never carries the password digest
// or lockout counters.
type User struct {
	ID          string       `json:"-"`
	PublicID    string       `json:"id"`
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	Role        account.Role `json:"role"`
	IsActive    bool         `json:"is_active"`
	LastLoginAt time.Time    `json:"last_login_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

func userFromRecord(rec *account.Record) *User {
	return &User{
		ID:          rec.ID,
		PublicID:    rec.PublicID,
		Username:    rec.Username,
		Email:       rec.Email,
		Role:        rec.Role,
		IsActive:    rec.IsActive,
		LastLoginAt: rec.LastLoginAt,
		CreatedAt:   rec.CreatedAt,
	}
}

// SessionMetadata is client context recorded with a session for audit only.
type SessionMetadata struct {
	IP        string
	UserAgent string
	Device    string
}

// LoginResult is returned by a successful Login. Token is only ever set once its session
// record has been persisted.
type LoginResult struct {
	User      *User
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// Claims is the authenticated view of a verified token.
type Claims struct {
	UserID    string
	SessionID string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionInfo describes one live session of a user.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Device    string    `json:"device,omitempty"`
}

func sessionInfoFrom(s *session.Session) SessionInfo {
	return SessionInfo{
		SessionID: s.ID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		IP:        s.Metadata.IP,
		UserAgent: s.Metadata.UserAgent,
		Device:    s.Metadata.Device,
	}
}

// LockoutStatus reports the lockout state of one account.
type LockoutStatus struct {
	FailedAttempts    int
	RemainingAttempts int
	Locked            bool
	LockedUntil       time.Time
}
