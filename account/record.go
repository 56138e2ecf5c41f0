package account

import (
	"time"

	"github.com/MrEthical07/authcore/lockout"
)

// Role is the account's authorization role.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Record is a stored user. PasswordHash never leaves the package boundary in serialised
// form.
type Record struct {
	ID                  string    `json:"-"`
	PublicID            string    `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"-"`
	FailedLoginAttempts int       `json:"-"`
	LockedUntil         time.Time `json:"-"`
	IsActive            bool      `json:"is_active"`
	Role                Role      `json:"role"`
	LastLoginAt         time.Time `json:"last_login_at,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// LockoutState returns the lockout fields as a lockout.State.
func (r *Record) LockoutState() lockout.State {
	return lockout.State{FailedAttempts: r.FailedLoginAttempts, LockedUntil: r.LockedUntil}
}

// SetLockoutState writes st into the lockout fields.
func (r *Record) SetLockoutState(st lockout.State) {
	r.FailedLoginAttempts = st.FailedAttempts
	r.LockedUntil = st.LockedUntil
}

// Clone returns a copy of r.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}
