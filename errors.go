package authcore

import (
	"errors"
	"strconv"
	"time"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateUser is returned by Register when the username or email is taken.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrInvalidCredentials matches every *InvalidCredentialsError.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked matches every *AccountLockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrUserInactive is returned for deactivated accounts.
	ErrUserInactive = errors.New("user inactive")
	// ErrTokenExpired is returned for an authentic token past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for tokens failing signature, shape or claim checks.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionNotFound is returned when the token's session was revoked or expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCredentialStore reports a stored password digest that cannot be interpreted.
	ErrCredentialStore = errors.New("credential store error")
	// ErrDuplicateSession reports a jti collision in the session registry.
	ErrDuplicateSession = errors.New("duplicate session")
	// ErrInternal matches every failure the caller cannot act on.
	ErrInternal = errors.New("internal error")
	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUserNotFound is returned by administrative operations for an unknown user id.
	ErrUserNotFound = errors.New("user not found")
)

// ValidationError describes one malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidCredentialsError is returned for a wrong identifier or password. It never says
// which of the two was wrong.
//
// RemainingAttempts is the number of failures left before the account locks. It is
// negative where lockout tracking does not apply, as in ChangePassword.
type InvalidCredentialsError struct {
	RemainingAttempts int
}

func (e *InvalidCredentialsError) Error() string {
	if e.RemainingAttempts < 0 {
		return ErrInvalidCredentials.Error()
	}
	return ErrInvalidCredentials.Error() + " (" + strconv.Itoa(e.RemainingAttempts) + " attempts remaining)"
}

func (e *InvalidCredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// AccountLockedError carries the instant the lock ends.
type AccountLockedError struct {
	RetryAfter time.Time
}

func (e *AccountLockedError) Error() string {
	return "account locked until " + e.RetryAfter.UTC().Format(time.RFC3339)
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// internalError hides a cause behind a generic message. It matches ErrInternal and,
// when set, the more specific kind.
type internalError struct {
	kind  error
	cause error
}

func newInternalError(kind, cause error) error {
	return &internalError{kind: kind, cause: cause}
}

func (e *internalError) Error() string {
	return ErrInternal.Error()
}

func (e *internalError) Is(target error) bool {
	return target == ErrInternal || (e.kind != nil && target == e.kind)
}

// Unwrap exposes the cause for logging. Callers should classify with errors.Is.
func (e *internalError) Unwrap() error {
	return e.cause
}
