package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/account"
	"github.com/google/uuid"
)

// Register validates and stores a new account with zeroed lockout state. It does not
// create a session; callers log in explicitly.
//
// Register fails with *ValidationError for malformed input and ErrDuplicateUser when
// the username or email is taken. Insert is not retried: a retry after an ambiguous
// failure could report a duplicate for an account that was in fact created.
func (e *Engine) Register(ctx context.Context, username, email, plaintext string) (*User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	fail := func(event string, metric MetricID, err error) (*User, error) {
		e.metricInc(metric)
		e.emitAudit(ctx, event, false, "", "", err, nil)
		return nil, err
	}

	normUsername, err := e.normalizeUsername(username)
	if err != nil {
		return fail(auditEventRegisterFailure, MetricRegisterFailure, err)
	}
	normEmail, err := normalizeEmail(email)
	if err != nil {
		return fail(auditEventRegisterFailure, MetricRegisterFailure, err)
	}
	if err := e.validatePassword("password", plaintext); err != nil {
		return fail(auditEventRegisterFailure, MetricRegisterFailure, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest, err := e.hasher.Hash(plaintext)
	if err != nil {
		return fail(auditEventRegisterFailure, MetricRegisterFailure, e.internal(ErrCredentialStore, err))
	}

	rec := &account.Record{
		PublicID:     uuid.NewString(),
		Username:     normUsername,
		Email:        normEmail,
		PasswordHash: digest,
		IsActive:     true,
		Role:         account.RoleUser,
		CreatedAt:    e.now().UTC(),
	}
	if err := e.accounts.Insert(ctx, rec); err != nil {
		if errors.Is(err, account.ErrDuplicate) {
			e.logger.InfoContext(ctx, "registration rejected", "operation", "register", "outcome", "duplicate")
			return fail(auditEventRegisterDuplicate, MetricRegisterDuplicate, ErrDuplicateUser)
		}
		return fail(auditEventRegisterFailure, MetricRegisterFailure, e.internal(nil, err))
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, rec.ID, "", nil, nil)
	e.logger.InfoContext(ctx, "user registered", "operation", "register", "outcome", "success", "user_id", rec.ID)
	return userFromRecord(rec), nil
}
