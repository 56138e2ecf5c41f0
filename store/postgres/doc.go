// Package postgres implements account.Store and session.Registry on PostgreSQL through a
// pgx connection pool.
//
// # Error mapping
//
// pgx.ErrNoRows becomes the domain not-found error, a unique violation (SQLSTATE 23505)
// becomes the domain duplicate error, and every other failure is wrapped with the
// domain's unavailable sentinel so callers can classify it as transient.
//
// # Lockout updates
//
// UpdateLockoutState reads the lockout columns with SELECT ... FOR UPDATE inside a
// transaction, applies the transition in Go and writes the result back before commit.
// The row lock serialises concurrent attempts for one user across every process.
package postgres
