// Package authcore verifies credentials and manages the lifecycle of revocable
// bearer-token sessions.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], the error
// taxonomy and value types. Storage contracts live in the leaf packages (account,
// session, lockout) so any backend can be plugged in without importing this package.
// Flow orchestration and audit dispatch live under internal/ and are never exported.
//
// # Sessions
//
// A token is necessary but not sufficient: [Engine.AuthenticateRequest] also requires
// a live session record keyed by the token's jti and an active owning user. Logout and
// password changes revoke records, which makes tokens unusable before their exp.
//
// # What this package must NOT do
//
//   - Return a token whose session record was not persisted.
//   - Reveal whether an identifier exists, or which of identifier and password was wrong.
//   - Log plaintext passwords, digests or tokens.
//   - Import any sub-package that re-imports authcore (no import cycles).
package authcore
