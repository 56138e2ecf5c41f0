// Package session is the session registry: the durable mapping from a token's jti to the
// owning user, expiry and client metadata. It is the only authority on revocation.
//
// # Backends
//
// [Store] keeps sessions in Redis as a compact binary blob under prefix:jti with a
// per-user index set, using Lua scripts so that create and revoke touch the blob and the
// index atomically. [MemoryStore] is the in-process equivalent for tests and single-node
// deployments. The Postgres implementation lives in store/postgres.
//
// Expiry is lazy: FindActive treats a record with expiresAt <= now as absent and removes
// it. Redis additionally expires keys natively.
//
// # What this package must NOT do
//
//   - Import the root package or jwt (no upward imports).
//   - Decide whether the owning user is still active. The Engine checks that.
//   - Store tokens or any other secret.
package session
