// Package account defines the user record and the storage contract the Engine reads and
// mutates: lookup by identifier or id, insert, and the narrow updates a login flow needs.
//
// Identifiers are normalised with [NormalizeIdentifier] (NFKC, then Unicode case fold)
// before any index lookup, so "Alice", "ALICE" and the fullwidth "Ａｌｉｃｅ" are the same
// account.
//
// UpdateLockoutState is the per-user atomic conditional write the lockout tracker relies
// on. [LockoutStore] adapts any Store to lockout.Store.
package account
