// Package flows contains pure-function orchestrators for the Engine's multi-step
// operations.
//
// Each flow function (RunLogin, RunAuthenticate, RunChangePassword) accepts a typed
// dependency struct and returns results without side-effects beyond those
// dependencies. The Engine builds the structs and stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate the lockout tracker, password hasher, token manager,
// session registry, audit dispatcher and metrics. They do NOT own any of these
// resources. Ownership stays with the Engine.
//
// # Ordering
//
// RunLogin checks the lockout state before verifying the password, and records the
// outcome before issuing a token. These steps never run concurrently for one account.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authcore (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
