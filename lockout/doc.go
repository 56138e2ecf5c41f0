// Package lockout implements the per-account brute-force lockout state machine.
//
// # States
//
// An account is either Unlocked(count) with count below the threshold, or Locked(until).
// A failed attempt advances the counter and locks the account once the threshold is
// reached. An attempt against an expired lock starts over from Unlocked(0). A successful
// verification always returns the account to Unlocked(0).
//
// # Atomicity
//
// Transitions are pure functions ([Transition]) applied by a [Store] as one atomic
// read-modify-write, so concurrent attempts for the same account can never lose an
// increment. [Tracker] additionally serialises attempts for one account inside the
// process with a keyed mutex, so attempts against a freshly locked account skip password
// verification entirely. Different accounts never contend.
//
// # What this package must NOT do
//
//   - Verify passwords or look up users. The Engine drives every transition.
//   - Throttle by IP address. That is an independent outer layer.
package lockout
