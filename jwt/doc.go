// Package jwt issues and verifies the signed bearer tokens handed out at login.
//
// A token carries the user ID (sub), the session ID (jti), the role, issued-at and
// expiry. Verification is strict: the signing algorithm is pinned, issuer and audience
// are checked when configured, exp is required, and the check uses the injected clock.
// A token whose exp equals the current instant is already expired.
//
// Verify only proves the token is authentic and unexpired. Whether its session is still
// active is the caller's decision.
package jwt
