// Package middleware holds the HTTP adapters that sit in front of an authcore Engine.
//
//   - [Guard] reads the bearer token, calls Engine.AuthenticateRequest and stores the
//     verified [authcore.Claims] in the request context.
//   - [ClientMetadata] copies the client IP and user agent into the context so sessions
//     and audit events record them.
//   - [Throttle] is a per-IP token bucket, independent of account lockout.
//
// This package makes no authentication decisions of its own.
package middleware
