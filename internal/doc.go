// Package internal contains helpers private to authcore, chiefly secure random
// identifiers for sessions.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: ordered orchestration of the login, authenticate and change-password flows
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
package internal
