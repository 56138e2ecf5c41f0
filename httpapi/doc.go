// Package httpapi exposes an authcore Engine as a JSON HTTP API on a chi router.
//
// Taxonomy errors map to status codes in one place, [writeMappedError]. Expired,
// invalid and revoked tokens share one 401 response so callers cannot tell them apart.
package httpapi
