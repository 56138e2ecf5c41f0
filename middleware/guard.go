package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// Authenticator is the subset of *authcore.Engine used by Guard.
type Authenticator interface {
	AuthenticateRequest(ctx context.Context, token string) (*authcore.Claims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (*authcore.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*authcore.Claims)
	return c, ok
}

// WithClaims stores c in ctx. Guard uses it; tests of downstream handlers may too.
func WithClaims(ctx context.Context, c *authcore.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// Guard rejects requests without a valid bearer token.
//
// Expired, invalid and revoked tokens all get the same 401 response. A deactivated
// account gets 403.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				writeUnauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w)
				return
			}

			claims, err := auth.AuthenticateRequest(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, authcore.ErrUserInactive):
				writeJSONError(w, http.StatusForbidden, "USER_INACTIVE", "account is deactivated")
				return
			case errors.Is(err, authcore.ErrTokenExpired),
				errors.Is(err, authcore.ErrTokenInvalid),
				errors.Is(err, authcore.ErrSessionNotFound):
				writeUnauthorized(w)
				return
			default:
				writeJSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials")
}

// writeJSONError uses the same envelope as package httpapi.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"code":    code,
		"message": message,
	})
}
