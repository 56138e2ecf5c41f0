package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// ClientMetadata records the caller's IP and user agent in the request context.
//
// With trustProxy set, X-Real-IP and the first X-Forwarded-For entry take precedence
// over the connection address. Only enable it behind a proxy that overwrites them.
func ClientMetadata(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := authcore.WithClientIP(r.Context(), ClientIP(r, trustProxy))
			if ua := r.UserAgent(); ua != "" {
				ctx = authcore.WithUserAgent(ctx, ua)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the client address of r.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
