package authcore

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type deviceContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Login records it on the session
// when SessionMetadata.IP is empty, and audit events carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithDevice attaches a client-supplied device label to ctx.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceContextKey{}, device)
}

func clientIPFromContext(ctx context.Context) string {
	return stringFromContext(ctx, clientIPContextKey{})
}

func userAgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, userAgentContextKey{})
}

func deviceFromContext(ctx context.Context) string {
	return stringFromContext(ctx, deviceContextKey{})
}

func stringFromContext(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func metadataFromContext(ctx context.Context, meta SessionMetadata) SessionMetadata {
	if meta.IP == "" {
		meta.IP = clientIPFromContext(ctx)
	}
	if meta.UserAgent == "" {
		meta.UserAgent = userAgentFromContext(ctx)
	}
	if meta.Device == "" {
		meta.Device = deviceFromContext(ctx)
	}
	return meta
}
