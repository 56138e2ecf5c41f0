package httpapi

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/authcore/middleware"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// requestLogger logs one line per request once the handler returns.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		switch {
		case rec.status >= 500:
			level = slog.LevelError
		case rec.status >= 400:
			level = slog.LevelWarn
		}
		h.logger.Log(r.Context(), level, "http_request_finished",
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("ip", middleware.ClientIP(r, h.trustProxy)),
			slog.Int("status", rec.status),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				stack := make([]byte, 2048)
				stack = stack[:runtime.Stack(stack, false)]
				h.logger.ErrorContext(r.Context(), "panic_recovered",
					slog.Any("error", v),
					slog.String("stack", string(stack)),
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) logOperationError(r *http.Request, operation string, status int, code string, err error) {
	attrs := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", status,
		"error_code", code,
		"request_id", chimw.GetReqID(r.Context()),
	}
	if status >= 500 {
		attrs = append(attrs, "error", err.Error())
		h.logger.ErrorContext(r.Context(), "http operation failed", attrs...)
		return
	}
	h.logger.WarnContext(r.Context(), "http operation failed", attrs...)
}
