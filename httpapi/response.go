package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore"
)

const maxBodyBytes = 16 << 10

type apiError struct {
	Status            string `json:"status"`
	Code              string `json:"code"`
	Message           string `json:"message"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{Status: "error", Code: code, Message: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("malformed JSON body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// errorResponse maps an engine error to its HTTP form.
func errorResponse(err error) (int, apiError) {
	out := apiError{Status: "error"}

	var (
		validation *authcore.ValidationError
		invalid    *authcore.InvalidCredentialsError
	)
	switch {
	case errors.As(err, &validation):
		out.Code, out.Message = "VALIDATION_ERROR", validation.Error()
		return http.StatusBadRequest, out
	case errors.Is(err, authcore.ErrDuplicateUser):
		out.Code, out.Message = "CONFLICT", "username or email already registered"
		return http.StatusConflict, out
	case errors.As(err, &invalid):
		out.Code, out.Message = "INVALID_CREDENTIALS", "invalid username or password"
		if invalid.RemainingAttempts >= 0 {
			n := invalid.RemainingAttempts
			out.RemainingAttempts = &n
		}
		return http.StatusUnauthorized, out
	case errors.Is(err, authcore.ErrAccountLocked):
		out.Code, out.Message = "ACCOUNT_LOCKED", "account temporarily locked"
		return http.StatusTooManyRequests, out
	case errors.Is(err, authcore.ErrUserInactive):
		out.Code, out.Message = "USER_INACTIVE", "account is deactivated"
		return http.StatusForbidden, out
	case errors.Is(err, authcore.ErrTokenExpired),
		errors.Is(err, authcore.ErrTokenInvalid),
		errors.Is(err, authcore.ErrSessionNotFound):
		out.Code, out.Message = "UNAUTHORIZED", "invalid or missing credentials"
		return http.StatusUnauthorized, out
	case errors.Is(err, authcore.ErrUserNotFound):
		out.Code, out.Message = "NOT_FOUND", "resource not found"
		return http.StatusNotFound, out
	default:
		out.Code, out.Message = "INTERNAL_ERROR", "internal server error"
		return http.StatusInternalServerError, out
	}
}

func (h *Handler) writeMappedError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status, body := errorResponse(err)

	var locked *authcore.AccountLockedError
	if errors.As(err, &locked) {
		secs := int(locked.RetryAfter.Sub(h.now()).Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	if status == http.StatusUnauthorized && body.Code == "UNAUTHORIZED" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	}

	h.logOperationError(r, operation, status, body.Code, err)
	writeJSON(w, status, body)
}
