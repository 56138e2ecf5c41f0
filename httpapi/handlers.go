package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Device     string `json:"device"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	TokenType string         `json:"token_type"`
	ExpiresAt time.Time      `json:"expires_at"`
	SessionID string         `json:"session_id"`
	User      *authcore.User `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"state": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "readiness check failed", "error", err.Error())
		writeError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"state": "ready"})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeMappedError(w, r, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, user)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.Identifier, req.Password, authcore.SessionMetadata{Device: req.Device})
	if err != nil {
		h.writeMappedError(w, r, "login", err)
		return
	}
	writeSuccess(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresAt: result.ExpiresAt,
		SessionID: result.SessionID,
		User:      result.User,
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	user, err := h.service.LookupUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, authcore.ErrUserNotFound) {
			err = authcore.ErrSessionNotFound
		}
		h.writeMappedError(w, r, "me", err)
		return
	}
	writeSuccess(w, http.StatusOK, user)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	if err := h.service.Logout(r.Context(), claims.SessionID); err != nil {
		h.writeMappedError(w, r, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	n, err := h.service.LogoutAll(r.Context(), claims.UserID)
	if err != nil {
		h.writeMappedError(w, r, "logout_all", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]int{"sessions_revoked": n})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	sessions, err := h.service.ActiveSessions(r.Context(), claims.UserID)
	if err != nil {
		h.writeMappedError(w, r, "list_sessions", err)
		return
	}
	if sessions == nil {
		sessions = []authcore.SessionInfo{}
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"current": claims.SessionID,
		"items":   sessions,
	})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	n, err := h.service.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, claims.SessionID)
	if err != nil {
		h.writeMappedError(w, r, "change_password", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]int{"sessions_revoked": n})
}

func (h *Handler) claims(w http.ResponseWriter, r *http.Request) (*authcore.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.writeMappedError(w, r, "claims", authcore.ErrTokenInvalid)
		return nil, false
	}
	return claims, true
}
