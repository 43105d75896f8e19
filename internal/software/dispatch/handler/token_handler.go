package handler

import (
	"net/http"
	"strings"
	"time"

	"delivery-dispatch/internal/domain/user"
)

type TokenRequest struct {
	UserID string    `json:"user_id"`
	Role   user.Role `json:"role"`
	Name   string    `json:"name,omitempty"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      user.Role `json:"role"`
}

// handleCreateToken mints tokens for local testing. Mounted only when dev tokens are enabled.
func (handler *DispatchHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req TokenRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	role, err := user.ParseRole(req.Role.String())
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "role must be admin, driver or customer", err)
		return
	}

	tokenString, claims, err := handler.auth.IssueUserToken(req.UserID, role, req.Name)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	handler.logger.Info(ctx, "token_generated", "JWT token generated",
		map[string]any{"user_id": req.UserID, "role": role.String()})

	handler.jsonResponse(ctx, w, http.StatusCreated, TokenResponse{
		Token:     tokenString,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    req.UserID,
		Role:      role,
	})
}
