package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fee-ledger/internal/domain"
	"fee-ledger/internal/transport/auth"
)

type loginResponse struct {
	Token          string `json:"token"`
	ExpiresAt      string `json:"expires_at"`
	Username       string `json:"username"`
	IsAdmin        bool   `json:"is_admin"`
	HasTrial       bool   `json:"has_trial"`
	TrialRemaining string `json:"trial_remaining,omitempty"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "signup", err)
		return
	}
	if req.IsAdmin && !h.allowAdminSignup {
		ErrorForbidden(w, "admin signup is disabled")
		return
	}

	acc, err := h.Accounts.Create(r.Context(), strings.TrimSpace(req.Username), req.Password, req.Email, req.IsAdmin)
	if err != nil {
		writeError(w, "signup", err)
		return
	}

	SuccessCreated(w, "Account created successfully. Your 30-day free trial has started!", acc)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "login", err)
		return
	}

	sess, res, err := h.Sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, "login", err)
		return
	}

	resp := loginResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
		Username:  res.Username,
		IsAdmin:   res.IsAdmin,
		HasTrial:  res.HasTrial,
	}
	if res.HasTrial {
		resp.TrialRemaining = domain.FormatTrialRemaining(res.TrialRemaining)
	}
	Success(w, "Login successful", resp)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if err := h.Sessions.Logout(r.Context(), token); err != nil {
		writeError(w, "logout", err)
		return
	}
	Success(w, "Logged out", nil)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	accounts, err := h.Accounts.List(r.Context(), act)
	if err != nil {
		writeError(w, "listAccounts", err)
		return
	}
	Success(w, "", accounts)
}

func (h *Handler) setAdmin(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}

	var req SetAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "setAdmin", err)
		return
	}

	username := chi.URLParam(r, "username")
	if err := h.Accounts.SetAdmin(r.Context(), act, username, *req.IsAdmin); err != nil {
		writeError(w, "setAdmin", err)
		return
	}

	Success(w, "Account updated", map[string]any{"username": username, "is_admin": *req.IsAdmin})
}
