package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"wheel/internal/auth"
)

type UserStore interface {
	Create(ctx context.Context, email, passwordHash string) (auth.User, error)
	ByEmail(ctx context.Context, email string) (auth.User, error)
}

type AuthHandler struct {
	Users UserStore
	JWT   *auth.JWT
	Log   zerolog.Logger
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	u, err := h.Users.Create(r.Context(), req.Email, hash)
	if errors.Is(err, auth.ErrEmailTaken) {
		writeError(w, http.StatusConflict, auth.ErrEmailTaken.Error())
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("register failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	h.respondToken(w, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	}

	u, err := h.Users.ByEmail(r.Context(), req.Email)
	if errors.Is(err, auth.ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("login lookup failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if !auth.ComparePassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondToken(w, u)
}

func (h *AuthHandler) respondToken(w http.ResponseWriter, u auth.User) {
	token, err := h.JWT.Sign(u.ID, u.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}
