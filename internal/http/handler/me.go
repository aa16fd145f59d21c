package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"wheel/internal/auth"
	"wheel/internal/profile"
)

type ProfileStore interface {
	Get(ctx context.Context, userID uint64) (profile.UserProfile, error)
	SetTimezoneOffset(ctx context.Context, userID uint64, minutes int) error
}

type MeHandler struct {
	Profiles ProfileStore
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	s, _ := auth.SessionFromContext(r.Context())

	out := map[string]any{
		"user_id": s.UserID,
		"role":    s.Role,
		"profile": nil,
	}
	p, err := h.Profiles.Get(r.Context(), s.UserID)
	switch {
	case err == nil:
		out["profile"] = p
	case !errors.Is(err, profile.ErrNotFound):
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type updateProfileReq struct {
	TimezoneOffsetMinutes *int `json:"timezone_offset_minutes"`
}

func (h *MeHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req updateProfileReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.TimezoneOffsetMinutes == nil || !profile.ValidOffset(*req.TimezoneOffsetMinutes) {
		writeError(w, http.StatusBadRequest, "timezone_offset_minutes must be between -720 and 840")
		return
	}

	if err := h.Profiles.SetTimezoneOffset(r.Context(), uid, *req.TimezoneOffsetMinutes); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	p, err := h.Profiles.Get(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
