package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wheel/internal/auth"
	"wheel/internal/localtime"
	"wheel/internal/review"
)

type ReviewService interface {
	Create(ctx context.Context, userID uint64, in review.CreateInput) (review.Review, error)
	List(ctx context.Context, userID uint64, tag string, limit int) ([]review.Review, error)
}

type ReviewsHandler struct {
	Svc      ReviewService
	Profiles ProfileStore
	Log      zerolog.Logger
	now      func() time.Time
}

type createReviewReq struct {
	ReviewDate string `json:"review_date"` // YYYY-MM-DD, defaults to the user's local today
	Wins       string `json:"wins"`
	Struggles  string `json:"struggles"`
	Notes      string `json:"notes"`
}

func (h *ReviewsHandler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *ReviewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createReviewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	var day time.Time
	if v := strings.TrimSpace(req.ReviewDate); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid review_date (YYYY-MM-DD)")
			return
		}
		day = t
	} else {
		offset := 0
		if p, err := h.Profiles.Get(r.Context(), uid); err == nil {
			offset = p.TimezoneOffsetMinutes
		}
		lt := localtime.Local(h.clock(), offset)
		day = time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
	}

	rv, err := h.Svc.Create(r.Context(), uid, review.CreateInput{
		ReviewDate: day,
		Wins:       req.Wins,
		Struggles:  req.Struggles,
		Notes:      req.Notes,
	})
	if err != nil {
		if errors.Is(err, review.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "review text required")
			return
		}
		h.Log.Error().Err(err).Uint64("user_id", uid).Msg("create review failed")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (h *ReviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	limit := review.DefaultListLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := h.Svc.List(r.Context(), uid, r.URL.Query().Get("tag"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if rows == nil {
		rows = []review.Review{}
	}
	writeJSON(w, http.StatusOK, rows)
}
