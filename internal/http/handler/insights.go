package handler

import (
	"context"
	"net/http"

	"wheel/internal/analysis"
	"wheel/internal/auth"
)

type InsightReader interface {
	RecentInsights(ctx context.Context, userID uint64, limit int) ([]analysis.Insight, error)
	RecentDigests(ctx context.Context, userID uint64, limit int) ([]analysis.DigestPrompt, error)
}

type InsightsHandler struct {
	Insights InsightReader
}

const (
	insightListLimit = 50
	digestListLimit  = 8
)

func (h *InsightsHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	ins, err := h.Insights.RecentInsights(r.Context(), uid, insightListLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	dig, err := h.Insights.RecentDigests(r.Context(), uid, digestListLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if ins == nil {
		ins = []analysis.Insight{}
	}
	if dig == nil {
		dig = []analysis.DigestPrompt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": ins, "digests": dig})
}
