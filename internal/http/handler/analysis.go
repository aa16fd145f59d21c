package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"wheel/internal/analysis"
	"wheel/internal/auth"
)

type BatchRunner interface {
	Run(ctx context.Context, opts analysis.Options) (analysis.Result, error)
	Now() time.Time
}

type AnalysisHandler struct {
	Scheduler BatchRunner
	Log       zerolog.Logger
}

type analysisReq struct {
	Manual bool `json:"manual"`
}

type analysisResp struct {
	Message          string          `json:"message"`
	AnalysisDate     string          `json:"analysisDate"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	Results          analysis.Result `json:"results"`
}

// Run triggers a batch. The cron secret runs the scheduled pass over every
// user. A session must ask for a manual run; non-admins only analyze
// themselves.
func (h *AnalysisHandler) Run(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.CallerFromContext(r.Context())

	var req analysisReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	opts := analysis.Options{Manual: req.Manual}
	if !c.Cron {
		if !req.Manual {
			writeError(w, http.StatusBadRequest, "manual flag required")
			return
		}
		if !c.Session.IsAdmin() {
			uid := c.Session.UserID
			opts.UserID = &uid
		}
	}

	start := time.Now()
	day := h.Scheduler.Now().Format(time.DateOnly)
	res, err := h.Scheduler.Run(r.Context(), opts)
	if err != nil {
		h.Log.Error().Err(err).Bool("manual", opts.Manual).Msg("analysis run failed")
		writeError(w, http.StatusInternalServerError, "analysis failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analysisResp{
		Message:          "analysis completed",
		AnalysisDate:     day,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Results:          res,
	})
}
