package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wheel/internal/auth"
	"wheel/internal/patterns"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, userID uint64, sourceTable, sourceID, text string) error
}

type Drainer interface {
	ProcessQueue(ctx context.Context, batchSize int) (patterns.DrainResult, error)
}

type PatternReader interface {
	Recent(ctx context.Context, userID uint64, since time.Time, limit int) ([]patterns.Pattern, error)
}

type PatternsHandler struct {
	Queue    Enqueuer
	Drain    Drainer
	Patterns PatternReader
	Log      zerolog.Logger
}

type enqueueReq struct {
	SourceTable string `json:"source_table"`
	SourceID    string `json:"source_id"`
	Content     string `json:"content"`
}

// Enqueue acknowledges as soon as the job is stored. Blank content is
// accepted and dropped.
func (h *PatternsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req enqueueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.SourceTable = strings.TrimSpace(req.SourceTable)
	req.SourceID = strings.TrimSpace(req.SourceID)
	if req.SourceTable == "" || req.SourceID == "" {
		writeError(w, http.StatusBadRequest, "source_table and source_id required")
		return
	}

	if err := h.Queue.Enqueue(r.Context(), uid, req.SourceTable, req.SourceID, req.Content); err != nil {
		h.Log.Error().Err(err).Uint64("user_id", uid).Msg("enqueue failed")
		writeError(w, http.StatusInternalServerError, "failed to queue content")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Process drains one batch. batchSize is clamped by the extractor.
func (h *PatternsHandler) Process(w http.ResponseWriter, r *http.Request) {
	n := patterns.DefaultBatchSize
	if v := strings.TrimSpace(r.URL.Query().Get("batchSize")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid batchSize")
			return
		}
		n = parsed
	}

	res, err := h.Drain.ProcessQueue(r.Context(), n)
	if err != nil {
		h.Log.Error().Err(err).Msg("queue drain failed")
		writeError(w, http.StatusInternalServerError, "queue drain failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
}

const (
	defaultPatternDays = 30
	maxPatternDays     = 365
	patternListLimit   = 200
)

func (h *PatternsHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	days := defaultPatternDays
	if v := strings.TrimSpace(r.URL.Query().Get("days")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPatternDays {
			days = n
		}
	}

	rows, err := h.Patterns.Recent(r.Context(), uid, time.Now().AddDate(0, 0, -days), patternListLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if rows == nil {
		rows = []patterns.Pattern{}
	}
	writeJSON(w, http.StatusOK, rows)
}
