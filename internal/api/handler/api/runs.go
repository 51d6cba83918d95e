package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/newthinker/tradesim/internal/api/response"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/journal"
)

// RunReader reads journaled runs.
type RunReader interface {
	ListRuns(ctx context.Context, strategy string, limit int) ([]journal.Run, error)
	GetRun(ctx context.Context, runID string) (journal.Run, error)
	Fills(ctx context.Context, runID string) ([]core.Fill, error)
	Alerts(ctx context.Context, runID string) ([]core.RiskAlert, error)
}

// RunHandler serves the run journal.
type RunHandler struct {
	runs RunReader
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runs RunReader) *RunHandler {
	return &RunHandler{runs: runs}
}

// List returns runs newest first. Query: strategy, limit (default 50).
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.Fail(w, core.Errorf(core.ErrValidation, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), r.URL.Query().Get("strategy"), limit)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if runs == nil {
		runs = []journal.Run{}
	}
	response.JSON(w, http.StatusOK, runs)
}

// Get returns one run with its fills and alerts.
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	fills, err := h.runs.Fills(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	alerts, err := h.runs.Alerts(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"run":    run,
		"fills":  fills,
		"alerts": alerts,
	})
}
