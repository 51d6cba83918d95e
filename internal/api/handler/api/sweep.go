package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/newthinker/tradesim/internal/analytics"
	"github.com/newthinker/tradesim/internal/api/response"
	"github.com/newthinker/tradesim/internal/app"
	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
	"go.uber.org/zap"
)

const (
	jobTypeSweep = "sweep"
	maxSweepJobs = 1000
)

// SweepRequest runs one strategy over every combination in Grid.
type SweepRequest struct {
	Symbol      string           `json:"symbol"`
	Strategy    string           `json:"strategy"`
	Start       string           `json:"start,omitempty"`
	End         string           `json:"end,omitempty"`
	Grid        map[string][]any `json:"grid"`
	Parallelism int              `json:"parallelism,omitempty"`
}

// SweepRow summarises one parameter combination.
type SweepRow struct {
	RunID   string            `json:"run_id"`
	Params  map[string]any    `json:"params"`
	Summary analytics.Summary `json:"summary"`
}

// SweepHandler handles parameter sweep requests.
type SweepHandler struct {
	deps Deps
}

// NewSweepHandler creates a new sweep handler.
func NewSweepHandler(deps Deps) *SweepHandler {
	return &SweepHandler{deps: deps.withDefaults()}
}

// Create validates the grid and starts a sweep job.
func (h *SweepHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrValidation, err))
		return
	}
	if req.Symbol == "" || req.Strategy == "" || len(req.Grid) == 0 {
		response.Error(w, http.StatusBadRequest,
			core.Errorf(core.ErrConfigMissing, "symbol, strategy and grid are required"))
		return
	}
	if !h.deps.Strategies.Has(req.Strategy) {
		response.Fail(w, core.Errorf(core.ErrUnknownStrategy, "%s", req.Strategy))
		return
	}

	start, err := parseDate("start", req.Start)
	if err != nil {
		response.Fail(w, err)
		return
	}
	end, err := parseDate("end", req.End)
	if err != nil {
		response.Fail(w, err)
		return
	}

	keys := make([]string, 0, len(req.Grid))
	for k := range req.Grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	combos := backtest.Grid(keys, req.Grid)
	if len(combos) == 0 || len(combos) > maxSweepJobs {
		response.Fail(w, core.Errorf(core.ErrValidation, "grid expands to %d runs, want 1..%d", len(combos), maxSweepJobs))
		return
	}

	// Reject bad parameter values before any work is queued.
	for _, params := range combos {
		if err := h.deps.validate(req.Strategy, params); err != nil {
			response.Fail(w, err)
			return
		}
	}

	j := h.deps.startJob(jobTypeSweep, func(ctx context.Context) (any, error) {
		results, err := h.deps.Backtester.Sweep(ctx, app.SweepRequest{
			Strategy:    req.Strategy,
			Symbol:      req.Symbol,
			Start:       start,
			End:         endOfDay(end),
			Grid:        req.Grid,
			Parallelism: req.Parallelism,
		})
		if results == nil {
			return nil, err
		}
		if err != nil {
			h.deps.Logger.Warn("sweep finished but was not fully persisted", zap.Error(err))
		}

		rows := make([]SweepRow, len(results))
		for i, res := range results {
			rows[i] = SweepRow{RunID: res.RunID, Params: res.Params, Summary: res.Summary}
		}
		return rows, nil
	})

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
		"runs":   len(combos),
	})
}

// GetStatus returns the status of a sweep job.
func (h *SweepHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJob(w, h.deps.Jobs, r.PathValue("id"))
}
