package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/newthinker/tradesim/internal/api/job"
	"github.com/newthinker/tradesim/internal/api/response"
	"github.com/newthinker/tradesim/internal/app"
	"github.com/newthinker/tradesim/internal/core"
	"go.uber.org/zap"
)

const jobTypeBacktest = "backtest"

// BacktestRequest is the request body for starting a backtest.
type BacktestRequest struct {
	Symbol   string         `json:"symbol"`
	Strategy string         `json:"strategy"`
	Start    string         `json:"start,omitempty"`
	End      string         `json:"end,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	deps Deps
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(deps Deps) *BacktestHandler {
	return &BacktestHandler{deps: deps.withDefaults()}
}

// Create validates the request and starts a backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrValidation, err))
		return
	}

	// Validate required fields
	if req.Symbol == "" || req.Strategy == "" {
		response.Error(w, http.StatusBadRequest,
			core.Errorf(core.ErrConfigMissing, "symbol and strategy are required"))
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

	if err := h.deps.validate(req.Strategy, req.Params); err != nil {
		response.Fail(w, err)
		return
	}

	j := h.deps.startJob(jobTypeBacktest, func(ctx context.Context) (any, error) {
		res, err := h.deps.Backtester.Backtest(ctx, app.BacktestRequest{
			Strategy: req.Strategy,
			Symbol:   req.Symbol,
			Start:    start,
			End:      endOfDay(end),
			Params:   req.Params,
		})
		if res == nil {
			return nil, err
		}
		if err != nil {
			h.deps.Logger.Warn("backtest finished but was not fully persisted",
				zap.String("run_id", res.RunID), zap.Error(err))
		}
		return res, nil
	})

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// GetStatus returns the status of a backtest job, with its result once complete.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJob(w, h.deps.Jobs, r.PathValue("id"))
}

func writeJob(w http.ResponseWriter, jobs *job.Store, id string) {
	j, err := jobs.Get(id)
	if err != nil {
		response.Fail(w, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"type":     j.Type,
		"status":   j.Status,
		"progress": j.Progress,
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = response.Detail(j.Error)
	}

	response.JSON(w, http.StatusOK, resp)
}

// ListJobs returns every live job without results.
func ListJobs(jobs *job.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := jobs.List()
		for i := range list {
			list[i].Result = nil
		}
		response.JSON(w, http.StatusOK, list)
	}
}
