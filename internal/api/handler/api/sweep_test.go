package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/tradesim/internal/api/job"
	"github.com/newthinker/tradesim/internal/api/response"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/series/seriestest"
)

func TestSweepHandler_Create(t *testing.T) {
	deps := newDeps(t, &mockProvider{bars: seriestest.Bars("AAPL", wave...)})
	handler := NewSweepHandler(deps)

	w := post(t, handler.Create, "/api/v1/sweeps", `{
		"symbol": "AAPL",
		"strategy": "ma_crossover",
		"grid": {"slow_period": [4, 5], "fast_period": [2, 3]},
		"parallelism": 2
	}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["runs"] != float64(4) {
		t.Errorf("expected 4 runs, got %v", data["runs"])
	}

	j := waitJob(t, deps.Jobs, data["job_id"].(string))
	if j.Status != job.StatusComplete {
		t.Fatalf("expected complete, got %s (%v)", j.Status, j.Error)
	}
	rows, ok := j.Result.([]SweepRow)
	if !ok {
		t.Fatalf("unexpected result %T", j.Result)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}

	// Keys are expanded alphabetically with the last key varying fastest.
	want := []map[string]any{
		{"fast_period": float64(2), "slow_period": float64(4)},
		{"fast_period": float64(2), "slow_period": float64(5)},
		{"fast_period": float64(3), "slow_period": float64(4)},
		{"fast_period": float64(3), "slow_period": float64(5)},
	}
	for i, row := range rows {
		if row.RunID == "" {
			t.Errorf("row %d: missing run id", i)
		}
		for k, v := range want[i] {
			if row.Params[k] != v {
				t.Errorf("row %d: %s = %v, want %v", i, k, row.Params[k], v)
			}
		}
	}
	if n := persistedRuns(t, deps); n != 4 {
		t.Errorf("expected 4 persisted runs, got %d", n)
	}
}

func TestSweepHandler_Create_BadRequests(t *testing.T) {
	handler := NewSweepHandler(newDeps(t, &mockProvider{}))

	big := make([]int, 40)
	for i := range big {
		big[i] = i + 1
	}
	bigGrid, _ := json.Marshal(map[string]any{
		"symbol":   "AAPL",
		"strategy": "ma_crossover",
		"grid":     map[string]any{"fast_period": big, "slow_period": big},
	})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing grid", `{"symbol": "AAPL", "strategy": "ma_crossover"}`, core.ErrConfigMissing.Code},
		{"unknown strategy", `{"symbol": "AAPL", "strategy": "nope", "grid": {"x": [1]}}`, core.ErrUnknownStrategy.Code},
		{"empty values", `{"symbol": "AAPL", "strategy": "ma_crossover", "grid": {"fast_period": []}}`, core.ErrValidation.Code},
		{"too many runs", string(bigGrid), core.ErrValidation.Code},
		{"invalid combination", `{"symbol": "AAPL", "strategy": "ma_crossover", "grid": {"fast_period": [2, 9], "slow_period": [5]}}`, core.ErrConfigInvalid.Code},
		{"invalid date", `{"symbol": "AAPL", "strategy": "noop", "end": "yesterday", "grid": {"x": [1]}}`, core.ErrValidation.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, handler.Create, "/api/v1/sweeps", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			var resp response.ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Error.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, resp.Error.Code)
			}
		})
	}
}

func TestSweepHandler_NoData(t *testing.T) {
	deps := newDeps(t, &mockProvider{})
	handler := NewSweepHandler(deps)

	w := post(t, handler.Create, "/api/v1/sweeps", `{"symbol": "AAPL", "strategy": "noop", "grid": {"unused": [1, 2]}}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	j := waitJob(t, deps.Jobs, decodeData(t, w)["job_id"].(string))
	if j.Status != job.StatusFailed || j.Error.Code != core.ErrNoData.Code {
		t.Errorf("expected NO_DATA failure, got %s %v", j.Status, j.Error)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sweeps/{id}", handler.GetStatus)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/sweeps/"+j.ID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
