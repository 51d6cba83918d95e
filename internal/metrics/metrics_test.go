package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ prometheus.Gatherer = (*Registry)(nil)

func TestNewRegistry_RuntimeCollectors(t *testing.T) {
	mfs, err := NewRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["go_goroutines"], "go collector registered")
}

func TestRegistry_ObserveRequest(t *testing.T) {
	reg := NewRegistry()
	reg.ObserveRequest("POST", "POST /api/v1/sweeps", http.StatusAccepted, 123*time.Millisecond)
	reg.ObserveRequest("POST", "POST /api/v1/sweeps", http.StatusBadRequest, 2*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("POST", "POST /api/v1/sweeps", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("POST", "POST /api/v1/sweeps", "4xx")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "tradesim_http_request_duration_seconds" {
			continue
		}
		hist := mf.GetMetric()[0].GetHistogram()
		assert.EqualValues(t, 2, hist.GetSampleCount())
		assert.InDelta(t, 0.125, hist.GetSampleSum(), 1e-9)
		return
	}
	t.Fatal("latency histogram not gathered")
}

func TestRegistry_TrackInFlight(t *testing.T) {
	reg := NewRegistry()

	first := reg.TrackInFlight()
	second := reg.TrackInFlight()
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.httpInFlight))

	first()
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpInFlight))
	second()
	assert.Zero(t, testutil.ToFloat64(reg.httpInFlight))
}

func TestRegistry_SimulationMetrics(t *testing.T) {
	reg := NewRegistry()

	reg.RecordBacktest("ma_crossover", "completed", 0.2)
	reg.RecordBar("ma_crossover")
	reg.RecordBar("ma_crossover")
	reg.RecordFill("ma_crossover", "buy")
	reg.RecordRejection("ma_crossover", "INSUFFICIENT_FUNDS")
	reg.RecordAlert("dd10", "critical")
	reg.SetJobsActive("backtest", 3)

	tests := []struct {
		name string
		coll prometheus.Collector
		want float64
	}{
		{"backtests", reg.backtestsTotal.WithLabelValues("ma_crossover", "completed"), 1},
		{"bars", reg.barsProcessed.WithLabelValues("ma_crossover"), 2},
		{"fills", reg.fillsTotal.WithLabelValues("ma_crossover", "buy"), 1},
		{"rejections", reg.rejectionsTotal.WithLabelValues("ma_crossover", "INSUFFICIENT_FUNDS"), 1},
		{"alerts", reg.alertsTotal.WithLabelValues("dd10", "critical"), 1},
		{"jobs", reg.jobsActive.WithLabelValues("backtest"), 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, testutil.ToFloat64(tt.coll), tt.name)
	}
	assert.Equal(t, 1, testutil.CollectAndCount(reg.backtestDuration))
}

func TestRegistry_SetRisk(t *testing.T) {
	reg := NewRegistry()
	reg.SetRisk("live", 10500, 0.1, 0.02, 0.5, 0.3)

	assert.Equal(t, 10500.0, testutil.ToFloat64(reg.equity.WithLabelValues("live")))
	assert.Equal(t, 0.1, testutil.ToFloat64(reg.riskDrawdown.WithLabelValues("live")))
	assert.Equal(t, 0.02, testutil.ToFloat64(reg.riskVol.WithLabelValues("live")))
	assert.Equal(t, 0.5, testutil.ToFloat64(reg.riskExposure.WithLabelValues("live")))
	assert.Equal(t, 0.3, testutil.ToFloat64(reg.riskScore.WithLabelValues("live")))
}

func TestRegistry_Handler(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBacktest("noop", "completed", 0.5)

	w := httptest.NewRecorder()
	reg.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `tradesim_backtests_total{status="completed",strategy="noop"} 1`)
}
