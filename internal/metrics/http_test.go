package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		100: "1xx",
		200: "2xx",
		204: "2xx",
		302: "3xx",
		404: "4xx",
		422: "4xx",
		500: "5xx",
		504: "5xx",
		0:   "1xx",
		999: "5xx",
	}
	for status, want := range tests {
		assert.Equal(t, want, statusClass(status), "status %d", status)
	}
}

func TestInstrument(t *testing.T) {
	reg := NewRegistry()

	var inFlight float64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		inFlight = testutil.ToFloat64(reg.httpInFlight)
		w.WriteHeader(http.StatusNotFound)
	})
	h := Instrument(reg)(mux)

	for _, id := range []string{"a", "b", "c"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/jobs/"+id, nil))
	}

	assert.Equal(t, 1.0, inFlight, "in flight while serving")
	assert.Zero(t, testutil.ToFloat64(reg.httpInFlight), "released after serving")

	assert.Equal(t, 1, testutil.CollectAndCount(reg.httpRequests), "one series per pattern")
	assert.Equal(t, 3.0, testutil.ToFloat64(
		reg.httpRequests.WithLabelValues("GET", "GET /api/v1/jobs/{id}", "4xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(reg.httpLatency))
}

func TestInstrument_UnmatchedPathFallsBack(t *testing.T) {
	reg := NewRegistry()
	h := Instrument(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/raw", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequests.WithLabelValues("POST", "/raw", "2xx")))
}

func TestAccessLog(t *testing.T) {
	tests := []struct {
		name       string
		header     http.Header
		remote     string
		wantRemote string
	}{
		{"direct", nil, "10.0.0.1:54321", "10.0.0.1:54321"},
		{"forwarded", http.Header{"X-Forwarded-For": {"203.0.113.50, 10.0.0.2"}}, "10.0.0.1:54321", "203.0.113.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, logs := observer.New(zap.InfoLevel)
			h := AccessLog(zap.New(obs))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte(`{"job_id":"x"}`))
			}))

			req := httptest.NewRequest("POST", "/api/v1/backtests", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header[k] = v
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.Equal(t, 1, logs.Len())
			fields := logs.All()[0].ContextMap()
			assert.Equal(t, "POST", fields["method"])
			assert.Equal(t, "/api/v1/backtests", fields["path"])
			assert.EqualValues(t, http.StatusAccepted, fields["status"])
			assert.EqualValues(t, len(`{"job_id":"x"}`), fields["bytes"])
			assert.Contains(t, fields, "elapsed")
			assert.Equal(t, tt.wantRemote, fields["remote"])

			id := w.Header().Get(RequestIDHeader)
			assert.NotEmpty(t, id)
			assert.Equal(t, id, fields["request_id"])
		})
	}
}

func TestAccessLog_KeepsCallerRequestID(t *testing.T) {
	obs, logs := observer.New(zap.InfoLevel)
	h := AccessLog(zap.New(obs))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set(RequestIDHeader, "trace-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "trace-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "trace-42", logs.All()[0].ContextMap()["request_id"])
}
