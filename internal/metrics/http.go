package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the correlation id echoed on every response.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func record(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// route prefers the matched mux pattern so path parameters such as job ids
// do not explode label cardinality.
func route(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.URL.Path
}

// Instrument records request count, latency and in-flight gauges on reg.
func Instrument(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := reg.TrackInFlight()
			defer done()

			began := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)
			reg.ObserveRequest(r.Method, route(r), rec.status, time.Since(began))
		})
	}
}

// AccessLog writes one structured line per request and tags the response
// with a request id, reusing the caller's when present.
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			began := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			logger.Info("api request",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("route", route(r)),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Int("bytes", rec.bytes),
				zap.Duration("elapsed", time.Since(began)),
				zap.String("remote", remoteAddr(r)),
			)
		})
	}
}

func remoteAddr(r *http.Request) string {
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" {
		return r.RemoteAddr
	}
	first, _, _ := strings.Cut(fwd, ",")
	return strings.TrimSpace(first)
}
