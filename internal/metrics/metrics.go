package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	// Simulation metrics
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	barsProcessed    *prometheus.CounterVec
	fillsTotal       *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	jobsActive       *prometheus.GaugeVec

	// Risk metrics
	alertsTotal  *prometheus.CounterVec
	riskDrawdown *prometheus.GaugeVec
	riskVol      *prometheus.GaugeVec
	riskExposure *prometheus.GaugeVec
	riskScore    *prometheus.GaugeVec
	equity       *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{Registry: reg}

	r.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_http_requests_total",
			Help: "API requests by route and status class",
		},
		[]string{"method", "route", "class"},
	)
	r.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradesim_http_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	r.httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradesim_http_requests_in_flight",
			Help: "API requests currently being served",
		},
	)
	reg.MustRegister(r.httpRequests, r.httpLatency, r.httpInFlight)

	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_backtests_total",
			Help: "Total number of backtest runs",
		},
		[]string{"strategy", "status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradesim_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
	r.barsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_bars_processed_total",
			Help: "Total number of bars simulated",
		},
		[]string{"strategy"},
	)
	r.fillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_fills_total",
			Help: "Total number of executed fills",
		},
		[]string{"strategy", "side"},
	)
	r.rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_rejections_total",
			Help: "Total number of rejected trade intents",
		},
		[]string{"strategy", "code"},
	)
	r.jobsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradesim_jobs_active",
			Help: "Number of active jobs",
		},
		[]string{"type"},
	)
	r.alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_risk_alerts_total",
			Help: "Total number of risk alerts fired",
		},
		[]string{"rule", "severity"},
	)

	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, []string{"portfolio"})
	}
	r.riskDrawdown = gauge("tradesim_risk_drawdown", "Current drawdown from peak equity")
	r.riskVol = gauge("tradesim_risk_volatility", "Trailing return volatility")
	r.riskExposure = gauge("tradesim_risk_exposure", "Gross exposure over equity")
	r.riskScore = gauge("tradesim_risk_score", "Composite risk score in [0,1]")
	r.equity = gauge("tradesim_equity", "Marked-to-market equity")

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.barsProcessed)
	reg.MustRegister(r.fillsTotal)
	reg.MustRegister(r.rejectionsTotal)
	reg.MustRegister(r.jobsActive)
	reg.MustRegister(r.alertsTotal)
	reg.MustRegister(r.riskDrawdown)
	reg.MustRegister(r.riskVol)
	reg.MustRegister(r.riskExposure)
	reg.MustRegister(r.riskScore)
	reg.MustRegister(r.equity)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served API request.
func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	r.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// TrackInFlight marks a request as in flight until the returned func is called.
func (r *Registry) TrackInFlight() (done func()) {
	r.httpInFlight.Inc()
	return r.httpInFlight.Dec
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(strategy, status string, duration float64) {
	r.backtestsTotal.WithLabelValues(strategy, status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordBar records one simulated bar.
func (r *Registry) RecordBar(strategy string) {
	r.barsProcessed.WithLabelValues(strategy).Inc()
}

// RecordFill records an executed fill.
func (r *Registry) RecordFill(strategy, side string) {
	r.fillsTotal.WithLabelValues(strategy, side).Inc()
}

// RecordRejection records a rejected intent by error code.
func (r *Registry) RecordRejection(strategy, code string) {
	r.rejectionsTotal.WithLabelValues(strategy, code).Inc()
}

// RecordAlert records a fired risk alert.
func (r *Registry) RecordAlert(rule, severity string) {
	r.alertsTotal.WithLabelValues(rule, severity).Inc()
}

// SetRisk publishes the latest risk metrics of a portfolio.
func (r *Registry) SetRisk(portfolio string, equity, drawdown, volatility, exposure, score float64) {
	r.equity.WithLabelValues(portfolio).Set(equity)
	r.riskDrawdown.WithLabelValues(portfolio).Set(drawdown)
	r.riskVol.WithLabelValues(portfolio).Set(volatility)
	r.riskExposure.WithLabelValues(portfolio).Set(exposure)
	r.riskScore.WithLabelValues(portfolio).Set(score)
}

// SetJobsActive sets the number of active jobs of a type.
func (r *Registry) SetJobsActive(jobType string, count int) {
	r.jobsActive.WithLabelValues(jobType).Set(float64(count))
}

// statusClass buckets a status code as "2xx", "4xx" and so on.
func statusClass(status int) string {
	class := min(max(status/100, 1), 5)
	return strconv.Itoa(class) + "xx"
}
