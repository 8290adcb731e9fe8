package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"RSIPipeline/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for pipeline runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec // labels: status=ok|partial|failed|skipped
	RunDuration      prometheus.Histogram
	SymbolsTotal     *prometheus.CounterVec // labels: outcome=ok|data_unavailable|computation_error
	AnalyzeDuration  prometheus.Histogram
	RecordsPersisted prometheus.Counter
	PersistFailures  prometheus.Counter
	RecordsPruned    prometheus.Counter
	LastSuccess      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsipipeline_runs_total",
			Help: "Pipeline runs by final status",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsipipeline_run_duration_seconds",
			Help:    "Wall time of a full pipeline run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		SymbolsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsipipeline_symbols_total",
			Help: "Per-symbol analysis outcomes",
		}, []string{"outcome"}),
		AnalyzeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsipipeline_analyze_duration_seconds",
			Help:    "Time to fetch bars and compute RSI for one symbol",
			Buckets: prometheus.DefBuckets,
		}),
		RecordsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsipipeline_records_persisted_total",
			Help: "RSI records written to the store",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsipipeline_persist_failures_total",
			Help: "Batch persist attempts that failed",
		}),
		RecordsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rsipipeline_records_pruned_total",
			Help: "Rows removed by retention cleanup",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsipipeline_last_success_timestamp_seconds",
			Help: "Unix time of the last run that persisted results",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.SymbolsTotal,
		m.AnalyzeDuration,
		m.RecordsPersisted,
		m.PersistFailures,
		m.RecordsPruned,
		m.LastSuccess,
	)
	return m
}

// ObserveSymbol counts one analyzed symbol.
func (m *Metrics) ObserveSymbol(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SymbolsTotal.WithLabelValues(outcome).Inc()
	m.AnalyzeDuration.Observe(d.Seconds())
}

// ObservePersist counts the outcome of one batch persist.
func (m *Metrics) ObservePersist(success bool, inserted int) {
	if m == nil {
		return
	}
	if !success {
		m.PersistFailures.Inc()
		return
	}
	m.RecordsPersisted.Add(float64(inserted))
	m.LastSuccess.SetToCurrentTime()
}

// ObservePruned counts rows removed by retention cleanup.
func (m *Metrics) ObservePruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsPruned.Add(float64(n))
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// Server exposes /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics server serving the collectors in g.
func NewServer(addr string, g prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	log := logger.Component("metrics")
	go func() {
		log.Info().Str("addr", s.addr).Msg("metrics server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
