package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus metrics of the signal bot.
type Metrics struct {
	EvaluationsTotal  *prometheus.CounterVec // labels: market, result
	ActionsTotal      *prometheus.CounterVec // labels: market, action
	StopLossTotal     *prometheus.CounterVec // labels: market
	SuppressedTotal   *prometheus.CounterVec // labels: market, side
	FillsTotal        *prometheus.CounterVec // labels: market, side
	IndicatorFailures *prometheus.CounterVec // labels: indicator
	EvalDuration      *prometheus.HistogramVec
	FeedLatency       *prometheus.HistogramVec

	// Circuit breaker on the Redis state store
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	GatewayClients prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_evaluations_total",
			Help: "Evaluation cycles by outcome (ok, skipped, failed)",
		}, []string{"market", "result"}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_actions_total",
			Help: "Actions emitted by completed evaluations",
		}, []string{"market", "action"}),
		StopLossTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_stop_loss_total",
			Help: "Stop-loss exits triggered",
		}, []string{"market"}),
		SuppressedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_suppressed_orders_total",
			Help: "BUY/SELL decisions that placed no order",
		}, []string{"market", "side"}),
		FillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_fills_total",
			Help: "Confirmed order fills",
		}, []string{"market", "side"}),
		IndicatorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_indicator_failures_total",
			Help: "Indicators skipped because of a range error",
		}, []string{"indicator"}),
		EvalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signalbot_evaluation_duration_seconds",
			Help:    "Duration of a full evaluation cycle",
			Buckets: prometheus.DefBuckets,
		}, []string{"market"}),
		FeedLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signalbot_feed_latency_seconds",
			Help:    "Candle retrieval latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"market"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		GatewayClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_gateway_clients",
			Help: "Connected WebSocket clients",
		}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.ActionsTotal,
		m.StopLossTotal,
		m.SuppressedTotal,
		m.FillsTotal,
		m.IndicatorFailures,
		m.EvalDuration,
		m.FeedLatency,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.GatewayClients,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool                 `json:"redis_enabled"`
	RedisConnected bool                 `json:"redis_connected"`
	JournalOK      bool                 `json:"journal_ok"`
	LastEvaluation map[string]time.Time `json:"last_evaluation"`

	// Liveness probe results
	RedisLatencyMs   float64   `json:"redis_latency_ms"`
	JournalLatencyMs float64   `json:"journal_latency_ms"`
	LastCheckAt      time.Time `json:"last_check_at"`
	StartedAt        time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		JournalOK:      true,
		LastEvaluation: make(map[string]time.Time),
		StartedAt:      time.Now(),
	}
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetJournalOK(v bool) {
	h.mu.Lock()
	h.JournalOK = v
	h.mu.Unlock()
}

// MarkEvaluated records a completed evaluation of market.
func (h *HealthStatus) MarkEvaluated(market string, t time.Time) {
	h.mu.Lock()
	h.LastEvaluation[market] = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the journal database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.JournalOK = err == nil
	h.JournalLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil clients are skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.JournalOK || (h.RedisEnabled && !h.RedisConnected) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	markets := make([]string, 0, len(h.LastEvaluation))
	for m := range h.LastEvaluation {
		markets = append(markets, m)
	}
	sort.Strings(markets)
	evals := make(map[string]string, len(markets))
	for _, m := range markets {
		evals[m] = time.Since(h.LastEvaluation[m]).Round(time.Millisecond).String()
	}

	status := struct {
		Status           string            `json:"status"`
		Uptime           string            `json:"uptime"`
		RedisEnabled     bool              `json:"redis_enabled"`
		RedisConnected   bool              `json:"redis_connected"`
		RedisLatencyMs   float64           `json:"redis_latency_ms"`
		JournalOK        bool              `json:"journal_ok"`
		JournalLatencyMs float64           `json:"journal_latency_ms"`
		EvaluationAge    map[string]string `json:"evaluation_age"`
		LastCheckAt      string            `json:"last_check_at"`
	}{
		Status:           overallStatus,
		Uptime:           time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:     h.RedisEnabled,
		RedisConnected:   h.RedisConnected,
		RedisLatencyMs:   h.RedisLatencyMs,
		JournalOK:        h.JournalOK,
		JournalLatencyMs: h.JournalLatencyMs,
		EvaluationAge:    evals,
		LastCheckAt:      h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	log  *zap.Logger
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server over the given gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus, log *zap.Logger) *Server {
	return &Server{
		log:  log.Named("metrics"),
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           Handler(gatherer, health),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the mux serving /metrics and /healthz.
func Handler(gatherer prometheus.Gatherer, health *HealthStatus) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)
	return mux
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("server listening", zap.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
