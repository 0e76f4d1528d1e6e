package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/coursetree-backend/internal/platform/envutil"
	"github.com/yungbote/coursetree-backend/internal/platform/logger"
)

// Metrics holds every Prometheus collector the service exports. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	oracleCalls   *prometheus.CounterVec
	oracleLatency *prometheus.HistogramVec

	stageDuration  *prometheus.HistogramVec
	fanoutFailures *prometheus.CounterVec
	sessions       *prometheus.CounterVec

	redisUp prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", true)
}

// Current returns the process metrics, or nil before Init or when disabled.
func Current() *Metrics {
	return metricsInst
}

// Init builds the process-wide registry once.
func Init(log *logger.Logger) *Metrics {
	metricsOnce.Do(func() {
		if !Enabled() {
			return
		}
		metricsInst = NewMetrics()
		if log != nil {
			log.Info("Prometheus metrics initialized")
		}
	})
	return metricsInst
}

// NewMetrics builds an independent registry. Tests use it directly.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursetree_api_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coursetree_api_request_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coursetree_api_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursetree_oracle_calls_total",
			Help: "Generation oracle calls by prompt and outcome.",
		}, []string{"prompt", "outcome"}),
		oracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coursetree_oracle_call_seconds",
			Help:    "Generation oracle call latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}, []string{"prompt"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coursetree_stage_seconds",
			Help:    "Workflow stage duration by stage and outcome.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage", "outcome"}),
		fanoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursetree_fanout_parent_failures_total",
			Help: "Parents whose child generation failed after retries, by level.",
		}, []string{"level"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coursetree_sessions_total",
			Help: "Sessions reaching a resting state, by state.",
		}, []string{"state"}),
		redisUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coursetree_redis_up",
			Help: "1 when the last Redis ping succeeded.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.oracleCalls, m.oracleLatency,
		m.stageDuration, m.fanoutFailures, m.sessions,
		m.redisUp,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	code := strconv.Itoa(status)
	m.apiRequests.WithLabelValues(method, route, code).Inc()
	m.apiLatency.WithLabelValues(method, route, code).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveOracleCall(prompt string, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = "unknown"
	}
	m.oracleCalls.WithLabelValues(prompt, outcome).Inc()
	m.oracleLatency.WithLabelValues(prompt).Observe(d.Seconds())
}

func (m *Metrics) ObserveStage(stage string, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, outcome).Observe(seconds)
}

func (m *Metrics) ObserveFanoutFailures(level string, failed int) {
	if m == nil || failed <= 0 {
		return
	}
	m.fanoutFailures.WithLabelValues(level).Add(float64(failed))
}

func (m *Metrics) IncSession(state string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(state).Inc()
}

// StartRedisCollector pings Redis every interval until ctx ends.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := rdb.Ping(pctx).Err()
			cancel()
			if err != nil {
				m.redisUp.Set(0)
				if log != nil {
					log.Debug("Redis ping failed", "error", err)
				}
			} else {
				m.redisUp.Set(1)
			}
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}
