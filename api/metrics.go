package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 每个 Service 一个独立的 registry
type Metrics struct {
	registry     *prometheus.Registry
	gamesStarted prometheus.Counter
	ticks        prometheus.Counter
	gamesOver    prometheus.Counter
	finalLength  prometheus.Histogram
	sessions     prometheus.Gauge
	live         prometheus.Gauge
	watchers     prometheus.Gauge
}

func newMetrics() *Metrics {
	m := &Metrics{
		gamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snake_games_started_total",
			Help: "Total number of sessions created or restored",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snake_ticks_total",
			Help: "Total number of ticks advanced across all sessions",
		}),
		gamesOver: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snake_game_over_total",
			Help: "Total number of games that ended",
		}),
		finalLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "snake_final_length",
			Help:    "Snake length when a game ends",
			Buckets: prometheus.LinearBuckets(3, 5, 12),
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snake_sessions",
			Help: "Current number of registered sessions",
		}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snake_live_sessions",
			Help: "Current number of sessions advanced by the server",
		}),
		watchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snake_watchers",
			Help: "Current number of open websocket frame feeds",
		}),
	}
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.gamesStarted, m.ticks, m.gamesOver, m.finalLength, m.sessions, m.live, m.watchers)
	return m
}

// ended 记录一局结束
func (m *Metrics) ended(length int) {
	m.gamesOver.Inc()
	m.finalLength.Observe(float64(length))
}

func MetricsHandler(svc *Service) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(svc.metrics.registry, promhttp.HandlerOpts{}))
}
