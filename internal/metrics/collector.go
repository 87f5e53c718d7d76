package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/lumen-io/client/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lumen"

// Collector records refresh coordinator activity as prometheus metrics.
// It satisfies session.Observer.
type Collector struct {
	registry *prometheus.Registry

	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	inFlight        prometheus.Gauge
	queued          prometheus.Counter
	released        *prometheus.CounterVec
	staleRetries    prometheus.Counter
	sessionsLost    prometheus.Counter

	waiting atomic.Int64
	waiters prometheus.GaugeFunc
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Token refresh calls by outcome.",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_duration_seconds",
			Help:      "Time spent in the token refresh call.",
			Buckets:   prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_in_flight",
			Help:      "1 while a token refresh is running.",
		}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "waiters_queued_total",
			Help:      "Requests parked behind an in-flight refresh.",
		}),
		released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "waiters_released_total",
			Help:      "Parked requests released, by outcome.",
		}, []string{"outcome"}),
		staleRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "stale_retries_total",
			Help:      "Late 401s resolved by a refresh that had already settled.",
		}),
		sessionsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "lost_total",
			Help:      "Sessions torn down because they could not be refreshed.",
		}),
	}

	c.waiters = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "waiters",
		Help:      "Requests currently parked behind a refresh.",
	}, func() float64 {
		return float64(c.waiting.Load())
	})

	c.registry.MustRegister(
		c.refreshes,
		c.refreshDuration,
		c.inFlight,
		c.queued,
		c.released,
		c.staleRetries,
		c.sessionsLost,
		c.waiters,
	)

	return c
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (c *Collector) RefreshStarted() {
	c.inFlight.Set(1)
}

func (c *Collector) RefreshFinished(err error, elapsed time.Duration) {
	c.inFlight.Set(0)
	c.refreshes.WithLabelValues(outcome(err)).Inc()
	c.refreshDuration.Observe(elapsed.Seconds())
}

func (c *Collector) WaiterQueued(_ *models.RequestDescriptor) {
	c.waiting.Add(1)
	c.queued.Inc()
}

func (c *Collector) WaiterReleased(_ *models.RequestDescriptor, err error) {
	c.waiting.Add(-1)
	c.released.WithLabelValues(outcome(err)).Inc()
}

func (c *Collector) StaleRetry(_ *models.RequestDescriptor) {
	c.staleRetries.Inc()
}

func (c *Collector) SessionLost(_ error) {
	c.sessionsLost.Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
