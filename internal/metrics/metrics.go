// Package metrics exposes the simulator's prometheus collectors. Every
// method is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketsim"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ticks            *prometheus.CounterVec
	tickDuration     *prometheus.HistogramVec
	tickErrors       *prometheus.CounterVec
	orders           *prometheus.CounterVec
	transactions     prometheus.Counter
	tradedVolume     prometheus.Counter
	newsEvents       prometheus.Counter
	persistFailures  *prometheus.CounterVec
	persistDropped   *prometheus.CounterVec
	persistQueue     prometheus.Gauge
	broadcastDropped prometheus.Counter
	streamClients    prometheus.Gauge
	sentiment        prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduled ticks run, by kind.",
		}, []string{"kind"}),
		tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in a scheduled tick, by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"kind"}),
		tickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_errors_total",
			Help:      "Per-symbol tick failures, by kind.",
		}, []string{"kind"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order intake, by result.",
		}, []string{"result"}),
		transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions produced by the matcher.",
		}),
		tradedVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_quantity_total",
			Help:      "Shares exchanged across all transactions.",
		}),
		newsEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "news_events_total",
			Help:      "News events applied to the market.",
		}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Persistence operations that failed after retries, by operation.",
		}, []string{"op"}),
		persistDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_dropped_total",
			Help:      "Persistence operations dropped because the queue was full, by operation.",
		}, []string{"op"}),
		persistQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "persist_queue_depth",
			Help:      "Persistence operations waiting in the queue.",
		}),
		broadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Messages dropped because a subscriber was too slow.",
		}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Connected websocket clients.",
		}),
		sentiment: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_sentiment",
			Help:      "Current market sentiment in [-1, 1].",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks, m.tickDuration, m.tickErrors, m.orders, m.transactions,
		m.tradedVolume, m.newsEvents, m.persistFailures, m.persistDropped,
		m.persistQueue, m.broadcastDropped, m.streamClients, m.sentiment,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTick(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(kind).Inc()
	m.tickDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) TickError(kind string) {
	if m == nil {
		return
	}
	m.tickErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Order(result string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(result).Inc()
}

func (m *Metrics) Transaction(qty int64) {
	if m == nil {
		return
	}
	m.transactions.Inc()
	m.tradedVolume.Add(float64(qty))
}

func (m *Metrics) News() {
	if m == nil {
		return
	}
	m.newsEvents.Inc()
}

func (m *Metrics) PersistFailure(op string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) PersistDropped(op string) {
	if m == nil {
		return
	}
	m.persistDropped.WithLabelValues(op).Inc()
}

func (m *Metrics) PersistQueueDepth(n int) {
	if m == nil {
		return
	}
	m.persistQueue.Set(float64(n))
}

func (m *Metrics) BroadcastDropped() {
	if m == nil {
		return
	}
	m.broadcastDropped.Inc()
}

func (m *Metrics) StreamClients(n int) {
	if m == nil {
		return
	}
	m.streamClients.Set(float64(n))
}

func (m *Metrics) Sentiment(s float64) {
	if m == nil {
		return
	}
	m.sentiment.Set(s)
}
