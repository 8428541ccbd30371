package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics - коллекторы Prometheus сервиса.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	AttachmentUploads *prometheus.CounterVec
	OrdersExpired     prometheus.Counter
	InboxCache        *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry регистрирует синглтон в глобальном реестре Prometheus.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = New(namespace, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	})
	return metricsInstance
}

// NewIsolated - метрики в собственном реестре, для тестов.
func NewIsolated(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	return New(namespace, reg, reg)
}

func New(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		AttachmentUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachment_uploads_total",
			Help:      "Attachment uploads by outcome.",
		}, []string{"outcome"}),
		OrdersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_expired_total",
			Help:      "Orders moved to EXPIRED by the sweep.",
		}),
		InboxCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_cache_total",
			Help:      "Inbox cache lookups by result.",
		}, []string{"result"}),
		gatherer: gatherer,
	}
	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.AttachmentUploads,
		m.OrdersExpired,
		m.InboxCache,
	)
	return m
}

// Handler отдаёт /metrics для реестра этих метрик.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
