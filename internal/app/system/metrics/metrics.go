// Package metrics exposes Prometheus metrics: entity totals read from the
// database on scrape, plus request and webhook counters.
package metrics

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var entitiesDesc = prometheus.NewDesc(
	"grouphub_entities",
	"Number of stored entities by kind",
	[]string{"kind"},
	nil,
)

// Counter is anything that can report a document count (every store does).
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// EntityCollector counts stored entities on each scrape.
type EntityCollector struct {
	sources map[string]Counter
	timeout time.Duration
	log     *zap.Logger
}

func (c *EntityCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- entitiesDesc
}

func (c *EntityCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	kinds := make([]string, 0, len(c.sources))
	for k := range c.sources {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		n, err := c.sources[kind].Count(ctx)
		if err != nil {
			c.log.Error("failed to collect entity count", zap.String("kind", kind), zap.Error(err))
			continue
		}
		ch <- prometheus.MustNewConstMetric(entitiesDesc, prometheus.GaugeValue, float64(n), kind)
	}
}

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	requests *prometheus.CounterVec
	webhooks *prometheus.CounterVec
}

// New registers the entity collector over sources (keyed by kind, e.g.
// "groups") together with the Go and process collectors.
func New(sources map[string]Counter, timeout time.Duration, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grouphub_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "code"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grouphub_webhook_events_total",
			Help: "Identity-provider webhook events by type and outcome",
		}, []string{"type", "outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.webhooks,
		&EntityCollector{sources: sources, timeout: timeout, log: logger},
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by their chi route pattern, not the raw path,
// so ids in URLs do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

// Webhook records one processed webhook event. A nil receiver is a no-op.
func (m *Metrics) Webhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(eventType, outcome).Inc()
}
