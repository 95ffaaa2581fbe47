// Package metrics exposes Prometheus counters for HTTP traffic and request
// lifecycle events.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bloodconnect/bloodconnect/internal/platform/dispatch"
)

const namespace = "bloodconnect"

// Collector owns a private registry so that tests can build as many as they
// like.
type Collector struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	events         *prometheus.CounterVec
	dispatchErrors *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_events_total",
			Help:      "Lifecycle events by type, resulting status and urgency.",
		}, []string{"type", "status", "urgency"}),
		dispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_errors_total",
			Help:      "Lifecycle events the dispatcher failed to deliver.",
		}, []string{"type"}),
	}
	c.registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.events,
		c.dispatchErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records every request under its route pattern, not its raw
// path, to keep label cardinality bounded.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			start := time.Now()
			err := next(ec)

			status := ec.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := ec.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ec.Request().Method
			c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Publisher counts each event and forwards it to next.
func (c *Collector) Publisher(next dispatch.Publisher) dispatch.Publisher {
	return &countingPublisher{c: c, next: next}
}

type countingPublisher struct {
	c    *Collector
	next dispatch.Publisher
}

func (p *countingPublisher) Publish(ctx context.Context, evt dispatch.Event) error {
	p.c.events.WithLabelValues(string(evt.Type), evt.Status, evt.Urgency).Inc()
	if err := p.next.Publish(ctx, evt); err != nil {
		p.c.dispatchErrors.WithLabelValues(string(evt.Type)).Inc()
		return err
	}
	return nil
}
