package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/vecsearch"
)

// PrometheusCollector implements vecsearch.MetricsCollector for one
// collection. Metrics carry a constant "collection" label.
type PrometheusCollector struct {
	opLatency   *prometheus.HistogramVec
	addedTexts  prometheus.Counter
	failedTexts prometheus.Counter
	deletedDocs prometheus.Counter
}

var _ vecsearch.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the collector of collection and registers
// it with reg.
func NewPrometheusCollector(reg prometheus.Registerer, collection string) (*PrometheusCollector, error) {
	labels := prometheus.Labels{"collection": collection}

	c := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "vecsearch_operation_latency_seconds",
			Help:        "Latency of searcher operations",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"op", "status"}),
		addedTexts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vecsearch_texts_added_total",
			Help:        "Text chunks added to the index",
			ConstLabels: labels,
		}),
		failedTexts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vecsearch_texts_failed_total",
			Help:        "Text chunks skipped because embedding or indexing failed",
			ConstLabels: labels,
		}),
		deletedDocs: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vecsearch_documents_deleted_total",
			Help:        "Documents deleted",
			ConstLabels: labels,
		}),
	}

	for _, m := range []prometheus.Collector{c.opLatency, c.addedTexts, c.failedTexts, c.deletedDocs} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordAdd implements vecsearch.MetricsCollector.
func (c *PrometheusCollector) RecordAdd(d time.Duration, err error) {
	c.opLatency.WithLabelValues("add", status(err)).Observe(d.Seconds())
	if err != nil {
		c.failedTexts.Inc()
		return
	}
	c.addedTexts.Inc()
}

// RecordBatchAdd implements vecsearch.MetricsCollector.
func (c *PrometheusCollector) RecordBatchAdd(count, failed int, d time.Duration) {
	c.opLatency.WithLabelValues("batch_add", "success").Observe(d.Seconds())
	c.addedTexts.Add(float64(count - failed))
	c.failedTexts.Add(float64(failed))
}

// RecordSearch implements vecsearch.MetricsCollector.
func (c *PrometheusCollector) RecordSearch(_ int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("search", status(err)).Observe(d.Seconds())
}

// RecordDelete implements vecsearch.MetricsCollector.
func (c *PrometheusCollector) RecordDelete(count int) {
	c.deletedDocs.Add(float64(count))
}

// RecordStore implements vecsearch.MetricsCollector.
func (c *PrometheusCollector) RecordStore(d time.Duration, err error) {
	c.opLatency.WithLabelValues("store", status(err)).Observe(d.Seconds())
}

// httpMetrics counts requests by route pattern and status code.
type httpMetrics struct {
	requests *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) (*httpMetrics, error) {
	m := &httpMetrics{
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vecsearch_http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	if err := reg.Register(m.requests); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		m.requests.WithLabelValues(route, strconv.Itoa(code)).Observe(time.Since(start).Seconds())
	})
}
