package transport

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the request-level Prometheus collectors for an instrumented transport.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec   // requests by method and status code ("transport" for failures)
	RequestDuration *prometheus.HistogramVec // exchange latency by method
	BytesRead       prometheus.Counter       // response body bytes consumed
	BytesWritten    prometheus.Counter       // request body bytes sent
}

// NewMetrics registers and returns the transport collectors. A nil registerer creates unregistered
// collectors, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "objstore_requests_total",
				Help: "Total number of object storage API requests",
			},
			[]string{"method", "code"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "objstore_request_duration_seconds",
				Help:    "Latency of object storage API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "objstore_bytes_read_total",
				Help: "Total number of response body bytes read from object storage",
			},
		),
		BytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "objstore_bytes_written_total",
				Help: "Total number of request body bytes written to object storage",
			},
		),
	}
}

// Instrument wraps next so every exchange is counted and timed. A nil next uses http.DefaultTransport.
func (m *Metrics) Instrument(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &instrumentedRoundTripper{next: next, metrics: m}
}

type instrumentedRoundTripper struct {
	next    http.RoundTripper
	metrics *Metrics
}

func (rt *instrumentedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	rt.metrics.RequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	if req.ContentLength > 0 {
		rt.metrics.BytesWritten.Add(float64(req.ContentLength))
	}

	if err != nil {
		rt.metrics.RequestsTotal.WithLabelValues(req.Method, "transport").Inc()
		return nil, err
	}

	rt.metrics.RequestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.Body != nil {
		resp.Body = &countingReadCloser{rc: resp.Body, counter: rt.metrics.BytesRead}
	}
	return resp, nil
}

type countingReadCloser struct {
	rc      io.ReadCloser
	counter prometheus.Counter
}

func (c *countingReadCloser) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	if n > 0 {
		c.counter.Add(float64(n))
	}
	return n, err
}

func (c *countingReadCloser) Close() error {
	return c.rc.Close()
}
