package storeapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_client_requests_total",
			Help: "Total number of requests issued to the message store",
		},
		[]string{"method", "status"},
	)

	storeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_client_request_duration_seconds",
			Help:    "Store request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	storeRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_client_requests_in_flight",
			Help: "Number of store requests currently in flight",
		},
	)
)

type metricsTransport struct {
	next http.RoundTripper
}

// InstrumentTransport wraps a RoundTripper with Prometheus metrics for
// every store call, including byte uploads to one-time URLs.
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &metricsTransport{next: next}
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	storeRequestsInFlight.Inc()
	defer storeRequestsInFlight.Dec()

	resp, err := t.next.RoundTrip(req)

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	storeRequestsTotal.WithLabelValues(req.Method, status).Inc()
	storeRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	return resp, err
}
