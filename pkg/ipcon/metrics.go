package ipcon

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests          *prometheus.CounterVec
	requestDuration   prometheus.Histogram
	received          *prometheus.CounterVec
	dropped           *prometheus.CounterVec
	connects          *prometheus.CounterVec
	disconnects       *prometheus.CounterVec
	reconnectFailures prometheus.Counter
	queueDepth        prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tfp_requests_total",
			Help: "Device requests by result.",
		}, []string{"result"}),
		requestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tfp_request_duration_seconds",
			Help:    "Round trip time of correlated requests.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		received: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tfp_packets_received_total",
			Help: "Packets read from the socket by kind.",
		}, []string{"kind"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tfp_packets_dropped_total",
			Help: "Packets discarded before dispatch by reason.",
		}, []string{"reason"}),
		connects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tfp_connects_total",
			Help: "Established sessions by reason.",
		}, []string{"reason"}),
		disconnects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tfp_disconnects_total",
			Help: "Closed sessions by reason.",
		}, []string{"reason"}),
		reconnectFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "tfp_reconnect_failures_total",
			Help: "Failed auto-reconnect attempts.",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "tfp_callback_queue_depth",
			Help: "Items waiting for the dispatcher.",
		}),
	}
}

func (m *metrics) setQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

func (m *metrics) observeRequest(err error, rtt time.Duration) {
	m.requests.WithLabelValues(requestResult(err)).Inc()
	if rtt > 0 {
		m.requestDuration.Observe(rtt.Seconds())
	}
}

func requestResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrNotSupported):
		return "not_supported"
	case errors.Is(err, ErrUnknownErrorCode):
		return "unknown_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
