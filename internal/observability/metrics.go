package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geordon",
			Subsystem: "wire",
			Name:      "frames_total",
			Help:      "Frames exchanged with the controller by direction and message kind.",
		},
		[]string{"direction", "kind"},
	)
	decodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "geordon",
			Subsystem: "wire",
			Name:      "decode_failures_total",
			Help:      "Frames discarded because the body did not decode.",
		},
	)
	protocolAnomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geordon",
			Subsystem: "dispatch",
			Name:      "protocol_anomalies_total",
			Help:      "Well-formed messages that arrived out of context.",
		},
		[]string{"kind"},
	)
	operatorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geordon",
			Subsystem: "dispatch",
			Name:      "operator_errors_total",
			Help:      "Rejected operator command lines.",
		},
		[]string{"reason"},
	)
	rowFetchResends = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "geordon",
			Subsystem: "row_fetch",
			Name:      "resends_total",
			Help:      "Half-row requests resent after the retry interval elapsed.",
		},
	)
	rowFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "geordon",
			Subsystem: "row_fetch",
			Name:      "duration_seconds",
			Help:      "Time from rows command to final half-row.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)
	pingRTT = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "geordon",
			Subsystem: "ping",
			Name:      "rtt_seconds",
			Help:      "Round-trip time of GDReqPing/GDPing probes.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	telemetryDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "geordon",
			Subsystem: "telemetry",
			Name:      "dropped_total",
			Help:      "State events dropped because the fan-out buffer was full.",
		},
	)
	telemetryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geordon",
			Subsystem: "telemetry",
			Name:      "delivery_failures_total",
			Help:      "State events a sink failed to deliver.",
		},
		[]string{"sink"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geordon",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "geordon",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesTotal,
			decodeFailures,
			protocolAnomalies,
			operatorErrors,
			rowFetchResends,
			rowFetchDuration,
			pingRTT,
			telemetryDropped,
			telemetryFailures,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordFrame(direction, kind string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(direction, kind).Inc()
}

func RecordDecodeFailure() {
	RegisterMetrics()
	decodeFailures.Inc()
}

func RecordAnomaly(kind string) {
	RegisterMetrics()
	protocolAnomalies.WithLabelValues(kind).Inc()
}

func RecordOperatorError(reason string) {
	RegisterMetrics()
	operatorErrors.WithLabelValues(reason).Inc()
}

func RecordRowFetchResend() {
	RegisterMetrics()
	rowFetchResends.Inc()
}

func RecordRowFetchComplete(elapsed time.Duration) {
	RegisterMetrics()
	rowFetchDuration.Observe(elapsed.Seconds())
}

func RecordPingRTT(rtt time.Duration) {
	RegisterMetrics()
	pingRTT.Observe(rtt.Seconds())
}

func RecordTelemetryDropped() {
	RegisterMetrics()
	telemetryDropped.Inc()
}

func RecordTelemetryFailure(sink string) {
	RegisterMetrics()
	telemetryFailures.WithLabelValues(sink).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
