package metrics

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	GatewayOutcomeOK          = "ok"
	GatewayOutcomeNotFound    = "not_found"
	GatewayOutcomeUnavailable = "unavailable"
)

// PortalMetrics holds the Prometheus collectors scraped from /metrics.
type PortalMetrics struct {
	gatewayDuration *prometheus.HistogramVec
	artifactBytes   *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
	accessLogWrites *prometheus.CounterVec
}

var (
	portalMetricsOnce sync.Once
	portalMetrics     *PortalMetrics
)

// Portal returns the process-wide collectors, registering them on first use.
func Portal() *PortalMetrics {
	return PortalWithConfig(Config{})
}

func PortalWithConfig(cfg Config) *PortalMetrics {
	portalMetricsOnce.Do(func() {
		portalMetrics = newPortalMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return portalMetrics
}

func newPortalMetrics(registerer prometheus.Registerer, cfg Config) *PortalMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "billing-portal"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &PortalMetrics{
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "portal_gateway_request_duration_seconds",
			Help:        "Document gateway call latency by operation and outcome.",
			Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		}, []string{"operation", "outcome"}),
		artifactBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "portal_artifact_bytes",
			Help:        "Size of artifacts relayed to customers.",
			Buckets:     prometheus.ExponentialBuckets(1024, 4, 8),
			ConstLabels: constLabels,
		}, []string{"format"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "portal_access_log_queue_depth",
			Help:        "Access events waiting to be persisted.",
			ConstLabels: constLabels,
		}),
		accessLogWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "portal_access_log_writes_total",
			Help:        "Access log persistence attempts by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{m.gatewayDuration, m.artifactBytes, m.queueDepth, m.accessLogWrites} {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
	return m
}

func (m *PortalMetrics) ObserveGatewayRequest(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

func (m *PortalMetrics) ObserveArtifactBytes(format string, size int) {
	if m == nil {
		return
	}
	m.artifactBytes.WithLabelValues(format).Observe(float64(size))
}

func (m *PortalMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// IncAccessLogWrite records "ok", "failed" or "dropped".
func (m *PortalMetrics) IncAccessLogWrite(result string) {
	if m == nil {
		return
	}
	m.accessLogWrites.WithLabelValues(result).Inc()
}
