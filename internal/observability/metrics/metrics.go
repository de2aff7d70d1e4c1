package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultMeterName = "billing-portal"
	exportInterval   = 10 * time.Second
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics holds the portal's OTel counters. A nil *Metrics records nothing.
type Metrics struct {
	documentAccess   metric.Int64Counter
	gatewayRequests  metric.Int64Counter
	accessLogDropped metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider registers the global meter provider. Disabled metrics get a noop
// provider so instruments can still be created.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := exporterFor(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.StopHook(func(ctx context.Context) error {
			log.Info("meter provider stopping")
			return provider.Shutdown(ctx)
		}))
	}
	log.Info("meter provider ready",
		zap.String("protocol", cfg.ExporterProtocol),
		zap.String("endpoint", cfg.ExporterEndpoint),
	)
	return provider, nil
}

// New creates the portal counters on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = defaultMeterName
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.documentAccess, "portal_document_access_total", "Mediated document events by access type."},
		{&m.gatewayRequests, "portal_gateway_requests_total", "Outbound document gateway calls by operation and outcome."},
		{&m.accessLogDropped, "portal_access_log_dropped_total", "Access events that never reached the store."},
		{&m.rateLimitDenied, "portal_rate_limit_denied_total", "Requests rejected by the download limiter."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
		*c.target = counter
	}
	return m, nil
}

// RecordDocumentAccess counts view, download_pdf and download_xml events.
func (m *Metrics) RecordDocumentAccess(ctx context.Context, accessType string) {
	if m == nil {
		return
	}
	add(ctx, m.documentAccess, attribute.String("access_type", strings.TrimSpace(accessType)))
}

// RecordGatewayRequest counts outbound gateway calls.
func (m *Metrics) RecordGatewayRequest(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	add(ctx, m.gatewayRequests,
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
}

func (m *Metrics) RecordAccessLogDropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	add(ctx, m.accessLogDropped, attribute.String("reason", strings.TrimSpace(reason)))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	add(ctx, m.rateLimitDenied,
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
}

func add(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func exporterFor(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch p := strings.ToLower(strings.TrimSpace(protocol)); p {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", p)
	}
}

// Identity values (user ids, customer refs, document ids) never become labels.
var allowedLabelKeys = map[attribute.Key]bool{
	"access_type": true,
	"operation":   true,
	"outcome":     true,
	"endpoint":    true,
	"status_code": true,
	"reason":      true,
}

// FilterAttributes keeps only low-cardinality label keys.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0:0]
	for _, attr := range attrs {
		if allowedLabelKeys[attr.Key] {
			out = append(out, attr)
		}
	}
	return out
}
