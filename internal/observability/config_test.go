package observability

import (
	"testing"

	"github.com/smallbiznis/billingportal/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigFallsBackToAppSettings(t *testing.T) {
	t.Setenv("DEPLOYMENT_ENV", "")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "HTTP")

	cfg := LoadConfig(config.Config{AppName: "", Environment: "staging", AppVersion: "1.2.3", OTLPEndpoint: "otel:4318"})

	assert.Equal(t, "billing-portal", cfg.ServiceName)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, "otel:4318", cfg.OtelExporterEndpoint)
	assert.False(t, cfg.Debug())
}

func TestDebugInDevelopment(t *testing.T) {
	assert.True(t, Config{Environment: "development"}.Debug())
	assert.True(t, Config{Environment: "production", LogLevel: "debug"}.Debug())
}

func TestMetricsCanBeDisabledSeparately(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_METRICS_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_RATIO", "7")

	cfg := LoadConfig(config.Config{AppName: "Portal"})

	assert.True(t, cfg.OtelEnabled)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "portal", cfg.ServiceName)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
}
