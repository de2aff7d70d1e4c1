package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// GatewayConfig is the hot-reloadable tuning for document gateway calls.
type GatewayConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxArtifactBytes int64         `mapstructure:"maxArtifactBytes"`
	Download         DownloadLimit `mapstructure:"download"`
}

// DownloadLimit is a per-user token bucket.
type DownloadLimit struct {
	RatePerMinute int `mapstructure:"ratePerMinute"`
	Burst         int `mapstructure:"burst"`
}

func DefaultGatewayConfig(endpoint GatewayEndpoint) GatewayConfig {
	timeout := endpoint.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return GatewayConfig{
		Timeout:          timeout,
		MaxArtifactBytes: 20 << 20,
		Download: DownloadLimit{
			RatePerMinute: 30,
			Burst:         10,
		},
	}
}

type GatewayConfigHolder struct {
	current atomic.Value // holds GatewayConfig
}

// NewStaticGatewayConfigHolder returns a holder that never reloads.
func NewStaticGatewayConfigHolder(cfg GatewayConfig) *GatewayConfigHolder {
	holder := &GatewayConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewGatewayConfigHolder(cfg Config, log *zap.Logger) (*GatewayConfigHolder, error) {
	log = log.Named("config.gateway")
	v := viper.New()

	v.SetConfigName("gateway")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/billing-portal/config")
	v.AddConfigPath("/etc/billing-portal")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGatewayConfig(cfg.Gateway)
	v.SetDefault("gateway.timeout", defaults.Timeout)
	v.SetDefault("gateway.maxArtifactBytes", defaults.MaxArtifactBytes)
	v.SetDefault("gateway.download.ratePerMinute", defaults.Download.RatePerMinute)
	v.SetDefault("gateway.download.burst", defaults.Download.Burst)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	var loaded GatewayConfig
	if err := v.UnmarshalKey("gateway", &loaded); err != nil {
		return nil, err
	}
	if err := validateGatewayConfig(loaded); err != nil {
		return nil, err
	}

	holder := NewStaticGatewayConfigHolder(loaded)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated GatewayConfig
		if err := v.UnmarshalKey("gateway", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateGatewayConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *GatewayConfigHolder) Get() GatewayConfig {
	return h.current.Load().(GatewayConfig)
}

func validateGatewayConfig(cfg GatewayConfig) error {
	if cfg.Timeout <= 0 {
		return errors.New("gateway.timeout must be positive")
	}
	if cfg.MaxArtifactBytes <= 0 {
		return errors.New("gateway.maxArtifactBytes must be positive")
	}
	if cfg.Download.RatePerMinute <= 0 || cfg.Download.Burst <= 0 {
		return errors.New("gateway.download rate and burst must be positive")
	}
	return nil
}
