package service

import (
	"time"

	"github.com/smallbiznis/billingportal/internal/config"
)

// Config controls the asynchronous access log queue.
type Config struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:    1024,
		Workers:      2,
		WriteTimeout: 3 * time.Second,
	}
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		QueueSize:    cfg.AccessLog.QueueSize,
		Workers:      cfg.AccessLog.Workers,
		WriteTimeout: cfg.AccessLog.WriteTimeout,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = defaults.QueueSize
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	return c
}
