package scheduler

import (
	"time"

	"github.com/smallbiznis/royalti/internal/config"
)

// Config controls the ingest worker pool and the recovery sweep.
type Config struct {
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	SweepInterval time.Duration
	StuckAfter    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:       2,
		QueueSize:     256,
		JobTimeout:    15 * time.Minute,
		SweepInterval: time.Minute,
		StuckAfter:    30 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Workers:       cfg.Ingest.Workers,
		QueueSize:     cfg.Ingest.QueueSize,
		JobTimeout:    cfg.Ingest.JobTimeout,
		SweepInterval: cfg.Ingest.SweepInterval,
		StuckAfter:    cfg.Ingest.StuckAfter,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaults.QueueSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaults.SweepInterval
	}
	if c.StuckAfter <= 0 {
		c.StuckAfter = defaults.StuckAfter
	}
	return c
}
