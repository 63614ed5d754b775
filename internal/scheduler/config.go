package scheduler

import (
	"time"

	"github.com/smallbiznis/garageflow/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval         time.Duration
	JobTimeout          time.Duration
	LockTTL             time.Duration
	MaxInvoiceBatchSize int
	MaxLedgerBatchSize  int
	MaxLowStockItems    int
	EnabledJobs         []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:         time.Minute,
		JobTimeout:          30 * time.Second,
		LockTTL:             2 * time.Minute,
		MaxInvoiceBatchSize: 100,
		MaxLedgerBatchSize:  100,
		MaxLowStockItems:    200,
	}
}

// ProvideConfig derives scheduler settings from the application config.
func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	if cfg.Scheduler.Interval > 0 {
		c.RunInterval = cfg.Scheduler.Interval
	}
	return c
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.MaxInvoiceBatchSize <= 0 {
		c.MaxInvoiceBatchSize = defaults.MaxInvoiceBatchSize
	}
	if c.MaxLedgerBatchSize <= 0 {
		c.MaxLedgerBatchSize = defaults.MaxLedgerBatchSize
	}
	if c.MaxLowStockItems <= 0 {
		c.MaxLowStockItems = defaults.MaxLowStockItems
	}
	return c
}
