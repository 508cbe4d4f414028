package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReportSchema lists the canonical columns a report type must carry and
// source header aliases that map onto canonical names.
type ReportSchema struct {
	Required []string          `mapstructure:"required"`
	Aliases  map[string]string `mapstructure:"aliases"`
}

// IngestionConfig holds the hot-reloadable ingestion rules.
type IngestionConfig struct {
	Reports             map[string]ReportSchema `mapstructure:"reports"`
	MinimumPayoutAmount string                  `mapstructure:"minimum_payout_amount"`
	DefaultCurrency     string                  `mapstructure:"default_currency"`
	InsertBatchSize     int                     `mapstructure:"insert_batch_size"`
}

func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		Reports: map[string]ReportSchema{
			"analytics": {
				Required: []string{"accountId", "isrc", "platform", "units"},
				Aliases:  map[string]string{"store": "platform", "quantity": "units", "territory": "country"},
			},
			"royalty": {
				Required: []string{"accountId", "isrc", "platform", "royalty"},
				Aliases:  map[string]string{"store": "platform", "quantity": "units", "territory": "country", "netRoyalty": "royalty"},
			},
			"bonus_royalty": {
				Required: []string{"accountId", "isrc", "platform", "bonusRoyalty"},
				Aliases:  map[string]string{"store": "platform", "quantity": "units", "territory": "country", "bonus": "bonusRoyalty"},
			},
			"mcn": {
				Required: []string{"accountId", "channelId", "revenue"},
				Aliases:  map[string]string{"revenueUsd": "revenue", "rate": "conversionRate", "payoutLocal": "payout"},
			},
		},
		MinimumPayoutAmount: "100",
		DefaultCurrency:     "USD",
		InsertBatchSize:     500,
	}
}

// MinimumPayout returns the configured minimum payout amount.
func (c IngestionConfig) MinimumPayout() decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(c.MinimumPayoutAmount))
	if err != nil {
		return decimal.NewFromInt(100)
	}
	return v
}

// Schema returns the column rules for a report type.
func (c IngestionConfig) Schema(reportType string) (ReportSchema, bool) {
	s, ok := c.Reports[reportType]
	return s, ok
}

func (c IngestionConfig) withDefaults() IngestionConfig {
	defaults := DefaultIngestionConfig()
	if c.Reports == nil {
		c.Reports = map[string]ReportSchema{}
	}
	for name, schema := range defaults.Reports {
		current, ok := c.Reports[name]
		if !ok {
			c.Reports[name] = schema
			continue
		}
		if len(current.Required) == 0 {
			current.Required = schema.Required
		}
		if current.Aliases == nil {
			current.Aliases = schema.Aliases
		}
		c.Reports[name] = current
	}
	if strings.TrimSpace(c.MinimumPayoutAmount) == "" {
		c.MinimumPayoutAmount = defaults.MinimumPayoutAmount
	}
	if strings.TrimSpace(c.DefaultCurrency) == "" {
		c.DefaultCurrency = defaults.DefaultCurrency
	}
	if c.InsertBatchSize <= 0 {
		c.InsertBatchSize = defaults.InsertBatchSize
	}
	return c
}

type IngestionConfigHolder struct {
	current atomic.Value // holds IngestionConfig
}

// NewStaticIngestionConfig returns a holder that never reloads.
func NewStaticIngestionConfig(cfg IngestionConfig) *IngestionConfigHolder {
	holder := &IngestionConfigHolder{}
	holder.current.Store(cfg.withDefaults())
	return holder
}

func NewIngestionConfigHolder(log *zap.Logger) (*IngestionConfigHolder, error) {
	log = log.Named("config.ingestion")
	v := viper.New()

	v.SetConfigName("ingestion")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/royalti")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ROYALTI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultIngestionConfig()
	v.SetDefault("ingestion.minimum_payout_amount", defaults.MinimumPayoutAmount)
	v.SetDefault("ingestion.default_currency", defaults.DefaultCurrency)
	v.SetDefault("ingestion.insert_batch_size", defaults.InsertBatchSize)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeIngestionConfig(v)
	if err != nil {
		return nil, err
	}

	holder := &IngestionConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		log.Info("ingestion config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeIngestionConfig(v)
		if err != nil {
			log.Warn("ingestion config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("ingestion config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *IngestionConfigHolder) Get() IngestionConfig {
	return h.current.Load().(IngestionConfig)
}

func decodeIngestionConfig(v *viper.Viper) (IngestionConfig, error) {
	var cfg IngestionConfig
	if err := v.UnmarshalKey("ingestion", &cfg); err != nil {
		return IngestionConfig{}, err
	}
	cfg = cfg.withDefaults()
	if err := validateIngestionConfig(cfg); err != nil {
		return IngestionConfig{}, err
	}
	return cfg, nil
}

func validateIngestionConfig(cfg IngestionConfig) error {
	for name, schema := range cfg.Reports {
		if len(schema.Required) == 0 {
			return fmt.Errorf("ingestion.reports.%s.required cannot be empty", name)
		}
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(cfg.MinimumPayoutAmount)); err != nil {
		return fmt.Errorf("ingestion.minimum_payout_amount: %w", err)
	}
	if cfg.MinimumPayout().IsNegative() {
		return errors.New("ingestion.minimum_payout_amount cannot be negative")
	}
	return nil
}
