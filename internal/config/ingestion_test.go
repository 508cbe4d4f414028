package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestionConfigWithDefaultsFillsMissingSchemas(t *testing.T) {
	cfg := IngestionConfig{
		Reports: map[string]ReportSchema{
			"royalty": {Required: []string{"accountId", "royalty"}},
		},
	}.withDefaults()

	require.Len(t, cfg.Reports, 4)
	assert.Equal(t, []string{"accountId", "royalty"}, cfg.Reports["royalty"].Required)
	assert.Equal(t, "platform", cfg.Reports["royalty"].Aliases["store"])
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, 500, cfg.InsertBatchSize)
	assert.True(t, cfg.MinimumPayout().Equal(decimal.NewFromInt(100)))
}

func TestValidateIngestionConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*IngestionConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*IngestionConfig) {}},
		{name: "bad minimum", mutate: func(c *IngestionConfig) { c.MinimumPayoutAmount = "ten" }, wantErr: true},
		{name: "negative minimum", mutate: func(c *IngestionConfig) { c.MinimumPayoutAmount = "-1" }, wantErr: true},
		{name: "empty required", mutate: func(c *IngestionConfig) {
			c.Reports["mcn"] = ReportSchema{}
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultIngestionConfig()
			tt.mutate(&cfg)
			err := validateIngestionConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStaticIngestionConfigHolder(t *testing.T) {
	holder := NewStaticIngestionConfig(IngestionConfig{MinimumPayoutAmount: "250"})
	got := holder.Get()
	assert.True(t, got.MinimumPayout().Equal(decimal.NewFromInt(250)))
	_, ok := got.Schema("analytics")
	assert.True(t, ok)
}
