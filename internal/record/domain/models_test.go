package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEarningsArithmetic(t *testing.T) {
	a := Earnings{Regular: decimal.NewFromInt(150), Commission: decimal.NewFromInt(15)}
	b := Earnings{Regular: decimal.NewFromInt(100), Bonus: decimal.NewFromInt(5), Commission: decimal.NewFromInt(10)}

	sum := a.Add(b)
	assert.True(t, sum.Total().Equal(decimal.NewFromInt(255)))
	assert.True(t, sum.Commission.Equal(decimal.NewFromInt(25)))

	delta := a.Sub(b)
	assert.True(t, delta.Regular.Equal(decimal.NewFromInt(50)))
	assert.True(t, delta.Bonus.Equal(decimal.NewFromInt(-5)))

	assert.True(t, Earnings{}.IsZero())
	assert.False(t, delta.IsZero())
}

func TestChannelRecordEarnings(t *testing.T) {
	r := &ChannelRevenueRecord{PayoutLocal: decimal.NewFromInt(42), Commission: decimal.NewFromInt(2), Views: 1000}
	assert.True(t, r.Earnings().Total().Equal(decimal.NewFromInt(42)))
	assert.Equal(t, int64(1000), r.UnitCount())
}
