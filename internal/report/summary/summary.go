// Package summary reduces normalized rows into the per-job totals stored on
// a ReportJob.
package summary

import (
	"github.com/shopspring/decimal"
	recorddomain "github.com/smallbiznis/royalti/internal/record/domain"
	"github.com/smallbiznis/royalti/internal/report/domain"
)

// Calculator accumulates a Summary one record at a time so the normalizer
// stream never has to be held in memory.
type Calculator struct {
	result   domain.Summary
	accounts map[string]struct{}
	items    map[string]struct{}
}

func NewCalculator() *Calculator {
	return &Calculator{
		result: domain.Summary{
			ByPlatform: map[string]domain.Breakdown{},
			ByCountry:  map[string]domain.Breakdown{},
		},
		accounts: map[string]struct{}{},
		items:    map[string]struct{}{},
	}
}

func (c *Calculator) Add(r recorddomain.Record) {
	earnings := r.Earnings()
	revenue := earnings.Total()
	units := r.UnitCount()

	c.result.TotalRecords++
	if units > 0 || revenue.IsPositive() {
		c.result.ActiveRecords++
	}
	c.result.TotalUnits += units
	c.result.TotalRevenue = c.result.TotalRevenue.Add(revenue)
	c.result.TotalCommission = c.result.TotalCommission.Add(earnings.Commission)

	c.accounts[r.Account()] = struct{}{}
	if key := r.ItemKey(); key != "" {
		c.items[key] = struct{}{}
	}

	addBreakdown(c.result.ByPlatform, r.Platform(), units, revenue)
	addBreakdown(c.result.ByCountry, r.Country(), units, revenue)
}

// Reject counts rows dropped by the normalizer.
func (c *Calculator) Reject(n int) {
	if n > 0 {
		c.result.RejectedRecords += int64(n)
	}
}

func (c *Calculator) Result() domain.Summary {
	out := c.result
	out.NetRevenue = out.TotalRevenue.Sub(out.TotalCommission)
	out.UniqueAccounts = int64(len(c.accounts))
	out.UniqueItems = int64(len(c.items))
	out.ByPlatform = cloneBreakdowns(c.result.ByPlatform)
	out.ByCountry = cloneBreakdowns(c.result.ByCountry)
	return out
}

// Calculate is the pure reduction over a complete record set.
func Calculate(records []recorddomain.Record) domain.Summary {
	c := NewCalculator()
	for _, r := range records {
		c.Add(r)
	}
	return c.Result()
}

func addBreakdown(m map[string]domain.Breakdown, key string, units int64, revenue decimal.Decimal) {
	if key == "" {
		key = "unknown"
	}
	b := m[key]
	b.Records++
	b.Units += units
	b.Revenue = b.Revenue.Add(revenue)
	m[key] = b
}

func cloneBreakdowns(in map[string]domain.Breakdown) map[string]domain.Breakdown {
	out := make(map[string]domain.Breakdown, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
