package schema

import (
	"errors"
	"testing"

	"github.com/smallbiznis/royalti/internal/config"
	"github.com/smallbiznis/royalti/internal/report/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator() *Validator {
	return NewValidator(config.NewStaticIngestionConfig(config.DefaultIngestionConfig()))
}

func TestValidateAcceptsCompleteHeaders(t *testing.T) {
	tests := []struct {
		name       string
		reportType domain.ReportType
		cells      []string
	}{
		{name: "analytics", reportType: domain.ReportTypeAnalytics, cells: []string{"accountId", "ISRC", "Platform", "Units", "trackTitle"}},
		{name: "royalty with bom and spaces", reportType: domain.ReportTypeRoyalty, cells: []string{"\uFEFFAccount ID", "isrc", "platform", "royalty", "commission"}},
		{name: "bonus via alias", reportType: domain.ReportTypeBonusRoyalty, cells: []string{"account_id", "isrc", "store", "bonus"}},
		{name: "mcn", reportType: domain.ReportTypeMCN, cells: []string{"accountId", "channelId", "revenueUsd", "rate"}},
	}
	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, err := v.Validate(tt.reportType, tt.cells)
			require.NoError(t, err)
			assert.Equal(t, 0, header.Index("accountId"))
		})
	}
}

func TestValidateListsMissingColumns(t *testing.T) {
	_, err := newValidator().Validate(domain.ReportTypeRoyalty, []string{"accountId", "platform"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingColumns))

	var missing *domain.MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"isrc", "royalty"}, missing.Columns)
}

func TestValidateEmptyHeader(t *testing.T) {
	_, err := newValidator().Validate(domain.ReportTypeAnalytics, []string{"", " "})
	assert.ErrorIs(t, err, domain.ErrEmptyFile)
}

func TestResolveFirstOccurrenceWins(t *testing.T) {
	header := Resolve([]string{"units", "Units", "quantity"}, map[string]string{"quantity": "units"})
	assert.Equal(t, 0, header.Index("units"))
	assert.Equal(t, -1, header.Index("royalty"))
}
