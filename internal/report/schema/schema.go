// Package schema checks report header rows against the columns each report
// type requires and maps source headers onto canonical column names.
package schema

import (
	"strings"

	"github.com/smallbiznis/royalti/internal/config"
	"github.com/smallbiznis/royalti/internal/report/domain"
)

// Header maps canonical column names to their index in a row.
type Header map[string]int

// Index returns the position of column, or -1 when absent.
func (h Header) Index(column string) int {
	if i, ok := h[normalize(column)]; ok {
		return i
	}
	return -1
}

func (h Header) Has(column string) bool {
	return h.Index(column) >= 0
}

type Validator struct {
	rules *config.IngestionConfigHolder
}

func NewValidator(rules *config.IngestionConfigHolder) *Validator {
	return &Validator{rules: rules}
}

// Validate resolves header cells for reportType and reports every required
// column that is missing as a *domain.MissingColumnsError.
func (v *Validator) Validate(reportType domain.ReportType, cells []string) (Header, error) {
	rules, ok := v.rules.Get().Schema(string(reportType))
	if !ok {
		return nil, domain.ErrInvalidReportType
	}

	header := Resolve(cells, rules.Aliases)
	if len(header) == 0 {
		return nil, domain.ErrEmptyFile
	}

	var missing []string
	for _, column := range rules.Required {
		if !header.Has(column) {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.MissingColumnsError{Columns: missing}
	}
	return header, nil
}

// Resolve builds a Header from raw cells. Matching ignores case, surrounding
// whitespace, a UTF-8 BOM and separators such as "_" or " ". The first
// occurrence of a column wins.
func Resolve(cells []string, aliases map[string]string) Header {
	normalizedAliases := make(map[string]string, len(aliases))
	for from, to := range aliases {
		normalizedAliases[normalize(from)] = normalize(to)
	}

	header := make(Header, len(cells))
	for i, cell := range cells {
		name := normalize(cell)
		if name == "" {
			continue
		}
		if canonical, ok := normalizedAliases[name]; ok {
			name = canonical
		}
		if _, seen := header[name]; !seen {
			header[name] = i
		}
	}
	return header
}

func normalize(column string) string {
	column = strings.TrimPrefix(column, "\uFEFF")
	column = strings.ToLower(strings.TrimSpace(column))
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', ' ', '-', '.':
			return -1
		}
		return r
	}, column)
}
