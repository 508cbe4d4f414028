// Package normalize turns raw report rows into typed records. Rows that
// cannot be coerced are reported as RowErrors instead of aborting the batch.
package normalize

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	recorddomain "github.com/smallbiznis/royalti/internal/record/domain"
	"github.com/smallbiznis/royalti/internal/report/domain"
	"github.com/smallbiznis/royalti/internal/report/schema"
)

const unknownTitle = "Unknown"

// Row reasons stored on rejected rows.
const (
	ReasonMissingAccount = "missing_account"
	ReasonMissingItem    = "missing_item"
	ReasonInvalidNumber  = "invalid_number"
)

// Row is either a Record or a RowError, tagged with its 1-based file line.
type Row struct {
	Line   int
	Record recorddomain.Record
	Err    *RowError
}

type RowError struct {
	Field  string
	Reason string
	Raw    map[string]string
}

// ReadHeader returns the first non-empty row of src. A source that cannot
// be read up to its header is ErrUnreadableFile.
func ReadHeader(src RowSource) ([]string, error) {
	for {
		row, _, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrEmptyFile
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrUnreadableFile, err)
		}
		if !blank(row) {
			return row, nil
		}
	}
}

// Stream is a single-pass sequence of normalized rows. Re-reading requires
// re-opening the source.
type Stream struct {
	src        RowSource
	header     schema.Header
	reportType domain.ReportType
	consumed   bool
	err        error
}

func NewStream(reportType domain.ReportType, header schema.Header, src RowSource) *Stream {
	return &Stream{src: src, header: header, reportType: reportType}
}

// Rows yields every data row. Blank rows are skipped. A read error stops
// the sequence and is reported by Err.
func (s *Stream) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		if s.consumed {
			s.err = errors.New("normalize: stream already consumed")
			return
		}
		s.consumed = true
		for {
			cells, line, err := s.src.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				s.err = err
				return
			}
			if blank(cells) {
				continue
			}
			record, rowErr := s.normalize(cells)
			if !yield(Row{Line: line, Record: record, Err: rowErr}) {
				return
			}
		}
	}
}

func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) Close() error {
	return s.src.Close()
}

func (s *Stream) normalize(cells []string) (recorddomain.Record, *RowError) {
	f := fields{header: s.header, cells: cells}

	account := f.text("accountId")
	if account == "" {
		return nil, f.fail("accountId", ReasonMissingAccount)
	}

	switch s.reportType {
	case domain.ReportTypeAnalytics:
		return f.analytics(account)
	case domain.ReportTypeRoyalty, domain.ReportTypeBonusRoyalty:
		return f.royalty(s.reportType, account)
	case domain.ReportTypeMCN:
		return f.channel(account)
	default:
		return nil, f.fail("", domain.ErrInvalidReportType.Error())
	}
}

type fields struct {
	header schema.Header
	cells  []string
}

func (f fields) text(column string) string {
	i := f.header.Index(column)
	if i < 0 || i >= len(f.cells) {
		return ""
	}
	return strings.TrimSpace(f.cells[i])
}

func (f fields) fail(field, reason string) *RowError {
	raw := make(map[string]string, len(f.header))
	for name, i := range f.header {
		if i < len(f.cells) {
			raw[name] = f.cells[i]
		}
	}
	return &RowError{Field: field, Reason: reason, Raw: raw}
}

// amount parses a monetary column. Empty means zero, negatives clamp to zero.
func (f fields) amount(column string) (decimal.Decimal, *RowError) {
	v, ok := parseDecimal(f.text(column))
	if !ok {
		return decimal.Zero, f.fail(column, ReasonInvalidNumber)
	}
	if v.IsNegative() {
		return decimal.Zero, nil
	}
	return v, nil
}

// count parses a unit column. "12.0" is accepted; a fractional count is a
// row error rather than being truncated.
func (f fields) count(column string) (int64, *RowError) {
	v, rowErr := f.amount(column)
	if rowErr != nil {
		return 0, rowErr
	}
	if !v.Equal(v.Truncate(0)) {
		return 0, f.fail(column, ReasonInvalidNumber)
	}
	return v.IntPart(), nil
}

func (f fields) country() string {
	c := strings.ToUpper(f.text("country"))
	if utf8.RuneCountInString(c) > 2 {
		c = string([]rune(c)[:2])
	}
	return c
}

func (f fields) title() string {
	for _, column := range []string{"trackTitle", "productTitle", "albumTitle"} {
		if v := f.text(column); v != "" {
			return v
		}
	}
	return unknownTitle
}

func (f fields) track() (isrc string, rowErr *RowError) {
	isrc = strings.ToUpper(f.text("isrc"))
	if isrc == "" {
		return "", f.fail("isrc", ReasonMissingItem)
	}
	return isrc, nil
}

func (f fields) analytics(account string) (recorddomain.Record, *RowError) {
	isrc, rowErr := f.track()
	if rowErr != nil {
		return nil, rowErr
	}
	units, rowErr := f.count("units")
	if rowErr != nil {
		return nil, rowErr
	}
	return &recorddomain.AnalyticsRecord{
		AccountID:   account,
		ISRC:        isrc,
		UPC:         f.text("upc"),
		TrackTitle:  f.title(),
		ArtistName:  f.text("artistName"),
		StoreName:   strings.ToLower(f.text("platform")),
		CountryCode: f.country(),
		Units:       units,
	}, nil
}

func (f fields) royalty(reportType domain.ReportType, account string) (recorddomain.Record, *RowError) {
	isrc, rowErr := f.track()
	if rowErr != nil {
		return nil, rowErr
	}
	units, rowErr := f.count("units")
	if rowErr != nil {
		return nil, rowErr
	}
	commission, rowErr := f.amount("commission")
	if rowErr != nil {
		return nil, rowErr
	}

	record := &recorddomain.RoyaltyRecord{
		ReportType:     reportType,
		AccountID:      account,
		ISRC:           isrc,
		UPC:            f.text("upc"),
		TrackTitle:     f.title(),
		ArtistName:     f.text("artistName"),
		StoreName:      strings.ToLower(f.text("platform")),
		CountryCode:    f.country(),
		Units:          units,
		RegularRoyalty: decimal.Zero,
		BonusRoyalty:   decimal.Zero,
		Commission:     commission,
	}
	if reportType == domain.ReportTypeBonusRoyalty {
		if record.BonusRoyalty, rowErr = f.amount("bonusRoyalty"); rowErr != nil {
			return nil, rowErr
		}
	} else {
		if record.RegularRoyalty, rowErr = f.amount("royalty"); rowErr != nil {
			return nil, rowErr
		}
	}
	record.TotalEarnings = record.RegularRoyalty.Add(record.BonusRoyalty)
	return record, nil
}

func (f fields) channel(account string) (recorddomain.Record, *RowError) {
	channelID := f.text("channelId")
	if channelID == "" {
		return nil, f.fail("channelId", ReasonMissingItem)
	}
	views, rowErr := f.count("views")
	if rowErr != nil {
		return nil, rowErr
	}
	revenue, rowErr := f.amount("revenue")
	if rowErr != nil {
		return nil, rowErr
	}
	commission, rowErr := f.amount("commission")
	if rowErr != nil {
		return nil, rowErr
	}

	rate := decimal.NewFromInt(1)
	if f.text("conversionRate") != "" {
		if rate, rowErr = f.amount("conversionRate"); rowErr != nil {
			return nil, rowErr
		}
	}
	payout := revenue.Mul(rate)
	if f.text("payout") != "" {
		if payout, rowErr = f.amount("payout"); rowErr != nil {
			return nil, rowErr
		}
	}

	return &recorddomain.ChannelRevenueRecord{
		AccountID:      account,
		ChannelID:      channelID,
		ChannelName:    f.text("channelName"),
		CountryCode:    f.country(),
		Views:          views,
		Revenue:        revenue,
		ConversionRate: rate,
		PayoutLocal:    payout.Round(6),
		Commission:     commission,
	}, nil
}

// parseDecimal accepts thousands separators and a leading currency sign.
// An empty cell is zero.
func parseDecimal(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, true
	}
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimPrefix(raw, "$")
	if strings.HasPrefix(raw, "-$") {
		raw = "-" + raw[2:]
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
