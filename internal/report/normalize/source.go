package normalize

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/smallbiznis/royalti/internal/report/domain"
	"github.com/xuri/excelize/v2"
)

// RowSource yields raw rows with their 1-based line number, returning io.EOF
// after the last one.
type RowSource interface {
	Next() ([]string, int, error)
	Close() error
}

// OpenSource picks a reader from the file extension. Spreadsheets are read
// from their first sheet; everything else is treated as CSV.
func OpenSource(name string, r io.Reader) (RowSource, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return newXLSXSource(r)
	default:
		return newCSVSource(r), nil
	}
}

type csvSource struct {
	reader *csv.Reader
}

func newCSVSource(r io.Reader) *csvSource {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return &csvSource{reader: reader}
}

func (s *csvSource) Next() ([]string, int, error) {
	row, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, io.EOF
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read csv: %w", err)
	}
	line, _ := s.reader.FieldPos(0)
	return row, line, nil
}

func (s *csvSource) Close() error { return nil }

type xlsxSource struct {
	file *excelize.File
	rows *excelize.Rows
	line int
}

func newXLSXSource(r io.Reader) (*xlsxSource, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %w", domain.ErrUnreadableFile, err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrUnreadableFile)
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: open xlsx sheet %q: %w", domain.ErrUnreadableFile, sheets[0], err)
	}
	return &xlsxSource{file: f, rows: rows}, nil
}

func (s *xlsxSource) Next() ([]string, int, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, 0, fmt.Errorf("read xlsx: %w", err)
		}
		return nil, 0, io.EOF
	}
	row, err := s.rows.Columns()
	if err != nil {
		return nil, 0, fmt.Errorf("read xlsx: %w", err)
	}
	s.line++
	return row, s.line, nil
}

func (s *xlsxSource) Close() error {
	return errors.Join(s.rows.Close(), s.file.Close())
}
