package normalize

import (
	"io"

	"github.com/smallbiznis/royalti/internal/report/domain"
	"github.com/smallbiznis/royalti/internal/report/schema"
)

// Normalizer opens report files and validates their header before any data
// row is read.
type Normalizer struct {
	validator *schema.Validator
}

func New(validator *schema.Validator) *Normalizer {
	return &Normalizer{validator: validator}
}

// CheckHeader reads only the header row of a file.
func (n *Normalizer) CheckHeader(reportType domain.ReportType, name string, r io.Reader) error {
	src, err := OpenSource(name, r)
	if err != nil {
		return err
	}
	defer src.Close()

	cells, err := ReadHeader(src)
	if err != nil {
		return err
	}
	_, err = n.validator.Validate(reportType, cells)
	return err
}

// Open returns a stream positioned after the header. The caller closes the
// returned Stream.
func (n *Normalizer) Open(reportType domain.ReportType, name string, r io.Reader) (*Stream, error) {
	src, err := OpenSource(name, r)
	if err != nil {
		return nil, err
	}
	cells, err := ReadHeader(src)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	header, err := n.validator.Validate(reportType, cells)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return NewStream(reportType, header, src), nil
}
