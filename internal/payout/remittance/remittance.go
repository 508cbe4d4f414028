package remittance

import (
	"context"
	"errors"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var ErrEmptyAdvice = errors.New("empty_remittance_advice")

// Advice is the printable summary of a settled payout. Amounts are
// preformatted by the caller.
type Advice struct {
	Issuer      string
	PayoutID    string
	UserID      string
	Method      string
	Currency    string
	Amount      string
	RequestedAt string
	ApprovedAt  string
	PaidAt      string
	Note        string

	Lines []Line

	TotalEarnings   string
	TotalCommission string
	TotalPaidOut    string
	Withdrawable    string
}

type Line struct {
	Label  string
	Amount string
}

type Renderer interface {
	Render(ctx context.Context, advice Advice) ([]byte, error)
}

type PDFRenderer struct{}

func New() Renderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) Render(ctx context.Context, advice Advice) ([]byte, error) {
	if advice.PayoutID == "" {
		return nil, ErrEmptyAdvice
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Remittance advice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, advice.Issuer, props.Text{
			Size:  10,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Payout: "+advice.PayoutID, props.Text{Top: 0}),
			text.New("Payee: "+advice.UserID, props.Text{Top: 5}),
			text.New("Method: "+advice.Method, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Requested: "+advice.RequestedAt, props.Text{Top: 0, Align: align.Right}),
			text.New("Approved: "+advice.ApprovedAt, props.Text{Top: 5, Align: align.Right}),
			text.New("Paid: "+advice.PaidAt, props.Text{Top: 10, Align: align.Right}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, advice.Amount+" "+advice.Currency+" paid on "+advice.PaidAt, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	if advice.Note != "" {
		m.AddRow(12,
			text.NewCol(12, advice.Note, props.Text{Size: 9}),
		)
	}

	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, line := range advice.Lines {
		m.AddRow(8,
			text.NewCol(8, line.Label, props.Text{Size: 9}),
			text.NewCol(4, line.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	// wallet position after settlement
	m.AddRow(12,
		text.NewCol(12, "Wallet summary", props.Text{Style: fontstyle.Bold, Size: 10, Top: 4}),
	)
	for _, row := range [][2]string{
		{"Total earnings", advice.TotalEarnings},
		{"Total commission", advice.TotalCommission},
		{"Total paid out", advice.TotalPaidOut},
		{"Withdrawable", advice.Withdrawable},
	} {
		m.AddRow(8,
			col.New(6),
			text.NewCol(3, row[0], props.Text{Size: 9}),
			text.NewCol(3, row[1], props.Text{Size: 9, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
