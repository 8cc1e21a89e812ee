package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type KPIReportData struct {
	Title       string
	Period      string
	GeneratedAt string

	Cards   []Card
	Monthly []MonthlyLine
}

// Card is one headline figure.
type Card struct {
	Label string
	Value string
}

type MonthlyLine struct {
	Month            string
	NewSubscriptions int
	Cancellations    int
	Revenue          string
	ActiveAtEnd      int
	AverageTicket    string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateKPIReport(ctx context.Context, data KPIReportData) (io.Reader, error) {
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

	m.AddRow(12,
		text.NewCol(12, data.Title, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, "Period: "+data.Period, props.Text{Size: 10}),
	)

	// Headline figures, two per row.
	for i := 0; i < len(data.Cards); i += 2 {
		cols := []core.Col{cardCol(data.Cards[i])}
		if i+1 < len(data.Cards) {
			cols = append(cols, cardCol(data.Cards[i+1]))
		} else {
			cols = append(cols, col.New(6))
		}
		m.AddRow(14, cols...)
	}

	m.AddRow(10,
		text.NewCol(12, "Monthly KPIs", props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}),
	)
	header := props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}
	m.AddRow(8,
		text.NewCol(2, "Month", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "New", header),
		text.NewCol(2, "Cancelled", header),
		text.NewCol(2, "Revenue", header),
		text.NewCol(2, "Active at end", header),
		text.NewCol(2, "Avg. ticket", header),
	)

	cell := props.Text{Size: 9, Align: align.Right}
	for _, line := range data.Monthly {
		m.AddRow(7,
			text.NewCol(2, line.Month, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", line.NewSubscriptions), cell),
			text.NewCol(2, fmt.Sprintf("%d", line.Cancellations), cell),
			text.NewCol(2, line.Revenue, cell),
			text.NewCol(2, fmt.Sprintf("%d", line.ActiveAtEnd), cell),
			text.NewCol(2, line.AverageTicket, cell),
		)
	}

	m.AddRow(10,
		text.NewCol(12, "Generated at "+data.GeneratedAt, props.Text{Size: 8, Top: 4}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func cardCol(card Card) core.Col {
	return col.New(6).Add(
		text.New(card.Label, props.Text{Size: 8}),
		text.New(card.Value, props.Text{Size: 12, Style: fontstyle.Bold, Top: 4}),
	)
}
