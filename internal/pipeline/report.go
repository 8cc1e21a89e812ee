package pipeline

import (
	"fmt"
	"time"

	"github.com/smallbiznis/kpireport/internal/instant"
	"github.com/smallbiznis/kpireport/internal/money"
	"github.com/smallbiznis/kpireport/internal/providers/pdf"
)

const reportTitle = "Subscription KPI Report"

func kpiReportData(res Result, now time.Time) pdf.KPIReportData {
	data := pdf.KPIReportData{
		Title:       reportTitle,
		Period:      fmt.Sprintf("%s to %s", instant.FormatDate(&res.Window.Start), instant.FormatDate(&res.Window.End)),
		GeneratedAt: now.Format("2006-01-02 15:04 MST"),
		Cards: []pdf.Card{
			{Label: "Subscriptions", Value: fmt.Sprint(res.Global.TotalSubscriptions)},
			{Label: "Active", Value: fmt.Sprint(res.Global.TotalActive)},
			{Label: "Not active", Value: fmt.Sprint(res.Global.TotalNotActive)},
			{Label: "MRR", Value: money.Format(res.Global.TotalMRR)},
		},
		Monthly: make([]pdf.MonthlyLine, 0, len(res.Monthly)),
	}
	for _, row := range res.Monthly {
		data.Monthly = append(data.Monthly, pdf.MonthlyLine{
			Month:            row.Month,
			NewSubscriptions: row.NewSubscriptions,
			Cancellations:    row.Cancellations,
			Revenue:          money.Format(row.Revenue),
			ActiveAtEnd:      row.ActiveAtEnd,
			AverageTicket:    money.Format(row.AverageTicket),
		})
	}
	return data
}
