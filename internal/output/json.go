package output

import (
	"encoding/json"

	"github.com/smallbiznis/kpireport/internal/instant"
	kpidomain "github.com/smallbiznis/kpireport/internal/kpi/domain"
	"github.com/smallbiznis/kpireport/internal/money"
)

// KPIDocument is the JSON rendition of one run's KPI tables.
type KPIDocument struct {
	WindowStart string               `json:"window_start"`
	WindowEnd   string               `json:"window_end"`
	Global      kpidomain.GlobalKPIs `json:"global"`
	Monthly     []monthlyJSON        `json:"monthly"`
	Weekly      []weeklyJSON         `json:"weekly"`
}

type monthlyJSON struct {
	Month            string      `json:"month"`
	MonthStart       string      `json:"month_start"`
	MonthEnd         string      `json:"month_end"`
	NewSubscriptions int         `json:"new_subscriptions"`
	Cancellations    int         `json:"cancellations"`
	Revenue          json.Number `json:"revenue"`
	ActiveAtEnd      int         `json:"active_at_end"`
	AverageTicket    json.Number `json:"average_ticket"`
}

type weeklyJSON struct {
	WeekStart        string `json:"week_start"`
	WeekEnd          string `json:"week_end"`
	NewSubscriptions int    `json:"new_subscriptions"`
	Cancellations    int    `json:"cancellations"`
}

func NewKPIDocument(window kpidomain.Window, global kpidomain.GlobalKPIs, monthly []kpidomain.MonthlyRow, weekly []kpidomain.WeeklyRow) KPIDocument {
	doc := KPIDocument{
		WindowStart: instant.FormatDate(&window.Start),
		WindowEnd:   instant.FormatDate(&window.End),
		Global:      global,
		Monthly:     make([]monthlyJSON, 0, len(monthly)),
		Weekly:      make([]weeklyJSON, 0, len(weekly)),
	}
	for _, row := range monthly {
		doc.Monthly = append(doc.Monthly, monthlyJSON{
			Month:            row.Month,
			MonthStart:       instant.FormatDate(&row.Start),
			MonthEnd:         instant.FormatDate(&row.End),
			NewSubscriptions: row.NewSubscriptions,
			Cancellations:    row.Cancellations,
			Revenue:          json.Number(money.Format(row.Revenue)),
			ActiveAtEnd:      row.ActiveAtEnd,
			AverageTicket:    json.Number(money.Format(row.AverageTicket)),
		})
	}
	for _, row := range weekly {
		doc.Weekly = append(doc.Weekly, weeklyJSON{
			WeekStart:        instant.FormatDate(&row.Start),
			WeekEnd:          instant.FormatDate(&row.End),
			NewSubscriptions: row.NewSubscriptions,
			Cancellations:    row.Cancellations,
		})
	}
	return doc
}

func EncodeJSON(v any) ([]byte, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(body, '\n'), nil
}
