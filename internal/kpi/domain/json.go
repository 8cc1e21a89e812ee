package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Amounts are emitted as JSON numbers with exactly two fractional digits.

func amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func (r CohortResult) MarshalJSON() ([]byte, error) {
	type plain CohortResult
	timeline := make([]json.Number, len(r.MRRTimeline))
	for i, v := range r.MRRTimeline {
		timeline[i] = amount(v)
	}
	return json.Marshal(struct {
		plain
		CurrentMRR    json.Number   `json:"current_mrr"`
		AverageTicket json.Number   `json:"average_ticket"`
		LTV           json.Number   `json:"ltv"`
		MRRTimeline   []json.Number `json:"mrr_timeline"`
	}{
		plain:         plain(r),
		CurrentMRR:    amount(r.CurrentMRR),
		AverageTicket: amount(r.AverageTicket),
		LTV:           amount(r.LTV),
		MRRTimeline:   timeline,
	})
}

func (g GlobalKPIs) MarshalJSON() ([]byte, error) {
	type plain GlobalKPIs
	return json.Marshal(struct {
		plain
		TotalMRR json.Number `json:"total_mrr"`
	}{
		plain:    plain(g),
		TotalMRR: amount(g.TotalMRR),
	})
}
