// Package domain holds the KPI tables derived from a report run.
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidDateRange = errors.New("invalid_date_range")

// Window is an inclusive range of instants.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t *time.Time) bool {
	return t != nil && !t.Before(w.Start) && !t.After(w.End)
}

type MonthlyRow struct {
	Month            string
	Start            time.Time
	End              time.Time
	NewSubscriptions int
	Cancellations    int
	Revenue          decimal.Decimal
	ActiveAtEnd      int
	AverageTicket    decimal.Decimal
}

type WeeklyRow struct {
	Start            time.Time
	End              time.Time
	NewSubscriptions int
	Cancellations    int
}

// CohortRequest selects members by subscription date. Start and End are
// calendar days; Now is the observation instant.
type CohortRequest struct {
	Start time.Time
	End   time.Time
	Now   time.Time
}

type CohortResult struct {
	Start string `json:"start"`
	End   string `json:"end"`

	Size      int `json:"size"`
	Cancelled int `json:"cancelled"`
	Active    int `json:"active"`

	ChurnRate           float64         `json:"churn_rate"`
	CurrentMRR          decimal.Decimal `json:"current_mrr"`
	AverageLifetimeDays float64         `json:"average_lifetime_days"`
	AverageTicket       decimal.Decimal `json:"average_ticket"`
	LTV                 decimal.Decimal `json:"ltv"`

	Labels      []string          `json:"labels"`
	Retention   []float64         `json:"retention"`
	MRRTimeline []decimal.Decimal `json:"mrr_timeline"`
}

type GlobalKPIs struct {
	TotalSubscriptions int             `json:"total_subscriptions"`
	TotalActive        int             `json:"total_active"`
	TotalNotActive     int             `json:"total_not_active"`
	ByStatus           map[string]int  `json:"by_status"`
	TotalMRR           decimal.Decimal `json:"total_mrr"`
}
