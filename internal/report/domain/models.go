// Package domain holds the flat per-subscription report row.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	subscriptiondomain "github.com/smallbiznis/kpireport/internal/subscription/domain"
)

// Row is one line of the subscription report.
type Row struct {
	ID             string
	SubscribedAt   *time.Time
	CancelledAt    *time.Time
	Status         subscriptiondomain.Status
	SubscriberName string
	OfferName      string
	Ticket         decimal.Decimal
	RenewalCycles  int
	Active         bool
}

// Report is the joiner output together with the records it had to skip.
type Report struct {
	AsOf time.Time
	Rows []Row

	SkippedWithoutID int
	SkippedFuture    int
}

// CountByStatus tallies rows per status.
func (r Report) CountByStatus() map[string]int {
	counts := make(map[string]int, len(subscriptiondomain.ReportedStatuses))
	for _, row := range r.Rows {
		counts[string(row.Status)]++
	}
	return counts
}
