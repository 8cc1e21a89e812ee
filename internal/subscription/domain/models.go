// Package domain contains typed views over raw subscription and transaction
// records returned by the billing API.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kpireport/internal/record"
)

// Status represents the lifecycle state of a subscription as of an instant.
type Status string

const (
	StatusFuture   Status = "future"
	StatusCanceled Status = "canceled"
	StatusOverdue  Status = "overdue"
	StatusInactive Status = "inactive"
	StatusActive   Status = "active"
)

// ReportedStatuses lists the statuses that can appear in report rows, in
// display order. StatusFuture only filters rows out.
var ReportedStatuses = []Status{StatusActive, StatusOverdue, StatusInactive, StatusCanceled}

// Identifier fields, most specific first.
var (
	SubscriptionIDKeys = []string{"subscription_code", "code", "id"}
	CreatedAtKeys      = []string{"created_at", "started_at"}
)

// Subscription is a normalized subscription record.
type Subscription struct {
	ID      string
	Aliases []string

	CreatedAt    *time.Time
	CancelledAt  *time.Time
	LastStatus   string
	LastStatusAt *time.Time

	ContactName  string
	ProductName  string
	OfferPrice   *decimal.Decimal
	ChargedTimes int

	Raw record.Record
}

// HasID reports whether the record carried any identifier.
func (s Subscription) HasID() bool {
	return s.ID != ""
}

// CancelledBy reports whether a cancellation instant exists and is not
// after t.
func (s Subscription) CancelledBy(t time.Time) bool {
	return s.CancelledAt != nil && !s.CancelledAt.After(t)
}

// ActiveAt reports whether the subscription had started by t and was not
// cancelled on or before t.
func (s Subscription) ActiveAt(t time.Time) bool {
	if s.CreatedAt == nil || s.CreatedAt.After(t) {
		return false
	}
	return s.CancelledAt == nil || s.CancelledAt.After(t)
}

// Transaction is a normalized transaction record.
type Transaction struct {
	ID             string
	SubscriptionID string
	ConfirmedAt    *time.Time

	NetAmount      decimal.Decimal
	AmountResolved bool

	Raw record.Record
}
