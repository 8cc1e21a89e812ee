package service

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kpireport/internal/money"
	reportdomain "github.com/smallbiznis/kpireport/internal/report/domain"
	subscriptiondomain "github.com/smallbiznis/kpireport/internal/subscription/domain"
	subscriptionservice "github.com/smallbiznis/kpireport/internal/subscription/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Resolver *subscriptionservice.Resolver
}

// Joiner turns subscriptions and their transactions into report rows.
type Joiner struct {
	log      *zap.Logger
	resolver *subscriptionservice.Resolver
}

func NewJoiner(p Params) *Joiner {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Joiner{
		log:      log.Named("report.service"),
		resolver: p.Resolver,
	}
}

// GroupBySubscription indexes transactions by their subscription id.
// Transactions without a subscription id are left out.
func GroupBySubscription(txs []subscriptiondomain.Transaction) map[string][]subscriptiondomain.Transaction {
	linked := lo.Filter(txs, func(tx subscriptiondomain.Transaction, _ int) bool {
		return tx.SubscriptionID != ""
	})
	return lo.GroupBy(linked, func(tx subscriptiondomain.Transaction) string {
		return tx.SubscriptionID
	})
}

// Build emits one row per subscription, in input order, for every
// subscription that has an identifier and is not future as of asOf.
func (j *Joiner) Build(subs []subscriptiondomain.Subscription, txs []subscriptiondomain.Transaction, asOf time.Time) reportdomain.Report {
	groups := GroupBySubscription(txs)
	report := reportdomain.Report{
		AsOf: asOf,
		Rows: make([]reportdomain.Row, 0, len(subs)),
	}

	for _, sub := range subs {
		if !sub.HasID() {
			report.SkippedWithoutID++
			continue
		}

		status := j.resolver.Resolve(sub, asOf)
		if status == subscriptiondomain.StatusFuture {
			report.SkippedFuture++
			continue
		}

		group := lookup(groups, sub)
		cycles := len(group)
		if cycles == 0 {
			cycles = sub.ChargedTimes
		}

		report.Rows = append(report.Rows, reportdomain.Row{
			ID:             sub.ID,
			SubscribedAt:   sub.CreatedAt,
			CancelledAt:    sub.CancelledAt,
			Status:         status,
			SubscriberName: sub.ContactName,
			OfferName:      sub.ProductName,
			Ticket:         Ticket(sub, group),
			RenewalCycles:  cycles,
			Active:         status == subscriptiondomain.StatusActive,
		})
	}

	if report.SkippedWithoutID > 0 {
		j.log.Warn("subscriptions without identifier skipped", zap.Int("count", report.SkippedWithoutID))
	}
	j.log.Debug("report built",
		zap.Int("rows", len(report.Rows)),
		zap.Int("future", report.SkippedFuture),
		zap.Time("as_of", asOf),
	)
	return report
}

// lookup returns the first non-empty transaction group among the
// subscription's identifiers, primary identifier first.
func lookup(groups map[string][]subscriptiondomain.Transaction, sub subscriptiondomain.Subscription) []subscriptiondomain.Transaction {
	if group := groups[sub.ID]; len(group) > 0 {
		return group
	}
	for _, alias := range sub.Aliases {
		if group := groups[alias]; len(group) > 0 {
			return group
		}
	}
	return nil
}

// Ticket is the amount of the latest confirmed transaction, else the offer
// price, else zero. Non-positive candidates are skipped so the ticket is
// never negative.
func Ticket(sub subscriptiondomain.Subscription, group []subscriptiondomain.Transaction) decimal.Decimal {
	confirmed := lo.Filter(group, func(tx subscriptiondomain.Transaction, _ int) bool {
		return tx.ConfirmedAt != nil
	})
	sort.SliceStable(confirmed, func(a, b int) bool {
		return confirmed[a].ConfirmedAt.Before(*confirmed[b].ConfirmedAt)
	})

	if len(confirmed) > 0 {
		if latest := money.Round2(confirmed[len(confirmed)-1].NetAmount); latest.IsPositive() {
			return latest
		}
	}
	if sub.OfferPrice != nil {
		if price := money.Round2(*sub.OfferPrice); price.IsPositive() {
			return price
		}
	}
	return decimal.Zero
}
