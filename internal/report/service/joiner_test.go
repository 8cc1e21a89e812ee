package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kpireport/internal/instant"
	"github.com/smallbiznis/kpireport/internal/record"
	subscriptiondomain "github.com/smallbiznis/kpireport/internal/subscription/domain"
	subscriptionservice "github.com/smallbiznis/kpireport/internal/subscription/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	times   *instant.Normalizer
	decoder *subscriptiondomain.Decoder
	joiner  *Joiner
}

func newFixture() fixture {
	times := instant.MustNew(instant.DefaultZone)
	return fixture{
		times:   times,
		decoder: subscriptiondomain.NewDecoder(times, subscriptiondomain.Vocabulary{}),
		joiner: NewJoiner(Params{
			Log:      zap.NewNop(),
			Resolver: subscriptionservice.NewDefaultResolver(),
		}),
	}
}

func (f fixture) asOf(date string) time.Time {
	day, err := f.times.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return f.times.EndOfDay(day)
}

func TestBuildActiveSubscriptionUsesOfferPrice(t *testing.T) {
	f := newFixture()
	subs := f.decoder.Subscriptions([]record.Record{{
		"id":         "s1",
		"created_at": "2024-01-10",
		"value":      49.9,
		"contact":    map[string]any{"name": "Ana"},
		"product":    map[string]any{"name": "Mensal"},
	}})

	report := f.joiner.Build(subs, nil, f.asOf("2024-02-01"))

	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	assert.Equal(t, subscriptiondomain.StatusActive, row.Status)
	assert.Equal(t, "49.90", row.Ticket.StringFixed(2))
	assert.True(t, row.Active)
	assert.Equal(t, "Ana", row.SubscriberName)
	assert.Equal(t, "Mensal", row.OfferName)
}

func TestBuildCancelledSubscriptionIsNotActive(t *testing.T) {
	f := newFixture()
	subs := f.decoder.Subscriptions([]record.Record{{
		"id":           "s1",
		"created_at":   "2024-01-10",
		"cancelled_at": "2024-01-20",
		"last_status":  "active",
	}})

	report := f.joiner.Build(subs, nil, f.asOf("2024-02-01"))

	require.Len(t, report.Rows, 1)
	assert.Equal(t, subscriptiondomain.StatusCanceled, report.Rows[0].Status)
	assert.False(t, report.Rows[0].Active)
	assert.True(t, report.Rows[0].Ticket.Equal(decimal.Zero))
	assert.Equal(t, "0.00", report.Rows[0].Ticket.StringFixed(2))
}

func TestBuildSkipsFutureAndUnidentified(t *testing.T) {
	f := newFixture()
	subs := f.decoder.Subscriptions([]record.Record{
		{"id": "later", "created_at": "2024-03-01"},
		{"created_at": "2024-01-01"},
		{"code": "kept", "created_at": "2024-01-01"},
	})

	report := f.joiner.Build(subs, nil, f.asOf("2024-02-01"))

	require.Len(t, report.Rows, 1)
	assert.Equal(t, "kept", report.Rows[0].ID)
	assert.Equal(t, 1, report.SkippedFuture)
	assert.Equal(t, 1, report.SkippedWithoutID)
}

func TestBuildTicketFromLatestConfirmedTransaction(t *testing.T) {
	f := newFixture()
	subs := f.decoder.Subscriptions([]record.Record{{
		"id": "s1", "created_at": "2024-01-01", "value": "10", "charged_times": 9,
	}})
	txs := f.decoder.Transactions([]record.Record{
		{"id": "t2", "subscription": map[string]any{"id": "s1"}, "dates": map[string]any{"confirmed_at": "2024-02-01 10:00:00"}, "payment": map[string]any{"net": "30.456"}},
		{"id": "t1", "subscription": map[string]any{"id": "s1"}, "dates": map[string]any{"confirmed_at": "2024-01-01 10:00:00"}, "payment": map[string]any{"net": 20}},
		{"id": "t3", "subscription_id": "s1", "payment": map[string]any{"net": 99}},
		{"id": "orphan", "payment": map[string]any{"net": 5}},
	})

	report := f.joiner.Build(subs, txs, f.asOf("2024-03-01"))

	require.Len(t, report.Rows, 1)
	assert.Equal(t, "30.46", report.Rows[0].Ticket.StringFixed(2))
	assert.Equal(t, 3, report.Rows[0].RenewalCycles, "unconfirmed transactions still count as cycles")
}

func TestBuildZeroLatestFallsBackToOfferPrice(t *testing.T) {
	f := newFixture()
	subs := f.decoder.Subscriptions([]record.Record{{"id": "s1", "created_at": "2024-01-01", "value": "15,5", "charged_times": 4}})
	txs := f.decoder.Transactions([]record.Record{
		{"id": "t1", "subscription_id": "s1", "dates": map[string]any{"confirmed_at": "2024-01-05"}, "payment": map[string]any{"net": 0}},
	})

	report := f.joiner.Build(subs, txs, f.asOf("2024-03-01"))

	assert.Equal(t, "15.50", report.Rows[0].Ticket.StringFixed(2))
	assert.Equal(t, 1, report.Rows[0].RenewalCycles)

	report = f.joiner.Build(subs, nil, f.asOf("2024-03-01"))
	assert.Equal(t, 4, report.Rows[0].RenewalCycles, "charge count is used without transactions")
}

func TestBuildMatchesTransactionsByAlias(t *testing.T) {
	f := newFixture()
	subs := f.decoder.Subscriptions([]record.Record{{
		"subscription_code": "SC-1", "id": 77.0, "created_at": "2024-01-01",
	}})
	txs := f.decoder.Transactions([]record.Record{
		{"id": "t1", "subscription": map[string]any{"id": 77.0}, "dates": map[string]any{"confirmed_at": "2024-01-05"}, "payment": map[string]any{"net": "12"}},
	})

	report := f.joiner.Build(subs, txs, f.asOf("2024-03-01"))

	require.Len(t, report.Rows, 1)
	assert.Equal(t, "SC-1", report.Rows[0].ID)
	assert.Equal(t, "12.00", report.Rows[0].Ticket.StringFixed(2))
}

func TestTicketIsNeverNegative(t *testing.T) {
	f := newFixture()
	negative := decimal.NewFromInt(-5)
	confirmed := f.times.Date(2024, 1, 2)
	sub := subscriptiondomain.Subscription{ID: "s", OfferPrice: &negative}
	group := []subscriptiondomain.Transaction{{ConfirmedAt: &confirmed, NetAmount: decimal.NewFromInt(-3)}}

	assert.Equal(t, "0.00", Ticket(sub, group).StringFixed(2))
}

func TestGroupBySubscriptionDropsUnlinked(t *testing.T) {
	groups := GroupBySubscription([]subscriptiondomain.Transaction{
		{ID: "a", SubscriptionID: "s1"},
		{ID: "b"},
		{ID: "c", SubscriptionID: "s1"},
	})

	require.Len(t, groups, 1)
	assert.Len(t, groups["s1"], 2)
}
