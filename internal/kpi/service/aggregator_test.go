package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kpireport/internal/config"
	"github.com/smallbiznis/kpireport/internal/instant"
	kpidomain "github.com/smallbiznis/kpireport/internal/kpi/domain"
	reportdomain "github.com/smallbiznis/kpireport/internal/report/domain"
	subscriptiondomain "github.com/smallbiznis/kpireport/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAggregator() (*Aggregator, *instant.Normalizer) {
	times := instant.MustNew(instant.DefaultZone)
	return NewAggregator(Params{
		Log:    zap.NewNop(),
		Times:  times,
		Report: config.DefaultReportConfig(),
	}), times
}

func ptr(t time.Time) *time.Time { return &t }

func TestMonthlyBoundariesAreInclusive(t *testing.T) {
	agg, times := newAggregator()
	loc := times.Location()

	janEnd := time.Date(2024, 1, 31, 23, 59, 59, 999999999, loc)
	febStart := times.Date(2024, 2, 1)

	subs := []subscriptiondomain.Subscription{
		{ID: "a", CreatedAt: ptr(times.Date(2024, 1, 1))},
		{ID: "b", CreatedAt: ptr(times.Date(2024, 1, 10)), CancelledAt: ptr(janEnd)},
		{ID: "c", CreatedAt: ptr(febStart)},
		{ID: "d"},
	}
	txs := []subscriptiondomain.Transaction{
		{ConfirmedAt: ptr(times.Date(2024, 1, 1)), NetAmount: decimal.RequireFromString("10.005")},
		{ConfirmedAt: ptr(janEnd), NetAmount: decimal.NewFromInt(20)},
		{ConfirmedAt: ptr(febStart), NetAmount: decimal.NewFromInt(7)},
		{NetAmount: decimal.NewFromInt(1000)},
	}

	window, err := agg.Window(times.Date(2024, 1, 15), times.Date(2024, 2, 10))
	require.NoError(t, err)

	rows := agg.Monthly(subs, txs, window)
	require.Len(t, rows, 2)

	jan := rows[0]
	assert.Equal(t, "2024-01", jan.Month)
	assert.Equal(t, times.Date(2024, 1, 1), jan.Start)
	assert.Equal(t, janEnd, jan.End)
	assert.Equal(t, 2, jan.NewSubscriptions)
	assert.Equal(t, 1, jan.Cancellations)
	assert.Equal(t, "30.01", jan.Revenue.StringFixed(2))
	assert.Equal(t, 1, jan.ActiveAtEnd, "cancellation on the last instant ends activity")
	assert.Equal(t, "30.01", jan.AverageTicket.StringFixed(2))

	feb := rows[1]
	assert.Equal(t, "2024-02", feb.Month)
	assert.Equal(t, 1, feb.NewSubscriptions)
	assert.Equal(t, 0, feb.Cancellations)
	assert.Equal(t, "7.00", feb.Revenue.StringFixed(2))
	assert.Equal(t, 2, feb.ActiveAtEnd)
	assert.Equal(t, "3.50", feb.AverageTicket.StringFixed(2))
}

func TestMonthlyAverageTicketWithoutActiveIsZero(t *testing.T) {
	agg, times := newAggregator()
	window, err := agg.Window(times.Date(2024, 3, 1), times.Date(2024, 3, 31))
	require.NoError(t, err)

	rows := agg.Monthly(nil, []subscriptiondomain.Transaction{
		{ConfirmedAt: ptr(times.Date(2024, 3, 5)), NetAmount: decimal.NewFromInt(50)},
	}, window)

	require.Len(t, rows, 1)
	assert.Equal(t, "50.00", rows[0].Revenue.StringFixed(2))
	assert.True(t, rows[0].AverageTicket.IsZero())
}

func TestMonthlyActiveAtEndExcludesCancelledInEarlierMonth(t *testing.T) {
	agg, times := newAggregator()

	subs := []subscriptiondomain.Subscription{
		{ID: "gone", CreatedAt: ptr(times.Date(2024, 1, 10)), CancelledAt: ptr(times.Date(2024, 1, 20))},
		{ID: "kept", CreatedAt: ptr(times.Date(2024, 1, 5))},
	}

	window, err := agg.Window(times.Date(2024, 1, 1), times.Date(2024, 2, 1))
	require.NoError(t, err)

	rows := agg.Monthly(subs, nil, window)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-01", rows[0].Month)
	assert.Equal(t, 2, rows[0].NewSubscriptions)
	assert.Equal(t, 1, rows[0].Cancellations)
	assert.Equal(t, 1, rows[0].ActiveAtEnd)

	assert.Equal(t, "2024-02", rows[1].Month)
	assert.Equal(t, 0, rows[1].NewSubscriptions)
	assert.Equal(t, 0, rows[1].Cancellations)
	assert.Equal(t, 1, rows[1].ActiveAtEnd)
}

func TestWeeklyIsMondayAligned(t *testing.T) {
	agg, times := newAggregator()
	window, err := agg.Window(times.Date(2024, 1, 3), times.Date(2024, 1, 14))
	require.NoError(t, err)

	subs := []subscriptiondomain.Subscription{
		{CreatedAt: ptr(times.Date(2024, 1, 1))},
		{CreatedAt: ptr(times.Date(2024, 1, 8)), CancelledAt: ptr(times.EndOfDay(times.Date(2024, 1, 14)))},
	}

	rows := agg.Weekly(subs, window)

	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-01", rows[0].Start.Format(instant.DateLayout))
	assert.Equal(t, "2024-01-07", rows[0].End.Format(instant.DateLayout))
	assert.Equal(t, 1, rows[0].NewSubscriptions)
	assert.Equal(t, "2024-01-08", rows[1].Start.Format(instant.DateLayout))
	assert.Equal(t, 1, rows[1].NewSubscriptions)
	assert.Equal(t, 1, rows[1].Cancellations)
	assert.Equal(t, time.Monday, rows[1].Start.Weekday())
}

func TestWindowRejectsInvertedRange(t *testing.T) {
	agg, times := newAggregator()
	_, err := agg.Window(times.Date(2024, 2, 1), times.Date(2024, 1, 1))
	assert.ErrorIs(t, err, kpidomain.ErrInvalidDateRange)
}

func TestCohortChurnLifetimeAndLTV(t *testing.T) {
	agg, times := newAggregator()
	created := times.Date(2024, 1, 5)
	rows := []reportdomain.Row{
		{ID: "a", SubscribedAt: ptr(created), Ticket: decimal.NewFromInt(100), Active: true, Status: subscriptiondomain.StatusActive},
		{ID: "b", SubscribedAt: ptr(created), CancelledAt: ptr(created.AddDate(0, 0, 15)), Ticket: decimal.NewFromInt(100), Status: subscriptiondomain.StatusCanceled},
		{ID: "outside", SubscribedAt: ptr(times.Date(2024, 2, 1)), Ticket: decimal.NewFromInt(999), Active: true},
	}

	result, err := agg.Cohort(rows, kpidomain.CohortRequest{
		Start: times.Date(2024, 1, 1),
		End:   times.Date(2024, 1, 31),
		Now:   times.Date(2024, 3, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Size)
	assert.Equal(t, 1, result.Cancelled)
	assert.Equal(t, 50.0, result.ChurnRate)
	assert.Equal(t, 15.0, result.AverageLifetimeDays)
	assert.Equal(t, "100.00", result.AverageTicket.StringFixed(2))
	assert.Equal(t, "49.28", result.LTV.StringFixed(2))
	assert.Equal(t, "100.00", result.CurrentMRR.StringFixed(2))

	assert.Equal(t, []string{"2024-01", "2024-02"}, result.Labels)
	assert.Equal(t, []float64{100, 50}, result.Retention)
	require.Len(t, result.MRRTimeline, 2)
	assert.Equal(t, "200.00", result.MRRTimeline[0].StringFixed(2))
	assert.Equal(t, "100.00", result.MRRTimeline[1].StringFixed(2))
}

func TestCohortEmptySelection(t *testing.T) {
	agg, times := newAggregator()

	result, err := agg.Cohort(nil, kpidomain.CohortRequest{
		Start: times.Date(2024, 1, 1),
		End:   times.Date(2024, 1, 31),
		Now:   times.Date(2024, 3, 1),
	})
	require.NoError(t, err)
	assert.Zero(t, result.Size)
	assert.Empty(t, result.Labels)
	assert.True(t, result.LTV.IsZero())
}

func TestDefaultCohortRequestUsesLookback(t *testing.T) {
	agg, times := newAggregator()
	now := time.Date(2024, 3, 31, 15, 0, 0, 0, times.Location())

	req := agg.DefaultCohortRequest(now)
	assert.Equal(t, times.Date(2024, 3, 1), req.Start)
	assert.Equal(t, times.Date(2024, 3, 31), req.End)

	custom := agg.WithCohortConfig(config.CohortConfig{LookbackDays: 7, DaysPerMonth: 30})
	assert.Equal(t, times.Date(2024, 3, 24), custom.DefaultCohortRequest(now).Start)
}

func TestGlobal(t *testing.T) {
	agg, _ := newAggregator()
	kpis := agg.Global([]reportdomain.Row{
		{Status: subscriptiondomain.StatusActive, Active: true, Ticket: decimal.NewFromInt(10)},
		{Status: subscriptiondomain.StatusActive, Active: true, Ticket: decimal.RequireFromString("5.5")},
		{Status: subscriptiondomain.StatusOverdue, Ticket: decimal.NewFromInt(99)},
		{Status: subscriptiondomain.StatusCanceled},
	})

	assert.Equal(t, 4, kpis.TotalSubscriptions)
	assert.Equal(t, 2, kpis.TotalActive)
	assert.Equal(t, 2, kpis.TotalNotActive)
	assert.Equal(t, 1, kpis.ByStatus["overdue"])
	assert.Equal(t, "15.50", kpis.TotalMRR.StringFixed(2))
}
