package service

import (
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kpireport/internal/config"
	"github.com/smallbiznis/kpireport/internal/instant"
	kpidomain "github.com/smallbiznis/kpireport/internal/kpi/domain"
	"github.com/smallbiznis/kpireport/internal/money"
	reportdomain "github.com/smallbiznis/kpireport/internal/report/domain"
	subscriptiondomain "github.com/smallbiznis/kpireport/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Times  *instant.Normalizer
	Report config.ReportConfig
}

// Aggregator buckets subscriptions and transactions into KPI tables.
type Aggregator struct {
	log    *zap.Logger
	times  *instant.Normalizer
	cohort config.CohortConfig
}

func NewAggregator(p Params) *Aggregator {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	cohort := p.Report.Cohort
	if cohort.DaysPerMonth <= 0 {
		cohort = config.DefaultReportConfig().Cohort
	}
	return &Aggregator{
		log:    log.Named("kpi.service"),
		times:  p.Times,
		cohort: cohort,
	}
}

// WithCohortConfig returns a copy using cfg for cohort computations.
func (a *Aggregator) WithCohortConfig(cfg config.CohortConfig) *Aggregator {
	if cfg.DaysPerMonth <= 0 {
		return a
	}
	clone := *a
	clone.cohort = cfg
	return &clone
}

// Window turns two calendar days into an inclusive instant range.
func (a *Aggregator) Window(start, end time.Time) (kpidomain.Window, error) {
	w := kpidomain.Window{
		Start: a.times.StartOfDay(start),
		End:   a.times.EndOfDay(end),
	}
	if w.Start.After(w.End) {
		return kpidomain.Window{}, fmt.Errorf("%w: %s after %s", kpidomain.ErrInvalidDateRange,
			w.Start.Format(instant.DateLayout), w.End.Format(instant.DateLayout))
	}
	return w, nil
}

// Monthly emits one row per calendar month from the month of window.Start
// through the month of window.End.
func (a *Aggregator) Monthly(subs []subscriptiondomain.Subscription, txs []subscriptiondomain.Transaction, window kpidomain.Window) []kpidomain.MonthlyRow {
	loc := a.times.Location()
	start := window.Start.In(loc)
	monthStart := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, loc)

	var rows []kpidomain.MonthlyRow
	for !monthStart.After(window.End) {
		next := monthStart.AddDate(0, 1, 0)
		bucket := kpidomain.Window{Start: monthStart, End: next.Add(-time.Nanosecond)}

		revenue := decimal.Zero
		for _, tx := range txs {
			if bucket.Contains(tx.ConfirmedAt) {
				revenue = revenue.Add(tx.NetAmount)
			}
		}
		active := lo.CountBy(subs, func(sub subscriptiondomain.Subscription) bool {
			return sub.ActiveAt(bucket.End)
		})
		averageTicket := decimal.Zero
		if active > 0 {
			averageTicket = money.Round2(revenue.Div(decimal.NewFromInt(int64(active))))
		}

		created, cancelled := countEvents(subs, bucket)
		rows = append(rows, kpidomain.MonthlyRow{
			Month:            monthStart.Format("2006-01"),
			Start:            bucket.Start,
			End:              bucket.End,
			NewSubscriptions: created,
			Cancellations:    cancelled,
			Revenue:          money.Round2(revenue),
			ActiveAtEnd:      active,
			AverageTicket:    averageTicket,
		})
		monthStart = next
	}
	return rows
}

// Weekly emits 7-day buckets starting on the Monday on or before
// window.Start.
func (a *Aggregator) Weekly(subs []subscriptiondomain.Subscription, window kpidomain.Window) []kpidomain.WeeklyRow {
	loc := a.times.Location()
	start := window.Start.In(loc)
	offset := (int(start.Weekday()) + 6) % 7
	weekStart := time.Date(start.Year(), start.Month(), start.Day()-offset, 0, 0, 0, 0, loc)

	var rows []kpidomain.WeeklyRow
	for !weekStart.After(window.End) {
		next := weekStart.AddDate(0, 0, 7)
		bucket := kpidomain.Window{Start: weekStart, End: next.Add(-time.Nanosecond)}

		created, cancelled := countEvents(subs, bucket)
		rows = append(rows, kpidomain.WeeklyRow{
			Start:            bucket.Start,
			End:              bucket.End,
			NewSubscriptions: created,
			Cancellations:    cancelled,
		})
		weekStart = next
	}
	return rows
}

func countEvents(subs []subscriptiondomain.Subscription, bucket kpidomain.Window) (created, cancelled int) {
	for _, sub := range subs {
		if bucket.Contains(sub.CreatedAt) {
			created++
		}
		if bucket.Contains(sub.CancelledAt) {
			cancelled++
		}
	}
	return created, cancelled
}

// Cohort analyses the report rows subscribed within the requested days.
func (a *Aggregator) Cohort(rows []reportdomain.Row, req kpidomain.CohortRequest) (kpidomain.CohortResult, error) {
	window, err := a.Window(req.Start, req.End)
	if err != nil {
		return kpidomain.CohortResult{}, err
	}

	members := lo.Filter(rows, func(row reportdomain.Row, _ int) bool {
		return window.Contains(row.SubscribedAt)
	})
	result := kpidomain.CohortResult{
		Start:         window.Start.Format(instant.DateLayout),
		End:           window.End.Format(instant.DateLayout),
		Size:          len(members),
		CurrentMRR:    decimal.Zero,
		AverageTicket: decimal.Zero,
		LTV:           decimal.Zero,
		Labels:        []string{},
		Retention:     []float64{},
		MRRTimeline:   []decimal.Decimal{},
	}
	if len(members) == 0 {
		return result, nil
	}

	size := decimal.NewFromInt(int64(len(members)))
	ticketSum := decimal.Zero
	var lifetimeDays float64
	for _, m := range members {
		ticketSum = ticketSum.Add(m.Ticket)
		if m.Active {
			result.Active++
			result.CurrentMRR = result.CurrentMRR.Add(m.Ticket)
		}
		if m.CancelledAt != nil {
			result.Cancelled++
			lifetimeDays += days(*m.SubscribedAt, *m.CancelledAt)
		}
	}

	averageDays := 0.0
	if result.Cancelled > 0 {
		averageDays = lifetimeDays / float64(result.Cancelled)
	}
	averageTicket := ticketSum.Div(size)

	result.ChurnRate = round(float64(result.Cancelled)/float64(result.Size)*100, 2)
	result.AverageLifetimeDays = round(averageDays, 1)
	result.AverageTicket = money.Round2(averageTicket)
	result.LTV = money.Round2(averageTicket.Mul(decimal.NewFromFloat(averageDays)).Div(decimal.NewFromFloat(a.cohort.DaysPerMonth)))
	result.CurrentMRR = money.Round2(result.CurrentMRR)

	// Retention runs every member up to now; the MRR curve stops
	// uncancelled members at the last index.
	lifetimes := lo.Map(members, func(m reportdomain.Row, _ int) int {
		end := req.Now
		if m.CancelledAt != nil {
			end = *m.CancelledAt
		}
		return a.monthsBetween(*m.SubscribedAt, end)
	})
	maxMonths := max(lo.Max(lifetimes)+1, 1)

	retained := make([]int, maxMonths)
	mrr := make([]decimal.Decimal, maxMonths)
	for i := range mrr {
		mrr[i] = decimal.Zero
	}
	for idx, m := range members {
		for i := 0; i <= lifetimes[idx] && i < maxMonths; i++ {
			retained[i]++
		}
		endMonth := maxMonths - 1
		if m.CancelledAt != nil {
			endMonth = lifetimes[idx]
		}
		for i := 0; i <= endMonth && i < maxMonths; i++ {
			mrr[i] = mrr[i].Add(m.Ticket)
		}
	}

	loc := a.times.Location()
	firstMonth := time.Date(window.Start.Year(), window.Start.Month(), 1, 0, 0, 0, 0, loc)
	result.Labels = make([]string, maxMonths)
	result.Retention = make([]float64, maxMonths)
	for i := range maxMonths {
		result.Labels[i] = firstMonth.AddDate(0, i, 0).Format("2006-01")
		result.Retention[i] = round(float64(retained[i])/float64(result.Size)*100, 2)
		mrr[i] = money.Round2(mrr[i])
	}
	result.MRRTimeline = mrr

	return result, nil
}

// DefaultCohortRequest covers the configured lookback ending today.
func (a *Aggregator) DefaultCohortRequest(now time.Time) kpidomain.CohortRequest {
	today := a.times.StartOfDay(now)
	return kpidomain.CohortRequest{
		Start: today.AddDate(0, 0, -a.cohort.LookbackDays),
		End:   today,
		Now:   now,
	}
}

// Global summarizes the whole report.
func (a *Aggregator) Global(rows []reportdomain.Row) kpidomain.GlobalKPIs {
	kpis := kpidomain.GlobalKPIs{
		TotalSubscriptions: len(rows),
		ByStatus:           make(map[string]int),
		TotalMRR:           decimal.Zero,
	}
	for _, row := range rows {
		kpis.ByStatus[string(row.Status)]++
		if row.Active {
			kpis.TotalActive++
			kpis.TotalMRR = kpis.TotalMRR.Add(row.Ticket)
		}
	}
	kpis.TotalNotActive = kpis.TotalSubscriptions - kpis.TotalActive
	kpis.TotalMRR = money.Round2(kpis.TotalMRR)
	return kpis
}

func (a *Aggregator) monthsBetween(from, to time.Time) int {
	return int(math.Floor(days(from, to) / a.cohort.DaysPerMonth))
}

func days(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
