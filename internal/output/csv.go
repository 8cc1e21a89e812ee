package output

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kpireport/internal/instant"
	kpidomain "github.com/smallbiznis/kpireport/internal/kpi/domain"
	"github.com/smallbiznis/kpireport/internal/money"
	reportdomain "github.com/smallbiznis/kpireport/internal/report/domain"
	subscriptiondomain "github.com/smallbiznis/kpireport/internal/subscription/domain"
)

var ErrMalformedReport = errors.New("malformed_report")

var (
	SubscriptionsHeader = []string{"id", "subscribed_at", "cancelled_at", "status", "subscriber_name", "offer_name", "ticket", "renewal_cycles", "active"}
	MonthlyHeader       = []string{"month", "month_start", "month_end", "new_subscriptions", "cancellations", "revenue", "active_at_end", "average_ticket"}
	WeeklyHeader        = []string{"week_start", "week_end", "new_subscriptions", "cancellations"}
)

func EncodeSubscriptions(rows []reportdomain.Row) ([]byte, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.ID,
			instant.FormatDate(row.SubscribedAt),
			instant.FormatDate(row.CancelledAt),
			string(row.Status),
			row.SubscriberName,
			row.OfferName,
			money.Format(row.Ticket),
			strconv.Itoa(row.RenewalCycles),
			formatBool(row.Active),
		})
	}
	return encodeCSV(SubscriptionsHeader, records)
}

func EncodeMonthly(rows []kpidomain.MonthlyRow) ([]byte, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.Month,
			instant.FormatDate(&row.Start),
			instant.FormatDate(&row.End),
			strconv.Itoa(row.NewSubscriptions),
			strconv.Itoa(row.Cancellations),
			money.Format(row.Revenue),
			strconv.Itoa(row.ActiveAtEnd),
			money.Format(row.AverageTicket),
		})
	}
	return encodeCSV(MonthlyHeader, records)
}

func EncodeWeekly(rows []kpidomain.WeeklyRow) ([]byte, error) {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			instant.FormatDate(&row.Start),
			instant.FormatDate(&row.End),
			strconv.Itoa(row.NewSubscriptions),
			strconv.Itoa(row.Cancellations),
		})
	}
	return encodeCSV(WeeklyHeader, records)
}

func encodeCSV(header []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

// ReadSubscriptions loads report rows back from a subscriptions CSV.
func ReadSubscriptions(path string, times *instant.Normalizer) ([]reportdomain.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeSubscriptions(f, times)
}

func DecodeSubscriptions(r io.Reader, times *instant.Normalizer) ([]reportdomain.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(SubscriptionsHeader)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrMalformedReport, err)
	}
	if strings.Join(header, ",") != strings.Join(SubscriptionsHeader, ",") {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrMalformedReport, header)
	}

	var rows []reportdomain.Row
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedReport, line, err)
		}

		row, err := decodeRow(rec, times)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedReport, line, err)
		}
		rows = append(rows, row)
	}
}

func decodeRow(rec []string, times *instant.Normalizer) (reportdomain.Row, error) {
	row := reportdomain.Row{
		ID:             rec[0],
		Status:         subscriptiondomain.Status(rec[3]),
		SubscriberName: rec[4],
		OfferName:      rec[5],
		Active:         strings.EqualFold(strings.TrimSpace(rec[8]), "TRUE"),
	}

	subscribedAt, err := optionalDate(rec[1], times)
	if err != nil {
		return row, err
	}
	row.SubscribedAt = subscribedAt
	cancelledAt, err := optionalDate(rec[2], times)
	if err != nil {
		return row, err
	}
	row.CancelledAt = cancelledAt

	ticket, err := decimal.NewFromString(rec[6])
	if err != nil {
		return row, fmt.Errorf("ticket %q: %w", rec[6], err)
	}
	row.Ticket = ticket

	cycles, err := strconv.Atoi(rec[7])
	if err != nil {
		return row, fmt.Errorf("renewal_cycles %q: %w", rec[7], err)
	}
	row.RenewalCycles = cycles
	return row, nil
}

func optionalDate(value string, times *instant.Normalizer) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := times.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
