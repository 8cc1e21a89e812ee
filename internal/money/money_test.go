package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kpireport/internal/record"
	"github.com/stretchr/testify/assert"
)

func TestNetAmount(t *testing.T) {
	cases := []struct {
		name     string
		tx       record.Record
		want     string
		resolved bool
	}{
		{
			name:     "payment net with comma",
			tx:       record.Record{"payment": map[string]any{"net": "123,45"}},
			want:     "123.45",
			resolved: true,
		},
		{
			name:     "payment net numeric",
			tx:       record.Record{"payment": map[string]any{"net": 99.9}},
			want:     "99.9",
			resolved: true,
		},
		{
			name: "unparsable net falls through to payment fallback",
			tx: record.Record{"payment": map[string]any{
				"net":        "n/a",
				"net_amount": "80.10",
			}},
			want:     "80.1",
			resolved: true,
		},
		{
			name:     "invoice value when payment lacks it",
			tx:       record.Record{"invoice": map[string]any{"value": "55"}},
			want:     "55",
			resolved: true,
		},
		{
			name:     "flat total",
			tx:       record.Record{"total": 12.5},
			want:     "12.5",
			resolved: true,
		},
		{
			name: "unparsable candidate skipped",
			tx: record.Record{
				"net_amount": "abc",
				"gross":      "70,00",
			},
			want:     "70",
			resolved: true,
		},
		{
			name: "payment preferred over invoice and flat",
			tx: record.Record{
				"payment": map[string]any{"value": "1"},
				"invoice": map[string]any{"value": "2"},
				"value":   "3",
			},
			want:     "1",
			resolved: true,
		},
		{
			name:     "flat zero value is kept",
			tx:       record.Record{"value": 0.0, "total": 50.0},
			want:     "0",
			resolved: true,
		},
		{
			name: "falsy nested value defers to flat",
			tx: record.Record{
				"payment": map[string]any{"value": 0},
				"value":   "7,5",
			},
			want:     "7.5",
			resolved: true,
		},
		{
			name:     "empty flat value falls through",
			tx:       record.Record{"net_amount": "", "total": 50.0},
			want:     "50",
			resolved: true,
		},
		{
			name:     "nothing resolves",
			tx:       record.Record{"status": "approved"},
			want:     "0",
			resolved: false,
		},
		{
			name:     "thousands separator is unparsable",
			tx:       record.Record{"payment": map[string]any{"net": "1.234,56"}},
			want:     "0",
			resolved: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, resolved := NetAmountResolved(tc.tx)
			assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "want %s got %s", tc.want, got)
			assert.Equal(t, tc.resolved, resolved)
			assert.True(t, got.Equal(NetAmount(tc.tx)))
		})
	}
}

func TestParse(t *testing.T) {
	amount, ok := Parse("49,90")
	assert.True(t, ok)
	assert.Equal(t, "49.90", Format(amount))

	_, ok = Parse(true)
	assert.False(t, ok)

	_, ok = Parse("")
	assert.False(t, ok)
}

func TestFormatRoundsToCents(t *testing.T) {
	assert.Equal(t, "10.13", Format(Round2(decimal.RequireFromString("10.125"))))
	assert.Equal(t, "0.00", Format(decimal.Zero))
}
