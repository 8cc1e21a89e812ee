// Package money extracts monetary amounts from transaction payloads.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/kpireport/internal/record"
)

// fallbackKeys are tried in order when payment.net is absent or unparsable.
var fallbackKeys = []string{"net_amount", "value", "total", "gross"}

// fallbackParents are the nested objects searched for each fallback key
// before a flat top-level lookup.
var fallbackParents = []string{"payment", "invoice"}

// Parse coerces v to a decimal, accepting a comma decimal separator.
func Parse(v any) (decimal.Decimal, bool) {
	if v == nil {
		return decimal.Zero, false
	}
	switch v.(type) {
	case bool, map[string]any, record.Record, []any:
		return decimal.Zero, false
	}
	raw := strings.ReplaceAll(record.String(v), ",", ".")
	if raw == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// NetAmount returns the transaction's net value, or zero when nothing
// resolves.
func NetAmount(tx record.Record) decimal.Decimal {
	amount, _ := NetAmountResolved(tx)
	return amount
}

// NetAmountResolved is NetAmount that also reports whether any candidate
// field produced the value.
func NetAmountResolved(tx record.Record) (decimal.Decimal, bool) {
	if v, ok := record.Nested(tx, "payment", "net"); ok {
		if amount, ok := Parse(v); ok {
			return amount, true
		}
	}

	for _, key := range fallbackKeys {
		v, ok := firstCandidate(tx, key)
		if !ok {
			continue
		}
		if amount, ok := Parse(v); ok {
			return amount, true
		}
	}
	return decimal.Zero, false
}

func firstCandidate(tx record.Record, key string) (any, bool) {
	for _, parent := range fallbackParents {
		if v, ok := record.Nested(tx, parent, key); ok && record.Truthy(v) {
			return v, true
		}
	}
	// The flat field is the last resort, so any non-nil value counts.
	return record.Get(tx, key)
}

// Round2 rounds half away from zero to cents.
func Round2(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// Format renders amount with exactly two fractional digits.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
