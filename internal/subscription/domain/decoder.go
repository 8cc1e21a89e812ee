package domain

import (
	"github.com/smallbiznis/kpireport/internal/instant"
	"github.com/smallbiznis/kpireport/internal/money"
	"github.com/smallbiznis/kpireport/internal/record"
)

// Decoder turns raw API records into typed views. Malformed fields degrade
// to "no value"; decoding never fails.
type Decoder struct {
	times *instant.Normalizer
	vocab Vocabulary
}

func NewDecoder(times *instant.Normalizer, vocab Vocabulary) *Decoder {
	return &Decoder{times: times, vocab: vocab.WithDefaults()}
}

func (d *Decoder) Normalizer() *instant.Normalizer {
	return d.times
}

func (d *Decoder) Vocabulary() Vocabulary {
	return d.vocab
}

func (d *Decoder) Subscription(rec record.Record) Subscription {
	sub := Subscription{
		ID:          record.GetString(rec, SubscriptionIDKeys...),
		LastStatus:  record.GetString(rec, "last_status"),
		ContactName: record.NestedString(rec, "contact", "name"),
		ProductName: record.NestedString(rec, "product", "name"),
		Raw:         rec,
	}

	for _, key := range SubscriptionIDKeys {
		if alias := record.GetString(rec, key); alias != "" && !contains(sub.Aliases, alias) {
			sub.Aliases = append(sub.Aliases, alias)
		}
	}

	if v, ok := record.Get(rec, CreatedAtKeys...); ok {
		sub.CreatedAt = d.times.ParsePtr(v)
	}
	if v, ok := record.Get(rec, "last_status_at"); ok {
		sub.LastStatusAt = d.times.ParsePtr(v)
	}
	if v, ok := record.Get(rec, "cancelled_at"); ok {
		sub.CancelledAt = d.times.ParsePtr(v)
	}
	if sub.CancelledAt == nil && d.vocab.IsCanceled(sub.LastStatus) {
		sub.CancelledAt = sub.LastStatusAt
	}

	if v, ok := record.Get(rec, "value"); ok {
		if price, ok := money.Parse(v); ok {
			sub.OfferPrice = &price
		}
	}
	if v, ok := record.Get(rec, "charged_times"); ok {
		if n, ok := record.Int(v); ok {
			sub.ChargedTimes = n
		}
	}

	return sub
}

func (d *Decoder) Transaction(rec record.Record) Transaction {
	tx := Transaction{
		ID:  record.GetString(rec, "id"),
		Raw: rec,
	}

	if v, ok := record.Nested(rec, "subscription", "id"); ok && record.Truthy(v) {
		tx.SubscriptionID = record.String(v)
	} else if v, ok := record.Get(rec, "subscription_id"); ok {
		tx.SubscriptionID = record.String(v)
	}

	if v, ok := record.Nested(rec, "dates", "confirmed_at"); ok {
		tx.ConfirmedAt = d.times.ParsePtr(v)
	}

	tx.NetAmount, tx.AmountResolved = money.NetAmountResolved(rec)
	return tx
}

func (d *Decoder) Subscriptions(recs []record.Record) []Subscription {
	out := make([]Subscription, 0, len(recs))
	for _, rec := range recs {
		out = append(out, d.Subscription(rec))
	}
	return out
}

func (d *Decoder) Transactions(recs []record.Record) []Transaction {
	out := make([]Transaction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, d.Transaction(rec))
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
