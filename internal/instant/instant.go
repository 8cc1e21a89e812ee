// Package instant normalizes the timestamp encodings found in billing API
// payloads into zone-aware instants of the business timezone.
package instant

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	DefaultZone = "America/Sao_Paulo"

	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"

	// Unpadded variants accept one-digit month, day and clock fields.
	looseDateLayout     = "2006-1-2"
	looseDateTimeLayout = "2006-1-2 15:4:5"

	// epochMillisThreshold separates epoch seconds from epoch milliseconds.
	epochMillisThreshold = 1e12
)

var ErrInvalidDate = errors.New("invalid_date")

// Normalizer parses timestamps into a fixed business timezone.
type Normalizer struct {
	loc *time.Location
}

// New loads zone and returns a Normalizer bound to it. An empty zone
// selects DefaultZone.
func New(zone string) (*Normalizer, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return &Normalizer{loc: loc}, nil
}

// MustNew is New for static zones known to exist.
func MustNew(zone string) *Normalizer {
	n, err := New(zone)
	if err != nil {
		panic(err)
	}
	return n
}

// Location returns the business timezone.
func (n *Normalizer) Location() *time.Location {
	if n == nil || n.loc == nil {
		return time.UTC
	}
	return n.loc
}

// Parse converts v into an instant. Unparsable or empty input yields false;
// it never fails the caller.
func (n *Normalizer) Parse(v any) (time.Time, bool) {
	switch cast := v.(type) {
	case nil:
		return time.Time{}, false
	case float64:
		return n.fromEpoch(cast)
	case float32:
		return n.fromEpoch(float64(cast))
	case int:
		return n.fromEpoch(float64(cast))
	case int64:
		return n.fromEpoch(float64(cast))
	case json.Number:
		parsed, err := cast.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return n.fromEpoch(parsed)
	case string:
		return n.parseString(cast)
	case time.Time:
		if cast.IsZero() {
			return time.Time{}, false
		}
		return cast.In(n.Location()), true
	}
	return time.Time{}, false
}

// ParsePtr is Parse returning nil for "no value".
func (n *Normalizer) ParsePtr(v any) *time.Time {
	t, ok := n.Parse(v)
	if !ok {
		return nil
	}
	return &t
}

func (n *Normalizer) fromEpoch(ts float64) (time.Time, bool) {
	if ts == 0 || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return time.Time{}, false
	}
	return n.epoch(ts), true
}

func (n *Normalizer) epoch(ts float64) time.Time {
	if ts > epochMillisThreshold {
		ts = ts / 1000
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).In(n.Location())
}

func (n *Normalizer) parseString(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if isEpochString(s) {
		ts, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return n.epoch(ts), true
	}

	s = strings.ReplaceAll(s, "T", " ")
	s = strings.TrimSuffix(s, "Z")
	if idx := strings.Index(s, "."); idx >= 0 {
		s = s[:idx]
	}

	layout := DateLayout
	base := s
	if len(s) >= len(DateTimeLayout) {
		layout = DateTimeLayout
		base = s[:len(DateTimeLayout)]
	} else if len(s) > len(DateLayout) {
		base = s[:len(DateLayout)]
	}

	parsed, err := time.ParseInLocation(layout, base, n.Location())
	if err != nil {
		return n.parseLoose(s)
	}
	return parsed, true
}

// parseLoose retries s with unpadded layouts. A time part that does not
// parse falls back to the date, like the padded path.
func (n *Normalizer) parseLoose(s string) (time.Time, bool) {
	if parsed, err := time.ParseInLocation(looseDateTimeLayout, s, n.Location()); err == nil {
		return parsed, true
	}
	day, _, _ := strings.Cut(s, " ")
	parsed, err := time.ParseInLocation(looseDateLayout, day, n.Location())
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// isEpochString matches digits with at most one decimal point.
func isEpochString(s string) bool {
	digits := 0
	dots := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// ParseDate parses a YYYY-MM-DD calendar day at local midnight. Month and
// day may be unpadded.
func (n *Normalizer) ParseDate(s string) (time.Time, error) {
	value := strings.TrimSpace(s)
	parsed, err := time.ParseInLocation(DateLayout, value, n.Location())
	if err != nil {
		parsed, err = time.ParseInLocation(looseDateLayout, value, n.Location())
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return parsed, nil
}

// Date returns local midnight of the given calendar day.
func (n *Normalizer) Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, n.Location())
}

// StartOfDay truncates t to local midnight.
func (n *Normalizer) StartOfDay(t time.Time) time.Time {
	local := t.In(n.Location())
	return n.Date(local.Year(), local.Month(), local.Day())
}

// EndOfDay returns the last instant of t's local calendar day.
func (n *Normalizer) EndOfDay(t time.Time) time.Time {
	return n.StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// FormatDate renders an optional instant as YYYY-MM-DD, empty when absent.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// Within reports start <= t <= end.
func Within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
