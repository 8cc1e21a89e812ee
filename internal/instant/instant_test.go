package instant

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	n := MustNew(DefaultZone)
	loc := n.Location()

	cases := []struct {
		name  string
		input any
		want  time.Time
		ok    bool
	}{
		{name: "nil", input: nil, ok: false},
		{name: "empty", input: "   ", ok: false},
		{name: "zero epoch", input: 0.0, ok: false},
		{name: "date only", input: "2024-01-10", want: time.Date(2024, 1, 10, 0, 0, 0, 0, loc), ok: true},
		{name: "date time", input: "2024-01-10 08:30:15", want: time.Date(2024, 1, 10, 8, 30, 15, 0, loc), ok: true},
		{name: "iso with zulu", input: "2024-01-10T08:30:15Z", want: time.Date(2024, 1, 10, 8, 30, 15, 0, loc), ok: true},
		{name: "fractional seconds", input: "2024-01-10T08:30:15.123456Z", want: time.Date(2024, 1, 10, 8, 30, 15, 0, loc), ok: true},
		{name: "short time falls back to date", input: "2024-01-10 08:30", want: time.Date(2024, 1, 10, 0, 0, 0, 0, loc), ok: true},
		{name: "epoch seconds", input: 1704855600.0, want: time.Unix(1704855600, 0).In(loc), ok: true},
		{name: "epoch millis", input: 1704855600000.0, want: time.Unix(1704855600, 0).In(loc), ok: true},
		{name: "epoch string", input: "1704855600", want: time.Unix(1704855600, 0).In(loc), ok: true},
		{name: "epoch json number", input: json.Number("1704855600"), want: time.Unix(1704855600, 0).In(loc), ok: true},
		{name: "unpadded date", input: "2024-1-5", want: time.Date(2024, 1, 5, 0, 0, 0, 0, loc), ok: true},
		{name: "unpadded date time", input: "2024-1-5 8:30:15", want: time.Date(2024, 1, 5, 8, 30, 15, 0, loc), ok: true},
		{name: "unpadded iso with zulu", input: "2024-1-5T08:30:15Z", want: time.Date(2024, 1, 5, 8, 30, 15, 0, loc), ok: true},
		{name: "unpadded short time falls back to date", input: "2024-1-5 08:30", want: time.Date(2024, 1, 5, 0, 0, 0, 0, loc), ok: true},
		{name: "unpadded bad month", input: "2024-13-5", ok: false},
		{name: "garbage", input: "yesterday", ok: false},
		{name: "bad month", input: "2024-13-01", ok: false},
		{name: "unsupported type", input: []any{"2024-01-10"}, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := n.Parse(tc.input)
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				return
			}
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
			assert.Equal(t, loc, got.Location())
		})
	}
}

func TestParseLocalizesDateOnlyInBusinessZone(t *testing.T) {
	n := MustNew(DefaultZone)

	got, ok := n.Parse("2024-01-10")
	require.True(t, ok)

	// Sao Paulo is UTC-3: local midnight is 03:00 UTC.
	assert.Equal(t, time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC), got.UTC())
}

func TestDayBoundaries(t *testing.T) {
	n := MustNew(DefaultZone)
	noon := time.Date(2024, 2, 29, 12, 0, 0, 0, n.Location())

	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, n.Location()), n.StartOfDay(noon))
	end := n.EndOfDay(noon)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, n.Location()), end.Add(time.Nanosecond))
	assert.True(t, Within(end, noon, end))
}

func TestParseDate(t *testing.T) {
	n := MustNew(DefaultZone)

	got, err := n.ParseDate("2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, n.Date(2024, time.February, 1), got)

	got, err = n.ParseDate(" 2024-2-1 ")
	require.NoError(t, err)
	assert.Equal(t, n.Date(2024, time.February, 1), got)

	_, err = n.ParseDate("01/02/2024")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestFormatDate(t *testing.T) {
	n := MustNew(DefaultZone)
	day := n.Date(2024, time.March, 5)

	assert.Equal(t, "2024-03-05", FormatDate(&day))
	assert.Equal(t, "", FormatDate(nil))
}

func TestNewRejectsUnknownZone(t *testing.T) {
	_, err := New("Mars/Olympus_Mons")
	assert.Error(t, err)
}
