package guru

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/kpireport/internal/config"
	"github.com/smallbiznis/kpireport/internal/observability/metrics"
	"github.com/smallbiznis/kpireport/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(baseURL string) config.GuruConfig {
	return config.GuruConfig{
		BaseURL:        baseURL,
		Token:          "secret",
		PageSize:       2,
		MaxRangeDays:   180,
		RequestTimeout: 5 * time.Second,
		RetryMax:       3,
	}
}

func newTestClient(t *testing.T, baseURL string, m *metrics.RunMetrics) *Client {
	t.Helper()
	c, err := New(testConfig(baseURL), zap.NewNop(), m, WithRetryWait(time.Millisecond, 5*time.Millisecond), WithPageRate(0))
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewRequiresToken(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.Token = ""

	_, err := New(cfg, zap.NewNop(), nil)
	assert.ErrorIs(t, err, config.ErrMissingToken)
}

func TestPaginateFollowsCursor(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		assert.Equal(t, "/subscriptions", r.URL.Path)

		switch r.URL.Query().Get("cursor") {
		case "":
			writeJSON(t, w, map[string]any{
				"data":           []map[string]any{{"id": "a"}, {"id": "b"}},
				"has_more_pages": true,
				"next_cursor":    "c2",
			})
		case "c2":
			writeJSON(t, w, map[string]any{
				"data":           []map[string]any{{"id": "c"}},
				"has_more_pages": false,
			})
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))
	defer server.Close()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewRunMetrics(registry, metrics.Config{})
	require.NoError(t, err)
	client := newTestClient(t, server.URL, m)

	var got []string
	err = client.Paginate(context.Background(), "/subscriptions", nil, func(items []record.Record) error {
		for _, item := range items {
			got = append(got, record.GetString(item, "id"))
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2.0, counterValue(t, registry, "kpireport_pages_fetched_total"))
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestPaginateStopsOnEmptyPage(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, map[string]any{"data": []any{}, "has_more_pages": true, "next_cursor": "x"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	err := client.Paginate(context.Background(), "/transactions", nil, func([]record.Record) error {
		t.Fatal("no items expected")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPaginateRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, map[string]any{"data": []map[string]any{{"id": "ok"}}})
	}))
	defer server.Close()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewRunMetrics(registry, metrics.Config{})
	require.NoError(t, err)
	client := newTestClient(t, server.URL, m)

	var count int
	err = client.Paginate(context.Background(), "/transactions", nil, func(items []record.Record) error {
		count += len(items)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2.0, counterValue(t, registry, "kpireport_fetch_retries_total"))
}

func TestPaginateFailsAfterRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	err := client.Paginate(context.Background(), "/transactions", nil, func([]record.Record) error { return nil })

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "502")
}

func TestPaginateDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, nil)
	err := client.Paginate(context.Background(), "/subscriptions", nil, func([]record.Record) error { return nil })

	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchChunksAndDedupes(t *testing.T) {
	var ranges []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ranges = append(ranges, q.Get("confirmed_at_ini")+".."+q.Get("confirmed_at_end"))
		writeJSON(t, w, map[string]any{
			"data": []map[string]any{{"id": "dup"}, {"id": q.Get("confirmed_at_ini")}, {"amount": 1}},
		})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxRangeDays = 10
	client, err := New(cfg, zap.NewNop(), nil, WithPageRate(0))
	require.NoError(t, err)

	loc := time.UTC
	records, err := client.Fetch(context.Background(), Transactions,
		time.Date(2024, 1, 1, 0, 0, 0, 0, loc), time.Date(2024, 1, 15, 0, 0, 0, 0, loc))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-01..2024-01-10", "2024-01-11..2024-01-15"}, ranges)
	assert.Len(t, records, 5, "dup kept once, both id-less records kept")
}
