package guru

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/smallbiznis/kpireport/internal/record"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive pair of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// ChunkDates splits [start, end] into consecutive ranges spanning at most
// maxDays calendar days each.
func ChunkDates(start, end time.Time, maxDays int) []DateRange {
	if maxDays <= 0 {
		maxDays = 1
	}
	start = truncateDay(start)
	end = truncateDay(end)

	var chunks []DateRange
	for cur := start; !cur.After(end); {
		chunkEnd := cur.AddDate(0, 0, maxDays-1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks = append(chunks, DateRange{From: cur, To: chunkEnd})
		cur = chunkEnd.AddDate(0, 0, 1)
	}
	return chunks
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Fetch retrieves every record of resource created or confirmed between
// the two calendar days, one chunk at a time, dropping repeated ids.
func (c *Client) Fetch(ctx context.Context, resource Resource, start, end time.Time) ([]record.Record, error) {
	var all []record.Record
	for _, chunk := range ChunkDates(start, end, c.maxRangeDays) {
		params := url.Values{}
		params.Set(resource.FromParam, chunk.From.Format(dateLayout))
		params.Set(resource.ToParam, chunk.To.Format(dateLayout))

		c.log.Info("fetching chunk",
			zap.String("resource", resource.Name),
			zap.String("from", chunk.From.Format(dateLayout)),
			zap.String("to", chunk.To.Format(dateLayout)),
		)
		err := c.Paginate(ctx, resource.Path, params, func(items []record.Record) error {
			all = append(all, items...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", resource.Name, err)
		}
	}

	records, dropped := Dedupe(all)
	c.metrics.AddRecordsFetched(resource.Name, len(records))
	c.metrics.AddDuplicatesDropped(resource.Name, dropped)
	c.log.Info("resource fetched",
		zap.String("resource", resource.Name),
		zap.Int("records", len(records)),
		zap.Int("duplicates", dropped),
	)
	return records, nil
}

// Dedupe keeps the first occurrence of every id. Records without an id are
// all kept.
func Dedupe(records []record.Record) ([]record.Record, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]record.Record, 0, len(records))
	for _, rec := range records {
		id := record.GetString(rec, "id")
		if id != "" {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, rec)
	}
	return out, len(records) - len(out)
}
