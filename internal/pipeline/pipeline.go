// Package pipeline runs one full report extraction: fetch, derive,
// aggregate, write and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/smallbiznis/kpireport/internal/clock"
	"github.com/smallbiznis/kpireport/internal/config"
	"github.com/smallbiznis/kpireport/internal/dashboard"
	"github.com/smallbiznis/kpireport/internal/guru"
	"github.com/smallbiznis/kpireport/internal/instant"
	kpidomain "github.com/smallbiznis/kpireport/internal/kpi/domain"
	kpiservice "github.com/smallbiznis/kpireport/internal/kpi/service"
	obslogger "github.com/smallbiznis/kpireport/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/kpireport/internal/observability/metrics"
	"github.com/smallbiznis/kpireport/internal/observability/tracing"
	"github.com/smallbiznis/kpireport/internal/output"
	"github.com/smallbiznis/kpireport/internal/providers/pdf"
	"github.com/smallbiznis/kpireport/internal/providers/storage"
	"github.com/smallbiznis/kpireport/internal/record"
	reportdomain "github.com/smallbiznis/kpireport/internal/report/domain"
	reportservice "github.com/smallbiznis/kpireport/internal/report/service"
	subscriptiondomain "github.com/smallbiznis/kpireport/internal/subscription/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves raw vendor records for a calendar-day range.
type Fetcher interface {
	Fetch(ctx context.Context, resource guru.Resource, start, end time.Time) ([]record.Record, error)
}

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Times      *instant.Normalizer
	GenID      *snowflake.Node
	Decoder    *subscriptiondomain.Decoder
	Fetcher    Fetcher
	Joiner     *reportservice.Joiner
	Aggregator *kpiservice.Aggregator
	Writer     *output.Writer
	Dashboard  *dashboard.Renderer
	PDF        pdf.Provider
	Publisher  storage.Publisher
	Metrics    *obsmetrics.RunMetrics `optional:"true"`
}

type Pipeline struct {
	cfg        config.Config
	log        *zap.Logger
	clock      clock.Clock
	times      *instant.Normalizer
	genID      *snowflake.Node
	decoder    *subscriptiondomain.Decoder
	fetcher    Fetcher
	joiner     *reportservice.Joiner
	aggregator *kpiservice.Aggregator
	writer     *output.Writer
	dashboard  *dashboard.Renderer
	pdf        pdf.Provider
	publisher  storage.Publisher
	metrics    *obsmetrics.RunMetrics
}

func NewPipeline(p Params) *Pipeline {
	return &Pipeline{
		cfg:        p.Config,
		log:        p.Log.Named("pipeline"),
		clock:      p.Clock,
		times:      p.Times,
		genID:      p.GenID,
		decoder:    p.Decoder,
		fetcher:    p.Fetcher,
		joiner:     p.Joiner,
		aggregator: p.Aggregator,
		writer:     p.Writer,
		dashboard:  p.Dashboard,
		pdf:        p.PDF,
		publisher:  p.Publisher,
		metrics:    p.Metrics,
	}
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Window    kpidomain.Window
	Report    reportdomain.Report
	Monthly   []kpidomain.MonthlyRow
	Weekly    []kpidomain.WeeklyRow
	Global    kpidomain.GlobalKPIs
	Files     []string
	Published int
}

// Run executes every stage in order. The first failing stage aborts the
// run and its error is returned.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	runID := p.genID.Generate().String()
	ctx = obslogger.WithRunID(ctx, runID)
	ctx, span := tracing.Start(ctx, "pipeline.run", attribute.String("run_id", runID))
	defer span.End()

	log := obslogger.WithContext(ctx, p.log)
	started := p.clock.Now()
	if p.cfg.LocalMode {
		log.Info("local mode: .env.local overrides applied")
	}

	res, err := p.run(ctx, runID, started)
	finished := p.clock.Now()
	p.metrics.ObserveRun(started, finished, err)
	if werr := p.writeMetrics(ctx, res.RunID); werr != nil {
		log.Warn("metrics textfile not written", zap.Error(werr))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("run failed", zap.Error(err), zap.Duration("duration", finished.Sub(started)))
		return res, err
	}

	log.Info("run finished",
		zap.Int("rows", len(res.Report.Rows)),
		zap.Int("files", len(res.Files)),
		zap.Int("published", res.Published),
		zap.Duration("duration", finished.Sub(started)),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, now time.Time) (Result, error) {
	res := Result{RunID: runID}

	window, err := p.ResolveWindow(now)
	if err != nil {
		return res, err
	}
	res.Window = window

	var subRecs, txRecs []record.Record
	err = p.stage(ctx, "fetch", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			recs, err := p.fetcher.Fetch(gctx, guru.Subscriptions, window.Start, window.End)
			subRecs = recs
			return err
		})
		g.Go(func() error {
			recs, err := p.fetcher.Fetch(gctx, guru.Transactions, window.Start, window.End)
			txRecs = recs
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return res, err
	}

	var subs []subscriptiondomain.Subscription
	var txs []subscriptiondomain.Transaction
	_ = p.stage(ctx, "build", func(ctx context.Context) error {
		subs = p.decoder.Subscriptions(subRecs)
		txs = p.decoder.Transactions(txRecs)
		p.metrics.AddTransactionsWithoutAmount(lo.CountBy(txs, func(tx subscriptiondomain.Transaction) bool {
			return !tx.AmountResolved
		}))

		res.Report = p.joiner.Build(subs, txs, window.End)
		p.metrics.AddSubscriptionsWithoutID(res.Report.SkippedWithoutID)
		p.metrics.SetReportRows(res.Report.CountByStatus())
		return nil
	})

	_ = p.stage(ctx, "aggregate", func(ctx context.Context) error {
		res.Monthly = p.aggregator.Monthly(subs, txs, window)
		res.Weekly = p.aggregator.Weekly(subs, window)
		res.Global = p.aggregator.Global(res.Report.Rows)
		return nil
	})

	err = p.stage(ctx, "write", func(ctx context.Context) error {
		files, err := p.writer.WriteTables(output.Tables{
			Window:  window,
			Rows:    res.Report.Rows,
			Global:  res.Global,
			Monthly: res.Monthly,
			Weekly:  res.Weekly,
		})
		if err != nil {
			return err
		}
		res.Files = append(res.Files, files...)

		path, err := p.writePDF(ctx, res, now)
		if err != nil {
			return err
		}
		if path != "" {
			res.Files = append(res.Files, path)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	err = p.stage(ctx, "dashboard", func(ctx context.Context) error {
		files, err := p.dashboard.Render(res.Report.Rows, now)
		if err != nil {
			return err
		}
		res.Files = append(res.Files, files...)
		return nil
	})
	if err != nil {
		return res, err
	}

	err = p.stage(ctx, "publish", func(ctx context.Context) error {
		n, err := p.publish(ctx, runID, res.Files)
		res.Published = n
		return err
	})
	return res, err
}

// ResolveWindow turns START_DATE and END_DATE into the run window. The end
// defaults to today and the start to January 1 of the end's year.
func (p *Pipeline) ResolveWindow(now time.Time) (kpidomain.Window, error) {
	end := p.times.StartOfDay(now)
	if p.cfg.EndDate != "" {
		parsed, err := p.times.ParseDate(p.cfg.EndDate)
		if err != nil {
			return kpidomain.Window{}, fmt.Errorf("END_DATE: %w", err)
		}
		end = parsed
	}

	start := p.times.Date(end.Year(), time.January, 1)
	if p.cfg.StartDate != "" {
		parsed, err := p.times.ParseDate(p.cfg.StartDate)
		if err != nil {
			return kpidomain.Window{}, fmt.Errorf("START_DATE: %w", err)
		}
		start = parsed
	}

	return p.aggregator.Window(start, end)
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.Start(ctx, "pipeline."+name)
	defer span.End()

	log := obslogger.WithContext(ctx, p.log).With(zap.String("stage", name))
	started := p.clock.Now()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("stage failed", zap.Error(err), zap.Duration("duration", p.clock.Now().Sub(started)))
		return fmt.Errorf("%s: %w", name, err)
	}

	log.Info("stage finished", zap.Duration("duration", p.clock.Now().Sub(started)))
	return nil
}

func (p *Pipeline) writePDF(ctx context.Context, res Result, now time.Time) (string, error) {
	reader, err := p.pdf.GenerateKPIReport(ctx, kpiReportData(res, now))
	if err != nil {
		return "", fmt.Errorf("generate pdf: %w", err)
	}
	if reader == nil {
		return "", nil
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	return p.writer.Write(output.PDFFile, body)
}

func (p *Pipeline) writeMetrics(ctx context.Context, runID string) error {
	if p.metrics == nil {
		return nil
	}
	path := p.writer.Path(output.MetricsFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := p.metrics.WriteTextfile(path); err != nil {
		return err
	}
	if runID == "" {
		return nil
	}
	_, err := p.publish(ctx, runID, []string{path})
	return err
}

// publish uploads files under runs/<run id>/ and latest/. Dashboard files
// keep a dashboard/ prefix.
func (p *Pipeline) publish(ctx context.Context, runID string, files []string) (int, error) {
	if p.publisher == nil || !p.publisher.Enabled() {
		return 0, nil
	}

	var errs []error
	published := 0
	for _, path := range files {
		body, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rel := p.objectName(path)
		for _, key := range []string{"runs/" + runID + "/" + rel, "latest/" + rel} {
			if err := p.publisher.Publish(ctx, key, body); err != nil {
				errs = append(errs, err)
				continue
			}
			published++
		}
	}
	return published, errors.Join(errs...)
}

func (p *Pipeline) objectName(path string) string {
	name := filepath.Base(path)
	if filepath.Clean(filepath.Dir(path)) == filepath.Clean(p.dashboard.Dir()) {
		return "dashboard/" + name
	}
	return name
}
