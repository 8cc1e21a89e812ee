// Package dashboard renders the static cohort dashboard site.
package dashboard

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"github.com/smallbiznis/kpireport/internal/config"
	"github.com/smallbiznis/kpireport/internal/instant"
	kpidomain "github.com/smallbiznis/kpireport/internal/kpi/domain"
	kpiservice "github.com/smallbiznis/kpireport/internal/kpi/service"
	"github.com/smallbiznis/kpireport/internal/money"
	"github.com/smallbiznis/kpireport/internal/output"
	reportdomain "github.com/smallbiznis/kpireport/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	IndexFile  = "index.html"
	StyleFile  = "style.css"
	ScriptFile = "script.js"
	DataFile   = "data.json"

	title = "Subscription Cohort Dashboard"
)

//go:embed templates
var templates embed.FS

var indexTemplate = template.Must(template.ParseFS(templates, "templates/index.html.tmpl"))

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Times      *instant.Normalizer
	Aggregator *kpiservice.Aggregator
}

// Renderer writes the dashboard site into one directory.
type Renderer struct {
	dir        string
	log        *zap.Logger
	times      *instant.Normalizer
	aggregator *kpiservice.Aggregator
}

func NewRenderer(p Params) *Renderer {
	return &Renderer{
		dir:        p.Config.DashboardDir,
		log:        p.Log.Named("dashboard.renderer"),
		times:      p.Times,
		aggregator: p.Aggregator,
	}
}

func (r *Renderer) Dir() string {
	return r.dir
}

// Data is the document the dashboard script loads from data.json.
type Data struct {
	GeneratedAt   string                 `json:"generated_at"`
	Global        kpidomain.GlobalKPIs   `json:"global"`
	DefaultCohort kpidomain.CohortResult `json:"default_cohort"`
	Rows          []Row                  `json:"rows"`
}

// Row is the JSON shape of one report row.
type Row struct {
	ID             string      `json:"id"`
	SubscribedAt   string      `json:"subscribed_at"`
	CancelledAt    string      `json:"cancelled_at"`
	Status         string      `json:"status"`
	SubscriberName string      `json:"subscriber_name"`
	OfferName      string      `json:"offer_name"`
	Ticket         json.Number `json:"ticket"`
	RenewalCycles  int         `json:"renewal_cycles"`
	Active         bool        `json:"active"`
}

type card struct {
	Label string
	Value string
}

type page struct {
	Lang        string
	Title       string
	GeneratedAt string
	CohortStart string
	CohortEnd   string
	Cards       []card
}

// Build assembles the dashboard data for rows as seen at now.
func (r *Renderer) Build(rows []reportdomain.Row, now time.Time) (Data, error) {
	req := r.aggregator.DefaultCohortRequest(now)
	cohort, err := r.aggregator.Cohort(r.dayPrecision(rows), req)
	if err != nil {
		return Data{}, fmt.Errorf("default cohort: %w", err)
	}

	data := Data{
		GeneratedAt:   now.Format(time.RFC3339),
		Global:        r.aggregator.Global(rows),
		DefaultCohort: cohort,
		Rows:          make([]Row, 0, len(rows)),
	}
	for _, row := range rows {
		data.Rows = append(data.Rows, Row{
			ID:             row.ID,
			SubscribedAt:   instant.FormatDate(row.SubscribedAt),
			CancelledAt:    instant.FormatDate(row.CancelledAt),
			Status:         string(row.Status),
			SubscriberName: row.SubscriberName,
			OfferName:      row.OfferName,
			Ticket:         json.Number(money.Format(row.Ticket)),
			RenewalCycles:  row.RenewalCycles,
			Active:         row.Active,
		})
	}
	return data, nil
}

// dayPrecision cuts subscription dates to local midnight, the precision
// subscriptions.csv keeps, so the default cohort matches /api/cohort.
func (r *Renderer) dayPrecision(rows []reportdomain.Row) []reportdomain.Row {
	out := make([]reportdomain.Row, len(rows))
	for i, row := range rows {
		if row.SubscribedAt != nil {
			day := r.times.StartOfDay(*row.SubscribedAt)
			row.SubscribedAt = &day
		}
		if row.CancelledAt != nil {
			day := r.times.StartOfDay(*row.CancelledAt)
			row.CancelledAt = &day
		}
		out[i] = row
	}
	return out
}

// Render writes index.html, style.css, script.js and data.json.
func (r *Renderer) Render(rows []reportdomain.Row, now time.Time) ([]string, error) {
	data, err := r.Build(rows, now)
	if err != nil {
		return nil, err
	}

	index, err := renderIndex(data)
	if err != nil {
		return nil, err
	}
	body, err := output.EncodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", DataFile, err)
	}
	style, err := templates.ReadFile("templates/" + StyleFile)
	if err != nil {
		return nil, err
	}
	script, err := templates.ReadFile("templates/" + ScriptFile)
	if err != nil {
		return nil, err
	}

	files := []struct {
		name string
		data []byte
	}{
		{IndexFile, index},
		{StyleFile, style},
		{ScriptFile, script},
		{DataFile, body},
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(r.dir, f.name)
		if err := output.WriteFile(path, f.data); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	r.log.Info("dashboard rendered",
		zap.String("dir", r.dir),
		zap.Int("rows", len(data.Rows)),
		zap.Int("default_cohort_size", data.DefaultCohort.Size),
	)
	return paths, nil
}

func renderIndex(data Data) ([]byte, error) {
	p := page{
		Lang:        "en",
		Title:       title,
		GeneratedAt: data.GeneratedAt,
		CohortStart: data.DefaultCohort.Start,
		CohortEnd:   data.DefaultCohort.End,
		Cards: []card{
			{Label: "Total subscriptions", Value: fmt.Sprint(data.Global.TotalSubscriptions)},
			{Label: "Active", Value: fmt.Sprint(data.Global.TotalActive)},
			{Label: "Not active", Value: fmt.Sprint(data.Global.TotalNotActive)},
			{Label: "Total MRR", Value: money.Format(data.Global.TotalMRR)},
		},
	}
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render %s: %w", IndexFile, err)
	}
	return buf.Bytes(), nil
}
