package output

import (
	"fmt"
	"path/filepath"

	"github.com/smallbiznis/kpireport/internal/config"
	kpidomain "github.com/smallbiznis/kpireport/internal/kpi/domain"
	reportdomain "github.com/smallbiznis/kpireport/internal/report/domain"
	"go.uber.org/zap"
)

// Tables groups everything one run writes as data files.
type Tables struct {
	Window  kpidomain.Window
	Rows    []reportdomain.Row
	Global  kpidomain.GlobalKPIs
	Monthly []kpidomain.MonthlyRow
	Weekly  []kpidomain.WeeklyRow
}

// Writer places run outputs under one directory.
type Writer struct {
	dir string
	log *zap.Logger
}

func NewWriter(cfg config.Config, log *zap.Logger) *Writer {
	return &Writer{dir: cfg.OutDir, log: log.Named("output.writer")}
}

func (w *Writer) Dir() string {
	return w.dir
}

func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Write replaces the named file and returns its path.
func (w *Writer) Write(name string, data []byte) (string, error) {
	path := w.Path(name)
	if err := WriteFile(path, data); err != nil {
		return "", err
	}
	w.log.Info("file written", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

// WriteTables writes the three CSV tables and kpis.json.
func (w *Writer) WriteTables(t Tables) ([]string, error) {
	subscriptions, err := EncodeSubscriptions(t.Rows)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", SubscriptionsFile, err)
	}
	monthly, err := EncodeMonthly(t.Monthly)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", MonthlyFile, err)
	}
	weekly, err := EncodeWeekly(t.Weekly)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", WeeklyFile, err)
	}
	kpis, err := EncodeJSON(NewKPIDocument(t.Window, t.Global, t.Monthly, t.Weekly))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", KPIsFile, err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{SubscriptionsFile, subscriptions},
		{MonthlyFile, monthly},
		{WeeklyFile, weekly},
		{KPIsFile, kpis},
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path, err := w.Write(f.name, f.data)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
