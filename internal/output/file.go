// Package output writes the report tables to disk.
package output

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	SubscriptionsFile = "subscriptions.csv"
	MonthlyFile       = "monthly_kpis.csv"
	WeeklyFile        = "weekly_kpis.csv"
	KPIsFile          = "kpis.json"
	PDFFile           = "kpis.pdf"
	MetricsFile       = "metrics.prom"
)

// WriteFile replaces path with data through a temporary sibling file so
// readers never observe a partial table.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
