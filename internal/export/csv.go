// Package export writes query results to CSV files for upload.
package export

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Writer generates CSV files from query result rows.
type Writer struct {
	dir string
}

// NewWriter creates a CSV writer. An empty dir means the system temp dir.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Writer{dir: dir}
}

// Generate writes rows to a CSV file and returns its path. The header uses
// the given column order; output is RFC 4180 with CRLF line endings.
func (w *Writer) Generate(data []map[string]any, columns []string, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("cannot generate CSV from empty data")
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("cannot generate CSV without columns")
	}

	if filename == "" {
		filename = fmt.Sprintf("app_portfolio_export_%s.csv", time.Now().Format("20060102_150405"))
	}
	if !strings.HasSuffix(filename, ".csv") {
		filename += ".csv"
	}

	if err := os.MkdirAll(w.dir, 0700); err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cw.UseCRLF = true

	if err := cw.Write(columns); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(columns))
	for _, row := range data {
		for i, col := range columns {
			record[i] = cellString(row[col])
		}
		if err := cw.Write(record); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	log.Printf("[export] generated %s with %d rows", path, len(data))
	return path, nil
}

// Cleanup removes a generated file after upload.
func (w *Writer) Cleanup(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[export] failed to clean up %s: %v", path, err)
	}
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", val), "0"), ".")
	default:
		return fmt.Sprintf("%v", val)
	}
}
