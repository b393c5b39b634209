// Package ingest reads tabular inputs (spreadsheets, CSV files, database catalogs)
// into sheets of raw rows keyed by header string.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/tordrt/ldmgen/internal/db"
	"github.com/tordrt/ldmgen/internal/schema"
)

// Options configures database sources; file sources ignore them
type Options struct {
	Tables     []string
	SchemaName string
}

// Ingestor reads every sheet of an input
type Ingestor struct {
	logger *slog.Logger
}

// New creates an ingestor. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{logger: logger}
}

// Read loads all non-empty sheets of source, which is a file path or a database URL.
// It fails with schema.ErrInputUnreadable when the source cannot be opened or no
// sheet has a header row.
func (in *Ingestor) Read(ctx context.Context, source string, opts Options) ([]schema.Sheet, error) {
	start := time.Now()

	var (
		sheets []schema.Sheet
		err    error
	)
	if db.IsDatabaseURL(source) {
		sheets, err = readDatabase(ctx, source, opts)
	} else {
		switch ext := strings.ToLower(filepath.Ext(source)); ext {
		case ".xlsx", ".xlsm":
			sheets, err = readXLSX(source)
		case ".xls":
			sheets, err = readXLS(source)
		case ".csv", ".txt":
			sheets, err = readCSV(source)
		default:
			err = fmt.Errorf("unsupported input format %q (must be .xlsx, .xls, .csv or a database URL)", ext)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", schema.ErrInputUnreadable, source, err)
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s: no sheet has a header row", schema.ErrInputUnreadable, source)
	}

	rows := 0
	for _, s := range sheets {
		rows += len(s.Rows)
	}
	in.logger.Info("input read", "source", source, "sheets", len(sheets), "rows", rows, "duration", time.Since(start))
	return sheets, nil
}

func readDatabase(ctx context.Context, url string, opts Options) ([]schema.Sheet, error) {
	catalog, err := db.Open(ctx, url, opts.SchemaName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = catalog.Close(ctx) }()

	tables, err := catalog.ReadTables(ctx, opts.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	sheets := db.ToSheets(tables)
	out := sheets[:0]
	for _, s := range sheets {
		if len(s.Rows) > 0 {
			out = append(out, s)
		}
	}
	return out, nil
}

// buildSheet turns a grid of cells into a sheet. The first non-empty row is the
// header; later rows with every cell empty are skipped. Row numbers are 1-based
// positions in the source, so the first data row under a header on row 1 is row 2.
// It returns false when the grid has no header.
func buildSheet(name string, index int, grid [][]any) (schema.Sheet, bool) {
	headerAt := -1
	for i, row := range grid {
		if !isEmptyRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return schema.Sheet{}, false
	}

	sheet := schema.Sheet{Name: name, Index: index}
	columns := make([]int, 0, len(grid[headerAt]))
	seen := make(map[string]bool)
	for col, cell := range grid[headerAt] {
		h := strings.TrimSpace(cellString(cell))
		h = strings.TrimPrefix(h, "\ufeff")
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		sheet.Headers = append(sheet.Headers, h)
		columns = append(columns, col)
	}

	for i := headerAt + 1; i < len(grid); i++ {
		row := grid[i]
		if isEmptyRow(row) {
			continue
		}
		values := make(map[string]any, len(sheet.Headers))
		for j, h := range sheet.Headers {
			var v any
			if col := columns[j]; col < len(row) {
				v = normalizeCell(row[col])
			}
			values[h] = v
		}
		sheet.Rows = append(sheet.Rows, schema.RawRow{
			Values:      values,
			SourceSheet: name,
			SheetNumber: index,
			SourceRow:   i + 1,
		})
	}
	return sheet, true
}

// normalizeCell maps blank strings to the null marker and trims the rest
func normalizeCell(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func isEmptyRow(row []any) bool {
	for _, cell := range row {
		if normalizeCell(cell) != nil {
			return false
		}
	}
	return true
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func stringsToCells(row []string) []any {
	out := make([]any, len(row))
	for i, s := range row {
		out[i] = s
	}
	return out
}
