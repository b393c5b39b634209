package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tordrt/ldmgen/internal/schema"
)

func readXLSX(path string) ([]schema.Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sheets []schema.Sheet
	for i, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}

		grid := make([][]any, len(rows))
		for r, row := range rows {
			grid[r] = make([]any, len(row))
			for c, formatted := range row {
				grid[r][c] = xlsxCell(f, name, c, r, formatted)
			}
		}

		if sheet, ok := buildSheet(name, i+1, grid); ok {
			sheets = append(sheets, sheet)
		}
	}
	return sheets, nil
}

// xlsxCell returns the formatted text of a cell, or a time.Time for date cells
func xlsxCell(f *excelize.File, sheet string, col, row int, formatted string) any {
	if strings.TrimSpace(formatted) == "" {
		return nil
	}
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return formatted
	}

	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return formatted
	}

	switch typ {
	case excelize.CellTypeDate:
		raw, err := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
		if err == nil {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				return t
			}
		}
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if !hasDateFormat(f, sheet, axis) {
			return formatted
		}
		raw, err := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
		if err != nil {
			return formatted
		}
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return formatted
		}
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t
		}
	}
	return formatted
}

// hasDateFormat reports whether the cell's number format renders a date
func hasDateFormat(f *excelize.File, sheet, axis string) bool {
	styleID, err := f.GetCellStyle(sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}

	// Built-in date and time formats
	switch {
	case style.NumFmt >= 14 && style.NumFmt <= 22, style.NumFmt >= 45 && style.NumFmt <= 47:
		return true
	}

	if style.CustomNumFmt != nil {
		format := strings.ToLower(*style.CustomNumFmt)
		return strings.Contains(format, "yy") || (strings.Contains(format, "d") && strings.Contains(format, "m"))
	}
	return false
}
