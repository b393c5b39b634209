package ingest

import (
	"fmt"

	"github.com/extrame/xls"

	"github.com/tordrt/ldmgen/internal/schema"
)

// readXLS reads a legacy BIFF workbook. Cells, dates included, arrive as
// the formatted text the workbook displays.
func readXLS(path string) ([]schema.Sheet, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	var sheets []schema.Sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}

		grid := make([][]any, 0, int(ws.MaxRow)+1)
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				grid = append(grid, nil)
				continue
			}
			cells := make([]any, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			grid = append(grid, cells)
		}

		if sheet, ok := buildSheet(ws.Name, i+1, grid); ok {
			sheets = append(sheets, sheet)
		}
	}
	return sheets, nil
}
