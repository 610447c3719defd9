package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"document-qa-platform/internal/errs"
	"document-qa-platform/internal/logger"
)

// parseXLSX flattens a workbook into text, one line per row with cells
// joined by tabs and a heading per sheet. Formatting, formulas and
// merged-cell structure are lost, so the result is marked Degraded.
func parseXLSX(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.NewExtractionError(FormatXLSX, fmt.Errorf("failed to open workbook: %w", err))
	}
	defer f.Close()

	var textBuilder strings.Builder
	sheets := f.GetSheetList()

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Warn("failed to read sheet", "sheet", sheet, "error", err)
			continue
		}

		var sheetBuilder strings.Builder
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			sheetBuilder.WriteString(line)
			sheetBuilder.WriteString("\n")
		}
		if sheetBuilder.Len() == 0 {
			continue
		}

		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n\n")
		}
		textBuilder.WriteString("Sheet: ")
		textBuilder.WriteString(sheet)
		textBuilder.WriteString("\n")
		textBuilder.WriteString(sheetBuilder.String())
	}

	text := normalizeText(textBuilder.String())
	if text == "" {
		return nil, errs.NewExtractionError(FormatXLSX, fmt.Errorf("no cell text in %d sheets", len(sheets)))
	}

	return &Result{
		Text:     text,
		Degraded: true,
		Method:   "excelize",
		Pages:    len(sheets),
	}, nil
}
