package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"document-qa-platform/internal/errs"
	"document-qa-platform/internal/logger"
)

// parsePDF extracts plain text page by page. PDF text extraction is
// inherently lossy for scanned or layout-heavy files, so the result is
// always marked Degraded.
func parsePDF(data []byte) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.NewExtractionError(FormatPDF, fmt.Errorf("failed to open PDF: %w", err))
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()
	extracted := 0

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract PDF page", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		if extracted > 0 {
			textBuilder.WriteString("\n\n")
		}
		textBuilder.WriteString(text)
		extracted++
	}

	text := normalizeText(textBuilder.String())
	if text == "" {
		return nil, errs.NewExtractionError(FormatPDF, fmt.Errorf("no text extracted from %d pages", pages))
	}

	return &Result{
		Text:     text,
		Degraded: true,
		Method:   "go-pdf",
		Pages:    pages,
	}, nil
}
