package extract

import (
	"strings"
	"unicode/utf8"

	"document-qa-platform/internal/errs"
)

// Result is the text pulled out of an uploaded file.
type Result struct {
	Text string
	// Degraded marks formats where extraction is best-effort (PDF,
	// spreadsheets) so callers can surface lowered expectations.
	Degraded bool
	Method   string
	Pages    int
}

// Formats this pipeline accepts.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatPDF      = "pdf"
	FormatXLSX     = "xlsx"
)

// DetectFormat maps a content type and filename to a supported format.
// The filename extension breaks ties when the content type is generic.
func DetectFormat(contentType, name string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	lower := strings.ToLower(name)

	switch {
	case ct == "application/pdf" || strings.HasSuffix(lower, ".pdf"):
		return FormatPDF, nil
	case ct == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" || strings.HasSuffix(lower, ".xlsx"):
		return FormatXLSX, nil
	case ct == "text/markdown" || strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown"):
		return FormatMarkdown, nil
	case strings.HasPrefix(ct, "text/") || strings.HasSuffix(lower, ".txt"):
		return FormatText, nil
	}
	return "", errs.NewValidationError("content_type", "unsupported format: "+contentType)
}

// Parse extracts text from raw file bytes.
func Parse(data []byte, contentType, name string) (*Result, error) {
	format, err := DetectFormat(contentType, name)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatPDF:
		return parsePDF(data)
	case FormatXLSX:
		return parseXLSX(data)
	case FormatMarkdown, FormatText:
		return parsePlain(data, format)
	}
	return nil, errs.NewValidationError("content_type", "unsupported format: "+format)
}

func parsePlain(data []byte, format string) (*Result, error) {
	if !utf8.Valid(data) {
		return nil, errs.NewExtractionError(format, errs.NewValidationError("body", "file is not valid UTF-8"))
	}
	return &Result{
		Text:   normalizeText(string(data)),
		Method: "plain",
	}, nil
}

// normalizeText unifies line endings and trims trailing space per line.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
