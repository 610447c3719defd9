package extract

import (
	"strings"
	"testing"

	"document-qa-platform/internal/errs"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		contentType string
		name        string
		want        string
	}{
		{"application/pdf", "report.pdf", FormatPDF},
		{"application/octet-stream", "report.pdf", FormatPDF},
		{"text/plain; charset=utf-8", "notes.txt", FormatText},
		{"text/markdown", "readme.md", FormatMarkdown},
		{"application/octet-stream", "guide.markdown", FormatMarkdown},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "data.xlsx", FormatXLSX},
		{"application/octet-stream", "data.xlsx", FormatXLSX},
	}

	for _, tc := range cases {
		got, err := DetectFormat(tc.contentType, tc.name)
		if err != nil {
			t.Errorf("DetectFormat(%q, %q): %v", tc.contentType, tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("DetectFormat(%q, %q) = %q, want %q", tc.contentType, tc.name, got, tc.want)
		}
	}
}

func TestDetectFormatUnsupported(t *testing.T) {
	_, err := DetectFormat("application/zip", "archive.zip")
	if !errs.IsValidation(err) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestParsePlainText(t *testing.T) {
	res, err := Parse([]byte("line one\r\nline two  \r\n\r\nline three"), "text/plain", "notes.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Degraded {
		t.Error("plain text should not be degraded")
	}
	want := "line one\nline two\n\nline three"
	if res.Text != want {
		t.Errorf("text = %q, want %q", res.Text, want)
	}
}

func TestParsePlainTextRejectsBinary(t *testing.T) {
	_, err := Parse([]byte{0xff, 0xfe, 0x00, 0x80}, "text/plain", "junk.txt")
	if !errs.IsExtraction(err) {
		t.Errorf("err = %v, want ExtractionError", err)
	}
}

func TestParsePDFRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not a pdf at all"), "application/pdf", "fake.pdf")
	if err == nil {
		t.Fatal("expected error for non-PDF bytes")
	}
	if !errs.IsExtraction(err) {
		t.Errorf("err = %v, want ExtractionError", err)
	}
}

func TestParseXLSXRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not a workbook"), "", "fake.xlsx")
	if !errs.IsExtraction(err) {
		t.Errorf("err = %v, want ExtractionError", err)
	}
}

func TestNormalizeText(t *testing.T) {
	got := normalizeText("  a  \r\nb\rc\n\n\nd  ")
	if strings.Contains(got, "\r") {
		t.Errorf("carriage returns survived: %q", got)
	}
	if !strings.HasPrefix(got, "a") || !strings.HasSuffix(got, "d") {
		t.Errorf("outer whitespace survived: %q", got)
	}
}
