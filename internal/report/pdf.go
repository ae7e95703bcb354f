package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"
)

// SynthesizePDF renders a pre-sales report PDF from inline content.
// Used when the agent callback carries report text but no document URL.
func SynthesizePDF(title, content string) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty report content")
	}
	if strings.TrimSpace(title) == "" {
		title = "Pre-Sales Report"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(108, 117, 125)
		pdf.SetX(15)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(0, 102, 204)
	pdf.MultiCell(0, 10, title, "", "L", false)

	pdf.Ln(2)
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(108, 117, 125)
	pdf.CellFormat(0, 8, fmt.Sprintf("Generated: %s", time.Now().UTC().Format("January 2, 2006 15:04 MST")), "", 1, "L", false, 0, "")

	pdf.Ln(6)
	pdf.SetTextColor(33, 37, 41)

	// Content is plain text or light markdown; render heading lines bold
	// and everything else as body text.
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			pdf.Ln(4)
		case strings.HasPrefix(trimmed, "#"):
			pdf.SetFont("Arial", "B", 13)
			pdf.MultiCell(0, 7, strings.TrimSpace(strings.TrimLeft(trimmed, "#")), "", "L", false)
			pdf.SetFont("Arial", "", 11)
		case strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*"):
			pdf.SetFont("Arial", "", 11)
			pdf.MultiCell(0, 6, "  \x95 "+strings.TrimSpace(trimmed[1:]), "", "L", false)
		default:
			pdf.SetFont("Arial", "", 11)
			pdf.MultiCell(0, 6, trimmed, "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}
	return buf.Bytes(), nil
}
