package qa

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// wordGap is the horizontal distance in points between two glyphs at or
	// above which they belong to different words. Kerning inside LaTeX words
	// stays well below it.
	wordGap = 2.0

	// lineTolerance is the vertical distance in points within which glyphs
	// share a row.
	lineTolerance = 3.0
)

// TextExtractor returns the raw text of a PDF: words of a row joined by
// spaces, rows ended by newlines, pages in order.
type TextExtractor interface {
	Extract(ctx context.Context, pdfPath string) (string, error)
}

type PDFTextExtractor struct{}

func (PDFTextExtractor) Extract(ctx context.Context, pdfPath string) (string, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", pdfPath, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		glyphs, err := pageGlyphs(page)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		for _, row := range groupRows(glyphs) {
			if line := joinRow(row); line != "" {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
	}
	return b.String(), nil
}

// pageGlyphs returns the positioned glyphs of page. The pdf package panics on
// malformed content streams.
func pageGlyphs(page pdf.Page) (glyphs []pdf.Text, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("read content stream: %v", rec)
		}
	}()
	return page.Content().Text, nil
}

// groupRows clusters glyphs into rows top to bottom, each ordered left to
// right.
func groupRows(glyphs []pdf.Text) [][]pdf.Text {
	if len(glyphs) == 0 {
		return nil
	}
	sorted := append([]pdf.Text(nil), glyphs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows [][]pdf.Text
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[start].Y-sorted[i].Y <= lineTolerance {
			continue
		}
		row := sorted[start:i]
		sort.SliceStable(row, func(a, b int) bool { return row[a].X < row[b].X })
		rows = append(rows, row)
		start = i
	}
	return rows
}

// joinRow concatenates glyphs, inserting one space where the row has a space
// glyph or a gap of at least wordGap.
func joinRow(row []pdf.Text) string {
	var b strings.Builder
	var end float64
	space := false
	for _, t := range row {
		if strings.TrimSpace(t.S) == "" {
			space = true
			continue
		}
		if b.Len() > 0 && (space || t.X-end >= wordGap) {
			b.WriteByte(' ')
		}
		b.WriteString(t.S)
		space = false
		end = t.X + t.W
	}
	return b.String()
}
