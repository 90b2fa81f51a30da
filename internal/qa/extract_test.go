package qa

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestPDF writes a one-page PDF using Helvetica whose page content is
// the given content stream.
func writeTestPDF(t *testing.T, content string) string {
	t.Helper()
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content)+1, content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestPDFTextExtractor(t *testing.T) {
	t.Run("kerned fragments stay in one word", func(t *testing.T) {
		path := writeTestPDF(t, "BT /F1 10 Tf 72 720 Td [(Hel) -20 (lo) -300 (world) -250 (of) -250 (papers)] TJ ET")
		raw, err := PDFTextExtractor{}.Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "Hello world of papers\n", raw)
	})

	t.Run("rows in reading order", func(t *testing.T) {
		path := writeTestPDF(t, "BT /F1 10 Tf 72 720 Td (Attention is) Tj 0 -14 Td (all you need) Tj ET")
		raw, err := PDFTextExtractor{}.Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "Attention is\nall you need\n", raw)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := PDFTextExtractor{}.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
		assert.Error(t, err)
	})
}

func TestJoinRow(t *testing.T) {
	row := []pdf.Text{
		{X: 0, W: 6, S: "a"},
		{X: 6.5, W: 6, S: "b"},
		{X: 15, W: 6, S: "c"},
		{X: 21, W: 3, S: " "},
		{X: 24, W: 6, S: "d"},
	}
	assert.Equal(t, "ab c d", joinRow(row))
	assert.Equal(t, "", joinRow([]pdf.Text{{S: " "}}))
}

func TestGroupRows(t *testing.T) {
	rows := groupRows([]pdf.Text{
		{X: 10, Y: 700, S: "b"},
		{X: 0, Y: 701, S: "a"},
		{X: 0, Y: 680, S: "c"},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0][0].S)
	assert.Equal(t, "b", rows[0][1].S)
	assert.Equal(t, "c", rows[1][0].S)
}
