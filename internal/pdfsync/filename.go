// Package pdfsync copies paper PDFs from their public URLs into private object
// storage and exports stored PDFs as one archive.
package pdfsync

import (
	"strconv"
	"strings"

	"mowakeb/internal/models"
)

// BuildFilePath names the stored object for a paper: the arXiv id when known,
// else the last URL segment, else the row id. The result always ends in .pdf.
func BuildFilePath(p models.Paper) string {
	u := strings.TrimRight(p.PDFURL, "/")
	last := u
	if i := strings.LastIndex(u, "/"); i >= 0 {
		last = u[i+1:]
	}
	if last == "" {
		last = strconv.FormatInt(p.ID, 10)
	}

	name := last
	if p.ArxivID != "" {
		name = p.ArxivID
	}
	if !strings.HasSuffix(name, ".pdf") {
		name += ".pdf"
	}
	return name
}
