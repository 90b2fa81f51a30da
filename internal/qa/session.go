package qa

import (
	"errors"
	"time"

	"mowakeb/internal/models"
	"mowakeb/internal/vector"
)

var ErrNotIndexed = errors.New("pdf not processed yet")

// Session is the retrieval state built from one uploaded PDF. It is never
// modified after BuildIndex returns.
type Session struct {
	pdfPath   string
	docs      []models.Document
	index     *vector.FlatIndex
	createdAt time.Time

	// embedProvider produced the index vectors; queries must use it too.
	embedProvider string
}

func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	return len(s.docs)
}

func (s *Session) PDFPath() string {
	return s.pdfPath
}

func (s *Session) EmbedProvider() string {
	return s.embedProvider
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Documents returns a copy of the indexed documents in index order.
func (s *Session) Documents() []models.Document {
	if s == nil {
		return nil
	}
	return append([]models.Document(nil), s.docs...)
}
