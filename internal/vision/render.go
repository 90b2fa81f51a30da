// Package vision rasterises PDF pages and finds figure-sized regions on them.
// It needs MuPDF and OpenCV at build time.
package vision

import (
	"context"
	"fmt"

	"mowakeb/internal/models"

	"github.com/gen2brain/go-fitz"
)

const DefaultDPI = 200

// Renderer renders PDF pages to PNG with MuPDF.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// RenderPages returns one PNG per page, in page order.
func (r *Renderer) RenderPages(ctx context.Context, pdfPath string, dpi float64) ([]models.PageImage, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]models.PageImage, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		png, err := doc.ImagePNG(n, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", n+1, err)
		}
		pages = append(pages, models.PageImage{Page: n + 1, PNG: png})
	}
	return pages, nil
}
