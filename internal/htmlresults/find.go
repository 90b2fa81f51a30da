package htmlresults

import (
	"context"

	"mowakeb/internal/models"
)

// Lookup is the slice of storage.PaperRepo used to resolve a file's arXiv id.
type Lookup interface {
	FindByArxivIDExact(ctx context.Context, arxivID string) (models.Paper, bool, error)
	FindByArxivIDPrefix(ctx context.Context, base string) (models.Paper, bool, error)
	FindByArxivIDSubstring(ctx context.Context, base string) (models.Paper, bool, error)
}

// FindPaper tries an exact match, then base-prefix, then a case-insensitive
// substring match. The substring step can match an unrelated longer id such
// as 2401.1234599 for base 2401.12345; that is accepted.
func FindPaper(ctx context.Context, lookup Lookup, arxivID string) (models.Paper, bool, error) {
	if p, ok, err := lookup.FindByArxivIDExact(ctx, arxivID); err != nil || ok {
		return p, ok, err
	}
	base, ok := ArxivBase(arxivID)
	if !ok {
		return models.Paper{}, false, nil
	}
	if p, ok, err := lookup.FindByArxivIDPrefix(ctx, base); err != nil || ok {
		return p, ok, err
	}
	return lookup.FindByArxivIDSubstring(ctx, base)
}
