// Package ingest routes freshly fetched arXiv papers onto the field taxonomy
// and upserts one paper per sub field.
package ingest

import (
	"strings"
	"time"

	"mowakeb/internal/models"
)

// DefaultWindow is how far back a paper may be published and still count as
// recent.
const DefaultWindow = 30 * 24 * time.Hour

// PickOne chooses one paper for a sub field. The first pass takes the first
// unused, recent entry whose title or abstract mentions a keyword; the second
// takes the first unused, recent entry regardless of keywords. Entries keep
// their API order. The caller records the pick in used.
func PickOne(entries []models.Paper, keywords []string, used map[string]struct{}, now time.Time, window time.Duration) (models.Paper, bool) {
	cutoff := now.Add(-window)
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}

	eligible := func(p models.Paper) bool {
		if _, taken := used[p.ArxivID]; taken {
			return false
		}
		return !p.PublishedAt.Before(cutoff)
	}

	for _, p := range entries {
		if !eligible(p) {
			continue
		}
		text := strings.ToLower(p.Title + " " + p.Abstract)
		for _, k := range lowered {
			if strings.Contains(text, k) {
				return p, true
			}
		}
	}
	for _, p := range entries {
		if eligible(p) {
			return p, true
		}
	}
	return models.Paper{}, false
}
