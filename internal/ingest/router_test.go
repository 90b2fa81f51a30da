package ingest

import (
	"testing"
	"time"

	"mowakeb/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func paper(id, title, abstract string, age time.Duration) models.Paper {
	return models.Paper{ArxivID: id, Title: title, Abstract: abstract, PublishedAt: testNow.Add(-age)}
}

func TestPickOne(t *testing.T) {
	day := 24 * time.Hour
	entries := []models.Paper{
		paper("old", "Image detection survey", "", 45*day),
		paper("a", "Graph methods", "nothing relevant", 1*day),
		paper("b", "Object DETECTION in the wild", "", 2*day),
		paper("c", "Another", "image segmentation", 3*day),
	}

	t.Run("keyword pass wins over order", func(t *testing.T) {
		p, ok := PickOne(entries, []string{"Detection"}, map[string]struct{}{}, testNow, DefaultWindow)
		require.True(t, ok)
		assert.Equal(t, "b", p.ArxivID)
	})

	t.Run("keyword match in abstract", func(t *testing.T) {
		p, ok := PickOne(entries, []string{"segmentation"}, map[string]struct{}{}, testNow, DefaultWindow)
		require.True(t, ok)
		assert.Equal(t, "c", p.ArxivID)
	})

	t.Run("falls back to first recent unused", func(t *testing.T) {
		p, ok := PickOne(entries, []string{"quantum"}, map[string]struct{}{"a": {}}, testNow, DefaultWindow)
		require.True(t, ok)
		assert.Equal(t, "b", p.ArxivID)
	})

	t.Run("never returns used or stale entries", func(t *testing.T) {
		used := map[string]struct{}{"a": {}, "b": {}, "c": {}}
		_, ok := PickOne(entries, []string{"image"}, used, testNow, DefaultWindow)
		assert.False(t, ok)
	})

	t.Run("window boundary is inclusive", func(t *testing.T) {
		edge := []models.Paper{paper("edge", "x", "", DefaultWindow)}
		p, ok := PickOne(edge, nil, map[string]struct{}{}, testNow, DefaultWindow)
		require.True(t, ok)
		assert.Equal(t, "edge", p.ArxivID)
	})

	t.Run("empty input", func(t *testing.T) {
		_, ok := PickOne(nil, []string{"x"}, map[string]struct{}{}, testNow, DefaultWindow)
		assert.False(t, ok)
	})
}
