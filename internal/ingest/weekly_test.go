package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"mowakeb/internal/config"
	"mowakeb/internal/models"
	"mowakeb/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	byCategory map[string][]models.Paper
	fail       map[string]error
	calls      [][]string
}

func (f *fakeFetcher) FetchRecent(_ context.Context, categories []string, _ int) ([]models.Paper, error) {
	f.calls = append(f.calls, categories)
	if err := f.fail[categories[0]]; err != nil {
		return nil, err
	}
	return f.byCategory[categories[0]], nil
}

type fakeRepo struct {
	rows   map[string]models.Paper
	failOn map[string]bool
}

func (r *fakeRepo) UpsertByArxivID(_ context.Context, p models.Paper) error {
	if r.failOn[p.SubField] {
		return errors.New("db down")
	}
	if r.rows == nil {
		r.rows = map[string]models.Paper{}
	}
	r.rows[p.ArxivID] = p
	return nil
}

func testTaxonomy(t *testing.T) config.Taxonomy {
	t.Helper()
	tax, err := config.NewTaxonomy([]config.MainField{
		{Name: "AI", SubFields: []config.SubField{
			{Name: "Vision", Category: "cs.CV", Keywords: []string{"image"}},
			{Name: "Vision Again", Category: "cs.CV", Keywords: []string{"image"}},
		}},
		{Name: "Data", SubFields: []config.SubField{
			{Name: "Databases", Category: "cs.DB", Keywords: []string{"query"}},
		}},
	})
	require.NoError(t, err)
	return tax
}

func newTestRunner(t *testing.T, f Fetcher, repo Upserter, m *observability.Metrics) (*Runner, *[]time.Duration) {
	r := NewRunner(testTaxonomy(t), f, repo, RunnerConfig{Delay: 2 * time.Second, Jitter: 2 * time.Second}, zerolog.Nop(), m)
	r.now = func() time.Time { return testNow }
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	r.jitter = func(time.Duration) time.Duration { return 500 * time.Millisecond }
	return r, &slept
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()
	day := 24 * time.Hour

	t.Run("identical keywords never share a paper", func(t *testing.T) {
		f := &fakeFetcher{byCategory: map[string][]models.Paper{
			"cs.CV": {paper("v1", "image net", "", day), paper("v2", "image seg", "", day)},
			"cs.DB": {paper("d1", "query planning", "", day)},
		}}
		repo := &fakeRepo{}
		reg := prometheus.NewRegistry()
		r, slept := newTestRunner(t, f, repo, observability.NewMetrics(reg))

		sum, err := r.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, sum.Succeeded)
		assert.Equal(t, "Vision", repo.rows["v1"].SubField)
		assert.Equal(t, "Vision Again", repo.rows["v2"].SubField)
		assert.Equal(t, "AI", repo.rows["v1"].MainField)
		assert.Equal(t, models.StatusNew, repo.rows["d1"].Status)
		assert.Equal(t, models.SourceArxiv, repo.rows["d1"].Source)

		assert.Equal(t, [][]string{{"cs.CV"}, {"cs.DB"}}, f.calls, "one fetch per main field with unique categories")
		assert.Equal(t, []time.Duration{2500 * time.Millisecond}, *slept)
		assert.Equal(t, 3.0, testutil.ToFloat64(r.metrics.PapersUpserted))
	})

	t.Run("fetch failure skips the whole main field", func(t *testing.T) {
		f := &fakeFetcher{
			byCategory: map[string][]models.Paper{"cs.DB": {paper("d1", "query", "", day)}},
			fail:       map[string]error{"cs.CV": errors.New("timeout")},
		}
		r, _ := newTestRunner(t, f, &fakeRepo{}, nil)

		sum, err := r.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Succeeded)
		assert.Equal(t, 2, sum.Failed)
		assert.Equal(t, 2, sum.Reasons[ReasonFetch])
	})

	t.Run("upsert failure skips only that sub field", func(t *testing.T) {
		f := &fakeFetcher{byCategory: map[string][]models.Paper{
			"cs.CV": {paper("v1", "image", "", day), paper("v2", "image", "", day)},
			"cs.DB": {paper("d1", "query", "", day)},
		}}
		r, _ := newTestRunner(t, f, &fakeRepo{failOn: map[string]bool{"Vision": true}}, nil)

		sum, err := r.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Succeeded)
		assert.Equal(t, 1, sum.Reasons[ReasonUpsert])
	})

	t.Run("no candidate when entries run out", func(t *testing.T) {
		f := &fakeFetcher{byCategory: map[string][]models.Paper{
			"cs.CV": {paper("v1", "image", "", day), paper("stale", "image", "", 60*day)},
		}}
		r, _ := newTestRunner(t, f, &fakeRepo{}, nil)

		sum, err := r.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Succeeded)
		assert.Equal(t, 2, sum.Skipped)
		assert.Equal(t, 2, sum.Reasons[ReasonNoCandidate])
	})

	t.Run("cancelled context stops between fields", func(t *testing.T) {
		f := &fakeFetcher{}
		r, _ := newTestRunner(t, f, &fakeRepo{}, nil)
		r.sleep = func(context.Context, time.Duration) error { return context.Canceled }

		_, err := r.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, f.calls, 1)
	})
}
