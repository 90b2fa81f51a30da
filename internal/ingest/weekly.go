package ingest

import (
	"context"
	"math/rand/v2"
	"time"

	"mowakeb/internal/config"
	"mowakeb/internal/models"
	"mowakeb/internal/observability"

	"github.com/rs/zerolog"
)

// Fetcher returns recent papers for a set of arXiv categories, newest first.
type Fetcher interface {
	FetchRecent(ctx context.Context, categories []string, maxResults int) ([]models.Paper, error)
}

type Upserter interface {
	UpsertByArxivID(ctx context.Context, p models.Paper) error
}

const (
	ReasonFetch       = "fetch"
	ReasonUpsert      = "upsert"
	ReasonNoCandidate = "no_candidate"
)

type RunnerConfig struct {
	MaxResults int
	Window     time.Duration
	// Delay plus a uniform jitter in [0, Jitter) separates main fields.
	Delay  time.Duration
	Jitter time.Duration
}

type Runner struct {
	taxonomy config.Taxonomy
	fetcher  Fetcher
	repo     Upserter
	cfg      RunnerConfig
	log      zerolog.Logger
	metrics  *observability.Metrics

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

func NewRunner(tax config.Taxonomy, fetcher Fetcher, repo Upserter, cfg RunnerConfig, log zerolog.Logger, metrics *observability.Metrics) *Runner {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Runner{
		taxonomy: tax,
		fetcher:  fetcher,
		repo:     repo,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    sleepCtx,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return rand.N(max)
		},
	}
}

// WeeklySummary holds one result per sub field, keyed "main/sub".
type WeeklySummary struct {
	models.BatchSummary
}

// Run walks the taxonomy once. Failures are recorded per sub field and never
// stop the run; only ctx cancellation returns an error.
func (r *Runner) Run(ctx context.Context) (WeeklySummary, error) {
	var summary WeeklySummary
	fields := r.taxonomy.Fields()

	for i, mf := range fields {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		r.runMainField(ctx, mf, &summary)

		if i < len(fields)-1 {
			d := r.cfg.Delay + r.jitter(r.cfg.Jitter)
			if err := r.sleep(ctx, d); err != nil {
				return summary, err
			}
		}
	}

	r.log.Info().
		Int("upserted", summary.Succeeded).
		Int("skipped", summary.Skipped+summary.Failed).
		Msg("done")
	return summary, nil
}

func (r *Runner) runMainField(ctx context.Context, mf config.MainField, summary *WeeklySummary) {
	log := r.log.With().Str("main_field", mf.Name).Logger()
	categories := mf.Categories()

	entries, err := r.fetcher.FetchRecent(ctx, categories, r.cfg.MaxResults)
	if err != nil {
		log.Error().Err(err).Strs("categories", categories).Msg("fetch failed, skipping main field")
		for _, sf := range mf.SubFields {
			r.record(summary, models.Failed(itemKey(mf, sf), ReasonFetch, err))
		}
		return
	}
	log.Info().Int("entries", len(entries)).Msg("fetched candidates")

	used := make(map[string]struct{})
	now := r.now()
	for _, sf := range mf.SubFields {
		key := itemKey(mf, sf)
		p, ok := PickOne(entries, sf.Keywords, used, now, r.cfg.Window)
		if !ok {
			log.Warn().Str("sub_field", sf.Name).Msg("no recent candidate")
			r.record(summary, models.Skipped(key, ReasonNoCandidate))
			continue
		}
		used[p.ArxivID] = struct{}{}

		p.Source = models.SourceArxiv
		p.MainField = mf.Name
		p.SubField = sf.Name
		p.Status = models.StatusNew
		if err := r.repo.UpsertByArxivID(ctx, p); err != nil {
			log.Error().Err(err).Str("sub_field", sf.Name).Str("arxiv_id", p.ArxivID).Msg("upsert failed")
			r.record(summary, models.Failed(key, ReasonUpsert, err))
			continue
		}
		log.Info().Str("sub_field", sf.Name).Str("arxiv_id", p.ArxivID).Msg("upserted paper")
		r.metrics.IncPapersUpserted()
		r.record(summary, models.OK(key))
	}
}

func (r *Runner) record(summary *WeeklySummary, res models.ItemResult) {
	summary.Add(res)
	if res.Outcome != models.OutcomeOK {
		r.metrics.IncSkipped("ingest", res.Reason)
	}
}

func itemKey(mf config.MainField, sf config.SubField) string {
	return mf.Name + "/" + sf.Name
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
