package pdfsync

import (
	"context"
	"time"

	"mowakeb/internal/models"
	"mowakeb/internal/objectstore"
	"mowakeb/internal/observability"
	"mowakeb/internal/util"

	"github.com/rs/zerolog"
)

const (
	DefaultBatchSize = 30
	DefaultPDFBucket = "papers-pdf-private"

	ReasonDownload = "download"
	ReasonUpload   = "upload"
	ReasonUpdate   = "update"
)

// PaperSource is the slice of storage.PaperRepo the worker needs.
type PaperSource interface {
	ListMissingPDF(ctx context.Context, limit int, exclude []int64) ([]models.Paper, error)
	SetStoredPDFPath(ctx context.Context, id int64, path string) error
}

type WorkerConfig struct {
	Bucket    string
	BatchSize int
}

type Worker struct {
	repo       PaperSource
	store      objectstore.Store
	downloader Downloader
	cfg        WorkerConfig
	log        zerolog.Logger
	metrics    *observability.Metrics
}

func NewWorker(repo PaperSource, store objectstore.Store, dl Downloader, cfg WorkerConfig, log zerolog.Logger, metrics *observability.Metrics) *Worker {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultPDFBucket
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Worker{repo: repo, store: store, downloader: dl, cfg: cfg, log: log, metrics: metrics}
}

// Run processes batches until no eligible rows remain. A row that fails is
// not retried within the same run. Only listing errors and ctx cancellation
// abort the run.
func (w *Worker) Run(ctx context.Context) (models.BatchSummary, error) {
	var summary models.BatchSummary
	attempted := make([]int64, 0)

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		batch, err := w.repo.ListMissingPDF(ctx, w.cfg.BatchSize, attempted)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			break
		}
		w.log.Info().Int("batch", len(batch)).Msg("processing pdf batch")

		for _, p := range batch {
			attempted = append(attempted, p.ID)
			res := w.processOne(ctx, p)
			summary.Add(res)
			if res.Outcome != models.OutcomeOK {
				w.metrics.IncSkipped("pdfsync", res.Reason)
			}
		}
	}

	w.log.Info().
		Int("stored", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("pdf sync complete")
	return summary, nil
}

func (w *Worker) processOne(ctx context.Context, p models.Paper) models.ItemResult {
	key := BuildFilePath(p)
	log := w.log.With().Int64("id", p.ID).Str("arxiv_id", p.ArxivID).Str("key", key).Logger()
	start := time.Now()

	data, err := w.downloader.Download(ctx, p.PDFURL)
	if err != nil {
		log.Error().Err(err).Str("url", p.PDFURL).Msg("download failed")
		return models.Failed(key, ReasonDownload, err)
	}

	err = w.store.Upload(ctx, w.cfg.Bucket, key, data, objectstore.UploadOptions{
		ContentType: "application/pdf",
		Overwrite:   true,
	})
	if err != nil {
		log.Error().Err(err).Str("bucket", w.cfg.Bucket).Msg("upload failed")
		return models.Failed(key, ReasonUpload, err)
	}

	if err := w.repo.SetStoredPDFPath(ctx, p.ID, key); err != nil {
		log.Error().Err(err).Msg("update stored path failed")
		return models.Failed(key, ReasonUpdate, err)
	}

	log.Info().
		Int("bytes", len(data)).
		Str("sha256", util.SHA256Hex(data)).
		Dur("took", time.Since(start)).
		Msg("stored pdf")
	w.metrics.IncPDFsStored()
	return models.OK(key)
}
