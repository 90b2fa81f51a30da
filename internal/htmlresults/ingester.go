package htmlresults

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mowakeb/internal/models"
	"mowakeb/internal/objectstore"
	"mowakeb/internal/observability"

	"github.com/rs/zerolog"
)

const (
	DefaultHTMLBucket = "html_files_results"
	htmlContentType   = "text/html; charset=utf-8"

	ReasonBadFilename = "bad_filename"
	ReasonMissing     = "missing"
	ReasonLookup      = "lookup"
	ReasonUpload      = "upload"
	ReasonUpdate      = "update"
)

// Repo is what the ingester needs from storage.PaperRepo.
type Repo interface {
	Lookup
	MarkHTMLProcessed(ctx context.Context, id int64, htmlPath string, at time.Time) error
}

type Config struct {
	Bucket   string
	BasePath string
	WorkDir  string
}

type Summary struct {
	models.BatchSummary
	DBUpdated    int
	Uploaded     int
	Missing      int
	BadFilenames int
}

type Ingester struct {
	repo    Repo
	store   objectstore.Store
	cfg     Config
	log     zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewIngester(repo Repo, store objectstore.Store, cfg Config, log zerolog.Logger, metrics *observability.Metrics) *Ingester {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultHTMLBucket
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "html_ingestion_workdir"
	}
	return &Ingester{
		repo:    repo,
		store:   store,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RemotePath is the object key for an HTML file name under the base path.
func (in *Ingester) RemotePath(filename string) string {
	if in.cfg.BasePath != "" {
		return strings.TrimRight(in.cfg.BasePath, "/") + "/" + filename
	}
	return filename
}

// Run extracts zipPath and ingests every HTML file in it. A missing archive
// fails before any work; per-file problems are counted and skipped.
func (in *Ingester) Run(ctx context.Context, zipPath string) (Summary, error) {
	var summary Summary
	if _, err := os.Stat(zipPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return summary, fmt.Errorf("%w: %s", ErrArchiveNotFound, zipPath)
		}
		return summary, fmt.Errorf("stat %s: %w", zipPath, err)
	}

	extractDir := filepath.Join(in.cfg.WorkDir, "extracted")
	in.log.Info().Str("zip", zipPath).Str("dir", extractDir).Msg("extracting archive")
	if err := extractZip(zipPath, extractDir); err != nil {
		return summary, err
	}

	files, err := htmlFiles(extractDir)
	if err != nil {
		return summary, err
	}
	in.log.Info().Int("files", len(files)).Msg("found html files")

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res := in.ingestOne(ctx, path, &summary)
		summary.Add(res)
		if res.Outcome != models.OutcomeOK {
			in.metrics.IncSkipped("htmlresults", res.Reason)
		}
	}

	in.log.Info().
		Int("db_updated", summary.DBUpdated).
		Int("html_uploaded", summary.Uploaded).
		Int("missing", summary.Missing).
		Int("bad_filenames", summary.BadFilenames).
		Int("failed", summary.Failed).
		Msg("summary")
	return summary, nil
}

func (in *Ingester) ingestOne(ctx context.Context, path string, summary *Summary) models.ItemResult {
	name := filepath.Base(path)
	log := in.log.With().Str("file", name).Logger()

	arxivID, ok := ArxivFromFilename(name)
	if !ok {
		summary.BadFilenames++
		log.Warn().Msg("bad filename (no arxiv id)")
		return models.Skipped(name, ReasonBadFilename)
	}

	paper, found, err := FindPaper(ctx, in.repo, arxivID)
	if err != nil {
		log.Error().Err(err).Str("arxiv_id", arxivID).Msg("lookup failed")
		return models.Failed(name, ReasonLookup, err)
	}
	if !found {
		summary.Missing++
		log.Warn().Str("arxiv_id", arxivID).Msg("no paper row")
		return models.Skipped(name, ReasonMissing)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.Failed(name, ReasonUpload, fmt.Errorf("read %s: %w", path, err))
	}

	remote := in.RemotePath(name)
	if err := in.store.Remove(ctx, in.cfg.Bucket, remote); err != nil {
		log.Debug().Err(err).Str("key", remote).Msg("remove before upload failed, ignoring")
	}
	if err := in.store.Upload(ctx, in.cfg.Bucket, remote, data, objectstore.UploadOptions{ContentType: htmlContentType}); err != nil {
		log.Error().Err(err).Str("bucket", in.cfg.Bucket).Str("key", remote).Msg("upload failed")
		return models.Failed(name, ReasonUpload, err)
	}
	summary.Uploaded++

	if err := in.repo.MarkHTMLProcessed(ctx, paper.ID, remote, in.now()); err != nil {
		log.Error().Err(err).Int64("id", paper.ID).Msg("mark processed failed")
		return models.Failed(name, ReasonUpdate, err)
	}
	summary.DBUpdated++
	in.metrics.IncHTMLProcessed()

	log.Info().Str("arxiv_id", paper.ArxivID).Str("stored_html_path", remote).Msg("ingested html")
	return models.OK(name)
}
