package pdfsync

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"mowakeb/internal/models"
	"mowakeb/internal/objectstore"
	"mowakeb/internal/observability"
	"mowakeb/internal/util"

	"github.com/rs/zerolog"
)

var ErrNothingToExport = errors.New("no stored pdfs to export")

const (
	DefaultExportLimit   = 1000
	DefaultExportArchive = "mowakeb_papers_pdfs.zip"
)

type StoredSource interface {
	ListWithStoredPDF(ctx context.Context, limit int) ([]models.Paper, error)
}

type ExportSummary struct {
	Rows     int
	Exported int
	Failed   int
	Path     string
}

type Exporter struct {
	repo    StoredSource
	store   objectstore.Store
	bucket  string
	limit   int
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewExporter(repo StoredSource, store objectstore.Store, bucket string, limit int, log zerolog.Logger, metrics *observability.Metrics) *Exporter {
	if bucket == "" {
		bucket = DefaultPDFBucket
	}
	if limit <= 0 {
		limit = DefaultExportLimit
	}
	return &Exporter{repo: repo, store: store, bucket: bucket, limit: limit, log: log, metrics: metrics}
}

// Export downloads every stored PDF into a fresh zip at zipPath. Files that
// fail to download are logged and left out.
func (e *Exporter) Export(ctx context.Context, zipPath string) (ExportSummary, error) {
	if zipPath == "" {
		zipPath = DefaultExportArchive
	}
	summary := ExportSummary{Path: zipPath}

	rows, err := e.repo.ListWithStoredPDF(ctx, e.limit)
	if err != nil {
		return summary, err
	}
	summary.Rows = len(rows)
	if len(rows) == 0 {
		return summary, ErrNothingToExport
	}

	if err := os.Remove(zipPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return summary, fmt.Errorf("remove old archive: %w", err)
	}

	err = util.WriteFileAtomic(zipPath, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, p := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if p.StoredPDFPath == nil || *p.StoredPDFPath == "" {
				continue
			}
			key := *p.StoredPDFPath
			data, err := e.store.Download(ctx, e.bucket, key)
			if err != nil {
				e.log.Warn().Err(err).Str("bucket", e.bucket).Str("key", key).Msg("skipping pdf")
				e.metrics.IncSkipped("export", "download")
				summary.Failed++
				continue
			}
			f, err := zw.CreateHeader(&zip.FileHeader{Name: path.Base(key), Method: zip.Deflate})
			if err != nil {
				return fmt.Errorf("add %s to archive: %w", key, err)
			}
			if _, err := f.Write(data); err != nil {
				return fmt.Errorf("write %s to archive: %w", key, err)
			}
			summary.Exported++
			e.metrics.IncPDFsExported()
			e.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("added pdf")
		}
		return zw.Close()
	})
	if err != nil {
		return summary, fmt.Errorf("write export archive: %w", err)
	}

	e.log.Info().
		Int("rows", summary.Rows).
		Int("exported", summary.Exported).
		Int("failed", summary.Failed).
		Str("path", zipPath).
		Msg("export complete")
	return summary, nil
}
