package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mowakeb/internal/models"

	"github.com/jackc/pgx/v5"
)

var ErrPaperNotFound = errors.New("paper not found")

const paperColumns = `id, arxiv_id, COALESCE(title,''), COALESCE(abstract,''), authors,
       COALESCE(published_at, 'epoch'::timestamptz), COALESCE(abs_url,''), COALESCE(pdf_url,''),
       COALESCE(source,''), COALESCE(main_field,''), COALESCE(sub_field,''), status,
       stored_pdf_path, stored_html_path, primary_input, processed_at`

type PaperRepo struct {
	db DBTX
}

func NewPaperRepo(db DBTX) *PaperRepo {
	return &PaperRepo{db: db}
}

// UpsertByArxivID inserts the paper or overwrites the metadata of the row with
// the same arxiv_id. Storage paths and processing markers are left alone.
func (r *PaperRepo) UpsertByArxivID(ctx context.Context, p models.Paper) error {
	status := p.Status
	if status == "" {
		status = models.StatusNew
	}
	authors := p.Authors
	if authors == nil {
		authors = []string{}
	}
	_, err := r.db.Exec(ctx, `
INSERT INTO papers (arxiv_id, title, abstract, authors, published_at, abs_url, pdf_url, source, main_field, sub_field, status)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), $8, $9, $10, $11)
ON CONFLICT (arxiv_id)
DO UPDATE SET
  title = EXCLUDED.title,
  abstract = EXCLUDED.abstract,
  authors = EXCLUDED.authors,
  published_at = EXCLUDED.published_at,
  abs_url = EXCLUDED.abs_url,
  pdf_url = EXCLUDED.pdf_url,
  source = EXCLUDED.source,
  main_field = EXCLUDED.main_field,
  sub_field = EXCLUDED.sub_field,
  status = EXCLUDED.status,
  updated_at = NOW()`,
		p.ArxivID, p.Title, p.Abstract, authors, p.PublishedAt, p.AbsURL, p.PDFURL, p.Source, p.MainField, p.SubField, string(status),
	)
	if err != nil {
		return fmt.Errorf("upsert paper %s: %w", p.ArxivID, err)
	}
	return nil
}

// ListMissingPDF returns up to limit rows that have a pdf_url but no stored
// copy yet, skipping the ids in exclude.
func (r *PaperRepo) ListMissingPDF(ctx context.Context, limit int, exclude []int64) ([]models.Paper, error) {
	if exclude == nil {
		exclude = []int64{}
	}
	rows, err := r.db.Query(ctx, `
SELECT `+paperColumns+`
FROM papers
WHERE stored_pdf_path IS NULL AND pdf_url IS NOT NULL AND NOT (id = ANY($2))
ORDER BY id
LIMIT $1`, limit, exclude)
	if err != nil {
		return nil, fmt.Errorf("list papers missing pdf: %w", err)
	}
	return collectPapers(rows)
}

func (r *PaperRepo) SetStoredPDFPath(ctx context.Context, id int64, path string) error {
	tag, err := r.db.Exec(ctx, `UPDATE papers SET stored_pdf_path=$2, updated_at=NOW() WHERE id=$1`, id, path)
	if err != nil {
		return fmt.Errorf("set stored pdf path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set stored pdf path for %d: %w", id, ErrPaperNotFound)
	}
	return nil
}

func (r *PaperRepo) FindByArxivIDExact(ctx context.Context, arxivID string) (models.Paper, bool, error) {
	return r.findOne(ctx, `WHERE arxiv_id = $1`, arxivID)
}

// FindByArxivIDPrefix matches rows whose arxiv_id starts with base, so a
// version-less base finds its versioned rows.
func (r *PaperRepo) FindByArxivIDPrefix(ctx context.Context, base string) (models.Paper, bool, error) {
	return r.findOne(ctx, `WHERE arxiv_id LIKE $1`, escapeLike(base)+"%")
}

// FindByArxivIDSubstring is a case-insensitive containment match. It can hit
// an unrelated id that merely contains base.
func (r *PaperRepo) FindByArxivIDSubstring(ctx context.Context, base string) (models.Paper, bool, error) {
	return r.findOne(ctx, `WHERE arxiv_id ILIKE $1`, "%"+escapeLike(base)+"%")
}

func (r *PaperRepo) MarkHTMLProcessed(ctx context.Context, id int64, htmlPath string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
UPDATE papers
SET stored_html_path=$2, primary_input=$3, status=$4, processed_at=$5, updated_at=NOW()
WHERE id=$1`, id, htmlPath, models.PrimaryInputHTML, string(models.StatusProcessed), at.UTC())
	if err != nil {
		return fmt.Errorf("mark html processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark html processed for %d: %w", id, ErrPaperNotFound)
	}
	return nil
}

func (r *PaperRepo) ListWithStoredPDF(ctx context.Context, limit int) ([]models.Paper, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+paperColumns+`
FROM papers
WHERE stored_pdf_path IS NOT NULL
ORDER BY id
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list papers with stored pdf: %w", err)
	}
	return collectPapers(rows)
}

func (r *PaperRepo) findOne(ctx context.Context, where string, arg string) (models.Paper, bool, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paperColumns+` FROM papers `+where+` ORDER BY id LIMIT 1`, arg)
	p, err := scanPaper(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Paper{}, false, nil
	}
	if err != nil {
		return models.Paper{}, false, fmt.Errorf("find paper: %w", err)
	}
	return p, true, nil
}

func collectPapers(rows pgx.Rows) ([]models.Paper, error) {
	defer rows.Close()
	out := make([]models.Paper, 0)
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return out, nil
}

func scanPaper(row pgx.Row) (models.Paper, error) {
	var p models.Paper
	var status string
	err := row.Scan(&p.ID, &p.ArxivID, &p.Title, &p.Abstract, &p.Authors,
		&p.PublishedAt, &p.AbsURL, &p.PDFURL, &p.Source, &p.MainField, &p.SubField, &status,
		&p.StoredPDFPath, &p.StoredHTMLPath, &p.PrimaryInput, &p.ProcessedAt)
	p.Status = models.PaperStatus(status)
	return p, err
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
