package models

import "time"

type PaperStatus string

const (
	StatusNew       PaperStatus = "NEW"
	StatusProcessed PaperStatus = "PROCESSED"
)

const (
	SourceArxiv      = "ARXIV"
	PrimaryInputHTML = "HTML"
)

// Paper is one row of the papers table. ArxivID is the natural key; ID is the
// surrogate row id used by the storage movers.
type Paper struct {
	ID             int64       `json:"id"`
	ArxivID        string      `json:"arxiv_id"`
	Title          string      `json:"title"`
	Abstract       string      `json:"abstract"`
	Authors        []string    `json:"authors"`
	PublishedAt    time.Time   `json:"published_at"`
	AbsURL         string      `json:"abs_url"`
	PDFURL         string      `json:"pdf_url"`
	Source         string      `json:"source,omitempty"`
	MainField      string      `json:"main_field,omitempty"`
	SubField       string      `json:"sub_field,omitempty"`
	Status         PaperStatus `json:"status"`
	StoredPDFPath  *string     `json:"stored_pdf_path,omitempty"`
	StoredHTMLPath *string     `json:"stored_html_path,omitempty"`
	PrimaryInput   *string     `json:"primary_input,omitempty"`
	ProcessedAt    *time.Time  `json:"processed_at,omitempty"`
}

type DocumentType string

const (
	DocumentText   DocumentType = "text"
	DocumentFigure DocumentType = "figure"
)

// Document is one retrievable unit of a QA session: a text chunk or a figure
// description. Page is zero for text chunks.
type Document struct {
	Type    DocumentType `json:"type"`
	Content string       `json:"content"`
	Page    int          `json:"page,omitempty"`
}

// PageImage is one rendered PDF page. Page is 1-based.
type PageImage struct {
	Page int
	PNG  []byte
}
