// Package arxiv fetches recent paper metadata from the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mowakeb/internal/models"

	"github.com/rs/zerolog"
)

const (
	DefaultAPIURL     = "https://export.arxiv.org/api/query"
	DefaultUserAgent  = "MowakebResearchBot/1.0"
	DefaultMaxResults = 150
)

type Config struct {
	APIURL     string
	MaxResults int
	HTTP       HTTPClientConfig
}

type Client struct {
	apiURL     string
	maxResults int
	http       *HTTPClient
	log        zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	return NewWithHTTPClient(cfg, NewHTTPClient(cfg.HTTP, log), log)
}

func NewWithHTTPClient(cfg Config, hc *HTTPClient, log zerolog.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	return &Client{apiURL: cfg.APIURL, maxResults: cfg.MaxResults, http: hc, log: log}
}

// FetchRecent returns the newest submissions across categories, in API order.
// maxResults <= 0 uses the client default.
func (c *Client) FetchRecent(ctx context.Context, categories []string, maxResults int) ([]models.Paper, error) {
	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse arxiv url: %w", err)
	}
	q := url.Values{}
	q.Set("search_query", BuildQuery(categories))
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build arxiv request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch arxiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch arxiv: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 20<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}

	out := make([]models.Paper, 0, len(feed.Entries))
	for i := range feed.Entries {
		p, err := ParseEntry(feed.Entries[i])
		if err != nil {
			c.log.Warn().Err(err).Str("entry_id", feed.Entries[i].ID).Msg("skipping arxiv entry")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// BuildQuery de-duplicates categories in first-seen order and joins them as
// "cat:A OR cat:B".
func BuildQuery(categories []string) string {
	seen := make(map[string]struct{}, len(categories))
	parts := make([]string, 0, len(categories))
	for _, cat := range categories {
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		parts = append(parts, "cat:"+cat)
	}
	return strings.Join(parts, " OR ")
}

// ParseEntry converts one Atom entry into a Paper. Only the published date can
// make it fail.
func ParseEntry(e Entry) (models.Paper, error) {
	id := strings.TrimSpace(e.ID)
	arxivID := id
	if i := strings.LastIndex(id, "/abs/"); i >= 0 {
		arxivID = id[i+len("/abs/"):]
	}

	published, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published))
	if err != nil {
		return models.Paper{}, fmt.Errorf("parse published date %q: %w", e.Published, err)
	}

	absURL := ""
	pdfURL := ""
	for _, l := range e.Links {
		if absURL == "" && l.Rel == "alternate" {
			absURL = l.Href
		}
		if pdfURL == "" && l.Type == "application/pdf" {
			pdfURL = l.Href
		}
	}
	if absURL == "" {
		absURL = id
	}
	if pdfURL == "" {
		pdfURL = strings.Replace(absURL, "/abs/", "/pdf/", 1) + ".pdf"
	}

	authors := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	return models.Paper{
		ArxivID:     arxivID,
		Title:       collapseSpace(e.Title),
		Abstract:    collapseSpace(e.Summary),
		Authors:     authors,
		PublishedAt: published.UTC(),
		AbsURL:      absURL,
		PDFURL:      pdfURL,
		Source:      models.SourceArxiv,
		Status:      models.StatusNew,
	}, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
