// Package qa answers questions about one uploaded paper: it indexes text
// chunks and figure descriptions, retrieves the nearest ones for a question
// and asks a chat model with them as context.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mowakeb/internal/models"
	"mowakeb/internal/observability"
	"mowakeb/internal/providers"
	"mowakeb/internal/util"
	"mowakeb/internal/vector"

	"github.com/rs/zerolog"
)

// PageRenderer rasterises every page of a PDF to PNG.
type PageRenderer interface {
	RenderPages(ctx context.Context, pdfPath string, dpi float64) ([]models.PageImage, error)
}

// RegionDetector finds figure-sized regions on a page image and returns each
// as a PNG crop.
type RegionDetector interface {
	DetectRegions(pagePNG []byte) ([][]byte, error)
}

type Config struct {
	ChunkSize      int
	ChunkOverlap   int
	DPI            float64
	K              int
	FiguresEnabled bool
	EmbedDim       int
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 600
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.DPI <= 0 {
		c.DPI = 200
	}
	if c.K <= 0 {
		c.K = 5
	}
	return c
}

type Pipeline struct {
	extractor TextExtractor
	renderer  PageRenderer
	detector  RegionDetector
	llm       providers.LLMProvider
	embedder  providers.EmbeddingProvider
	vision    providers.VisionProvider
	cfg       Config
	log       zerolog.Logger
	metrics   *observability.Metrics
}

// Deps groups the collaborators of a Pipeline. Renderer, Detector and Vision
// may be nil, which disables figure extraction.
type Deps struct {
	Extractor TextExtractor
	Renderer  PageRenderer
	Detector  RegionDetector
	LLM       providers.LLMProvider
	Embedder  providers.EmbeddingProvider
	Vision    providers.VisionProvider
}

func NewPipeline(deps Deps, cfg Config, log zerolog.Logger, metrics *observability.Metrics) *Pipeline {
	if deps.Extractor == nil {
		deps.Extractor = PDFTextExtractor{}
	}
	return &Pipeline{
		extractor: deps.Extractor,
		renderer:  deps.Renderer,
		detector:  deps.Detector,
		llm:       deps.LLM,
		embedder:  deps.Embedder,
		vision:    deps.Vision,
		cfg:       cfg.withDefaults(),
		log:       log,
		metrics:   metrics,
	}
}

func (p *Pipeline) figuresEnabled() bool {
	return p.cfg.FiguresEnabled && p.renderer != nil && p.detector != nil && p.vision != nil
}

// BuildIndex extracts, chunks, describes and embeds pdfPath into a new
// Session.
func (p *Pipeline) BuildIndex(ctx context.Context, pdfPath string) (*Session, error) {
	start := time.Now()
	log := p.log.With().Str("pdf", pdfPath).Logger()

	raw, err := p.extractor.Extract(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	text := util.CleanExtractedText(raw)

	docs := make([]models.Document, 0)
	for _, chunk := range util.ChunkText(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap) {
		docs = append(docs, models.Document{Type: models.DocumentText, Content: chunk})
	}
	log.Debug().Int("chars", len([]rune(text))).Int("chunks", len(docs)).Msg("text chunked")

	if p.figuresEnabled() {
		figures, err := p.describeFigures(ctx, pdfPath, log)
		if err != nil {
			return nil, err
		}
		docs = append(docs, figures...)
	}

	if len(docs) == 0 {
		return nil, util.ErrNoExtractableText
	}

	inputs := make([]string, len(docs))
	for i, d := range docs {
		inputs[i] = d.Content
	}
	vecs, info, err := p.embedder.Embed(ctx, providers.EmbedRequest{Operation: "index", Inputs: inputs, Dimension: p.cfg.EmbedDim})
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(docs) || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d documents", len(vecs), len(docs))
	}

	index := vector.NewFlatIndex(len(vecs[0]))
	if err := index.Add(vecs...); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	elapsed := time.Since(start)
	p.metrics.ObserveIndexBuild(elapsed.Seconds(), len(docs))
	log.Info().
		Int("docs_in_index", len(docs)).
		Str("embed_provider", info.Name).
		Dur("took", elapsed).
		Msg("index built")

	return &Session{
		pdfPath:       pdfPath,
		docs:          docs,
		index:         index,
		createdAt:     time.Now().UTC(),
		embedProvider: info.Name,
	}, nil
}

func (p *Pipeline) describeFigures(ctx context.Context, pdfPath string, log zerolog.Logger) ([]models.Document, error) {
	pages, err := p.renderer.RenderPages(ctx, pdfPath, p.cfg.DPI)
	if err != nil {
		return nil, fmt.Errorf("render pages: %w", err)
	}

	var out []models.Document
	for _, page := range pages {
		crops, err := p.detector.DetectRegions(page.PNG)
		if err != nil {
			log.Warn().Err(err).Int("page", page.Page).Msg("region detection failed, skipping page")
			continue
		}
		for i, crop := range crops {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			resp, _, err := p.vision.Describe(ctx, providers.DescribeRequest{
				Operation: "describe_figure",
				System:    figureSystemPrompt,
				Prompt:    figurePrompt(""),
				Image:     crop,
				MIMEType:  "image/png",
				MaxTokens: describeMaxTokens,
			})
			if err != nil {
				log.Warn().Err(err).Int("page", page.Page).Int("region", i).Msg("figure description failed, skipping region")
				continue
			}
			desc := strings.TrimSpace(resp.Text)
			if desc == "" || desc == NotAFigure {
				continue
			}
			out = append(out, models.Document{Type: models.DocumentFigure, Content: resp.Text, Page: page.Page})
		}
	}
	log.Debug().Int("pages", len(pages)).Int("figures", len(out)).Msg("figures described")
	return out, nil
}

// Context returns the k documents nearest to question, nearest first, joined
// by a separator line. k <= 0 uses the configured default.
func (p *Pipeline) Context(ctx context.Context, s *Session, question string, k int) (string, error) {
	if s == nil || s.index == nil {
		return "", ErrNotIndexed
	}
	if k <= 0 {
		k = p.cfg.K
	}
	vecs, _, err := p.embedder.Embed(ctx, providers.EmbedRequest{
		Operation: "query",
		Inputs:    []string{question},
		Dimension: p.cfg.EmbedDim,
		Provider:  s.embedProvider,
	})
	if err != nil {
		return "", fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) == 0 {
		return "", errors.New("embed question: no vector returned")
	}
	hits, err := s.index.Search(vecs[0], k)
	if err != nil {
		return "", fmt.Errorf("search index: %w", err)
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, s.docs[h.ID].Content)
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

// Ask answers question using context retrieved from s. Retrieval failures
// and a nil session fall back to answering without context.
func (p *Pipeline) Ask(ctx context.Context, s *Session, question string) (string, error) {
	paperContext := ""
	if s != nil {
		c, err := p.Context(ctx, s, question, p.cfg.K)
		if err != nil {
			p.log.Warn().Err(err).Msg("context retrieval failed, answering without context")
			p.metrics.IncRetrievalFailure()
		} else {
			paperContext = c
		}
	}
	return p.AskWithContext(ctx, question, paperContext)
}

// AskWithContext sends question to the chat model with paperContext, if any.
func (p *Pipeline) AskWithContext(ctx context.Context, question, paperContext string) (string, error) {
	p.log.Info().Int("context_len", len([]rune(paperContext))).Msg("asking model")

	resp, info, err := p.llm.Generate(ctx, providers.GenerateRequest{
		Operation: "ask",
		System:    SystemPrompt,
		Prompt:    askPrompt(question, paperContext),
		MaxTokens: askMaxTokens,
	})
	if err != nil {
		p.metrics.IncAsk("error")
		return "", fmt.Errorf("generate answer: %w", err)
	}
	p.log.Debug().
		Str("provider", info.Name).
		Str("preview", util.DisplaySnippet(resp.Text, 200)).
		Msg("raw answer")

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		p.metrics.IncAsk("fallback")
		return EmptyAnswerFallback, nil
	}
	p.metrics.IncAsk("answered")
	return answer, nil
}
