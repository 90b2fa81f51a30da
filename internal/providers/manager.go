package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mowakeb/internal/config"
	"mowakeb/internal/observability"

	"github.com/rs/zerolog"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

type NamedVisionProvider struct {
	Ref      ProviderRef
	Provider VisionProvider
}

// Manager holds the configured providers per capability and fails over
// between them: real providers first in configured order, mock last.
type Manager struct {
	llmProviders    []NamedLLMProvider
	embedProviders  []NamedEmbedProvider
	visionProviders []NamedVisionProvider
	embedDim        int

	log     zerolog.Logger
	metrics *observability.Metrics
}

var (
	_ LLMProvider       = (*Manager)(nil)
	_ EmbeddingProvider = (*Manager)(nil)
	_ VisionProvider    = (*Manager)(nil)
)

func NewManager(cfg config.Config, log zerolog.Logger, metrics *observability.Metrics) (*Manager, error) {
	m := &Manager{embedDim: cfg.EmbedDim, log: log, metrics: metrics}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support llm", ref.Raw)
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: llm})
	}
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: embed})
	}
	for _, ref := range ParseProviderList(cfg.VisionProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		vision, ok := p.(VisionProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support vision", ref.Raw)
		}
		m.visionProviders = append(m.visionProviders, NamedVisionProvider{Ref: ref, Provider: vision})
	}
	return m, nil
}

// EmbedDim is the vector size requested from embedding providers.
func (m *Manager) EmbedDim() int {
	return m.embedDim
}

func (m *Manager) LLMCount() int    { return len(m.llmProviders) }
func (m *Manager) EmbedCount() int  { return len(m.embedProviders) }
func (m *Manager) VisionCount() int { return len(m.visionProviders) }

func (m *Manager) PreferredLLMOrder() []int {
	return preferredOrder(len(m.llmProviders), func(i int) string { return strings.ToLower(m.llmProviders[i].Ref.Name) })
}

func (m *Manager) PreferredEmbedOrder() []int {
	return preferredOrder(len(m.embedProviders), func(i int) string { return strings.ToLower(m.embedProviders[i].Ref.Name) })
}

func (m *Manager) PreferredVisionOrder() []int {
	return preferredOrder(len(m.visionProviders), func(i int) string { return strings.ToLower(m.visionProviders[i].Ref.Name) })
}

func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var errs []error
	for _, i := range m.PreferredLLMOrder() {
		np := m.llmProviders[i]
		resp, info, err := np.Provider.Generate(ctx, req)
		if err == nil {
			return resp, info, nil
		}
		if ctx.Err() != nil {
			return GenerateResponse{}, info, ctx.Err()
		}
		m.recordFailure(np.Ref, req.Operation, err)
		errs = append(errs, err)
	}
	return GenerateResponse{}, ProviderInfo{}, failoverError("llm", errs)
}

func (m *Manager) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if req.Dimension <= 0 {
		req.Dimension = m.embedDim
	}
	var errs []error
	tried := 0
	for _, i := range m.PreferredEmbedOrder() {
		np := m.embedProviders[i]
		if req.Provider != "" && !strings.EqualFold(np.Ref.Name, req.Provider) {
			continue
		}
		tried++
		vecs, info, err := np.Provider.Embed(ctx, req)
		if err == nil {
			return vecs, info, nil
		}
		if ctx.Err() != nil {
			return nil, info, ctx.Err()
		}
		m.recordFailure(np.Ref, req.Operation, err)
		errs = append(errs, err)
	}
	if req.Provider != "" && tried == 0 {
		return nil, ProviderInfo{}, fmt.Errorf("embedding provider %q not configured", req.Provider)
	}
	return nil, ProviderInfo{}, failoverError("embedding", errs)
}

func (m *Manager) Describe(ctx context.Context, req DescribeRequest) (GenerateResponse, ProviderInfo, error) {
	var errs []error
	for _, i := range m.PreferredVisionOrder() {
		np := m.visionProviders[i]
		resp, info, err := np.Provider.Describe(ctx, req)
		if err == nil {
			return resp, info, nil
		}
		if ctx.Err() != nil {
			return GenerateResponse{}, info, ctx.Err()
		}
		m.recordFailure(np.Ref, req.Operation, err)
		errs = append(errs, err)
	}
	return GenerateResponse{}, ProviderInfo{}, failoverError("vision", errs)
}

func (m *Manager) recordFailure(ref ProviderRef, operation string, err error) {
	errType := ClassifyError(err)
	m.log.Warn().
		Err(err).
		Str("provider", ref.Raw).
		Str("operation", operation).
		Str("error_type", string(errType)).
		Msg("provider call failed, trying next")
	m.metrics.IncProviderError(ref.Name, string(errType))
}

func failoverError(kind string, errs []error) error {
	if len(errs) == 0 {
		return fmt.Errorf("no %s providers configured", kind)
	}
	return fmt.Errorf("all %s providers failed: %w", kind, errors.Join(errs...))
}

func buildProvider(ref ProviderRef, dim int) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
