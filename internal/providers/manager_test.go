package providers

import (
	"context"
	"errors"
	"testing"

	"mowakeb/internal/config"
	"mowakeb/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLLM struct{ err error }

func (f failingLLM) Generate(context.Context, GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	return GenerateResponse{}, ProviderInfo{Name: "openai"}, f.err
}

func TestNewManager(t *testing.T) {
	t.Run("builds each capability list", func(t *testing.T) {
		m, err := NewManager(config.Config{
			LLMProviders:    "mock|groq:team",
			EmbedProviders:  "ollama|mock",
			VisionProviders: "openai",
			EmbedDim:        384,
		}, zerolog.Nop(), nil)
		require.NoError(t, err)
		assert.Equal(t, 2, m.LLMCount())
		assert.Equal(t, 2, m.EmbedCount())
		assert.Equal(t, 1, m.VisionCount())
		assert.Equal(t, []int{1, 0}, m.PreferredLLMOrder(), "mock goes last")
	})

	t.Run("rejects capability mismatch", func(t *testing.T) {
		_, err := NewManager(config.Config{EmbedProviders: "groq"}, zerolog.Nop(), nil)
		assert.Error(t, err)

		_, err = NewManager(config.Config{VisionProviders: "ollama"}, zerolog.Nop(), nil)
		assert.Error(t, err)
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		_, err := NewManager(config.Config{LLMProviders: "bard"}, zerolog.Nop(), nil)
		assert.Error(t, err)
	})
}

func TestManager_Failover(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	m := &Manager{
		llmProviders: []NamedLLMProvider{
			{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(8)},
			{Ref: ProviderRef{Raw: "openai", Name: "openai"}, Provider: failingLLM{err: errors.New("429 rate limited")}},
		},
		log:     zerolog.Nop(),
		metrics: metrics,
	}

	resp, info, err := m.Generate(ctx, GenerateRequest{Operation: "ask", Prompt: "What is attention?"})
	require.NoError(t, err)
	assert.Equal(t, "mock", info.Name)
	assert.Equal(t, "Mock answer: What is attention?", resp.Text)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProviderErrors.WithLabelValues("openai", "rate")))

	m.llmProviders = m.llmProviders[1:]
	_, _, err = m.Generate(ctx, GenerateRequest{Operation: "ask"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all llm providers failed")
}

func TestManager_EmbedUsesConfiguredDim(t *testing.T) {
	m, err := NewManager(config.Config{EmbedProviders: "mock", EmbedDim: 16}, zerolog.Nop(), nil)
	require.NoError(t, err)

	vecs, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 16)
	assert.Equal(t, 16, m.EmbedDim())
}

func TestManager_DescribeMock(t *testing.T) {
	m, err := NewManager(config.Config{VisionProviders: "mock"}, zerolog.Nop(), nil)
	require.NoError(t, err)

	resp, _, err := m.Describe(context.Background(), DescribeRequest{Image: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, MockFigureSentinel, resp.Text)
}

func TestManager_NoProviders(t *testing.T) {
	m := &Manager{log: zerolog.Nop()}
	_, _, err := m.Describe(context.Background(), DescribeRequest{})
	assert.EqualError(t, err, "no vision providers configured")
}

// flakyEmbed answers once and then fails.
type flakyEmbed struct{ calls int }

func (f *flakyEmbed) Embed(_ context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	f.calls++
	info := ProviderInfo{Name: "openai", Model: "text-embedding-3-small"}
	if f.calls > 1 {
		return nil, info, errors.New("503 service unavailable")
	}
	out := make([][]float32, len(req.Inputs))
	for i := range out {
		out[i] = make([]float32, req.Dimension)
	}
	return out, info, nil
}

func TestManager_EmbedPinnedProvider(t *testing.T) {
	ctx := context.Background()
	newManager := func() *Manager {
		return &Manager{
			embedProviders: []NamedEmbedProvider{
				{Ref: ProviderRef{Raw: "openai", Name: "openai"}, Provider: &flakyEmbed{}},
				{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(8)},
			},
			embedDim: 8,
			log:      zerolog.Nop(),
		}
	}

	t.Run("pinned call does not fail over", func(t *testing.T) {
		m := newManager()
		_, info, err := m.Embed(ctx, EmbedRequest{Operation: "index", Inputs: []string{"doc"}})
		require.NoError(t, err)
		require.Equal(t, "openai", info.Name)

		_, _, err = m.Embed(ctx, EmbedRequest{Operation: "query", Inputs: []string{"q"}, Provider: info.Name})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("unpinned call still fails over", func(t *testing.T) {
		m := newManager()
		_, _, err := m.Embed(ctx, EmbedRequest{Inputs: []string{"doc"}})
		require.NoError(t, err)

		_, info, err := m.Embed(ctx, EmbedRequest{Inputs: []string{"q"}})
		require.NoError(t, err)
		assert.Equal(t, "mock", info.Name)
	})

	t.Run("pinned to unknown provider", func(t *testing.T) {
		_, _, err := newManager().Embed(ctx, EmbedRequest{Inputs: []string{"q"}, Provider: "ollama"})
		assert.EqualError(t, err, `embedding provider "ollama" not configured`)
	})
}
