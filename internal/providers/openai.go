package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v2"
)

// OpenAIProvider serves chat, figure description and embeddings from the
// OpenAI API. MOWAKEB_OPENAI_BASE_URL points it at a compatible server.
type OpenAIProvider struct {
	chat       chatClient
	embedModel string
}

func NewOpenAIProvider(keyName string) *OpenAIProvider {
	chat := newChatClient("openai", keyName, resolveOpenAIKey(keyName),
		os.Getenv("MOWAKEB_OPENAI_BASE_URL"),
		envOr("MOWAKEB_OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		envOr("MOWAKEB_OPENAI_VISION_MODEL", "gpt-4o-mini"),
	)
	return &OpenAIProvider{
		chat:       chat,
		embedModel: envOr("MOWAKEB_OPENAI_EMBED_MODEL", "text-embedding-3-small"),
	}
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	return o.chat.generate(ctx, req)
}

func (o *OpenAIProvider) Describe(ctx context.Context, req DescribeRequest) (GenerateResponse, ProviderInfo, error) {
	return o.chat.describe(ctx, req)
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := o.chat.info(o.embedModel)
	if o.chat.apiKey == "" {
		return nil, info, fmt.Errorf("openai key missing for alias %q", o.chat.keyName)
	}
	if len(req.Inputs) == 0 {
		return nil, info, fmt.Errorf("no embedding inputs")
	}
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(o.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: req.Inputs},
	}
	if req.Dimension > 0 {
		params.Dimensions = openai.Int(int64(req.Dimension))
	}
	resp, err := o.chat.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, info, fmt.Errorf("openai embedding request failed: %w", err)
	}
	if len(resp.Data) != len(req.Inputs) {
		return nil, info, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(req.Inputs))
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, info, fmt.Errorf("openai embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			vec[i] = float32(x)
		}
		out[d.Index] = matchDimension(vec, req.Dimension)
	}
	return out, info, nil
}

func resolveOpenAIKey(alias string) string {
	if alias != "" {
		k := os.Getenv("MOWAKEB_OPENAI_KEY_" + strings.ToUpper(sanitizeEnvToken(alias)))
		if k != "" {
			return k
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
