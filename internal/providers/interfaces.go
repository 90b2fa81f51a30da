package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type GenerateRequest struct {
	Operation string   `json:"operation"`
	System    string   `json:"system"`
	Prompt    string   `json:"prompt"`
	Context   []string `json:"context"`
	MaxTokens int      `json:"max_tokens"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
	// Provider pins the call to one provider name. Vectors from different
	// providers are not comparable, so a pinned call never fails over.
	Provider string `json:"provider,omitempty"`
}

// DescribeRequest asks a vision-capable model about one image.
type DescribeRequest struct {
	Operation string `json:"operation"`
	System    string `json:"system"`
	Prompt    string `json:"prompt"`
	Image     []byte `json:"-"`
	MIMEType  string `json:"mime_type"`
	MaxTokens int    `json:"max_tokens"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}

type VisionProvider interface {
	Describe(ctx context.Context, req DescribeRequest) (GenerateResponse, ProviderInfo, error)
}
