package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 384
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

// MockFigureSentinel is what the mock vision model answers for every image.
const MockFigureSentinel = "This image does not appear to be a scientific figure from the paper."

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	text := "Mock response."
	if strings.Contains(strings.ToLower(req.Operation), "ask") {
		builder := strings.Builder{}
		builder.WriteString("Mock answer: ")
		builder.WriteString(firstLine(req.Prompt))
		if strings.HasPrefix(req.Prompt, "Context from the paper:") {
			builder.WriteString(" (grounded in the uploaded paper)")
		}
		text = builder.String()
	}
	return GenerateResponse{Text: text}, ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}, nil
}

func (m *MockProvider) Describe(ctx context.Context, req DescribeRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	_ = req
	return GenerateResponse{Text: MockFigureSentinel}, ProviderInfo{Name: "mock", Model: "mock-vision-v1", Key: "mock"}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		v := float32(u%2000)/1000.0 - 1.0
		vec[i] = v
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / (float64(sum) + 1e-9))
	for i := range v {
		v[i] *= inv
	}
	return v
}
