package providers

import (
	"context"
	"os"
	"strings"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqProvider supports generation and figure description via Groq's
// OpenAI-compatible API.
type GroqProvider struct {
	chat chatClient
}

func NewGroqProvider(keyName string) *GroqProvider {
	return &GroqProvider{chat: newChatClient("groq", keyName, resolveGroqKey(keyName),
		envOr("MOWAKEB_GROQ_BASE_URL", groqBaseURL),
		envOr("MOWAKEB_GROQ_MODEL", "llama-3.1-8b-instant"),
		envOr("MOWAKEB_GROQ_VISION_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
	)}
}

func (g *GroqProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	return g.chat.generate(ctx, req)
}

func (g *GroqProvider) Describe(ctx context.Context, req DescribeRequest) (GenerateResponse, ProviderInfo, error) {
	return g.chat.describe(ctx, req)
}

func resolveGroqKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("MOWAKEB_GROQ_KEY_" + strings.ToUpper(sanitizeEnvToken(alias))); v != "" {
			return v
		}
	}
	return os.Getenv("GROQ_API_KEY")
}
