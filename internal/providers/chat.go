package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// chatClient is the OpenAI-compatible chat surface shared by the OpenAI and
// Groq providers.
type chatClient struct {
	name        string
	keyName     string
	apiKey      string
	model       string
	visionModel string
	client      openai.Client
}

func newChatClient(name, keyName, apiKey, baseURL, model, visionModel string) chatClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	if visionModel == "" {
		visionModel = model
	}
	return chatClient{
		name:        name,
		keyName:     keyName,
		apiKey:      apiKey,
		model:       model,
		visionModel: visionModel,
		client:      openai.NewClient(opts...),
	}
}

func (c chatClient) info(model string) ProviderInfo {
	return ProviderInfo{Name: c.name, Model: model, Key: c.keyName}
}

func (c chatClient) generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := c.info(c.model)
	if c.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("%s key missing for alias %q", c.name, c.keyName)
	}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	return c.complete(ctx, params, info)
}

func (c chatClient) describe(ctx context.Context, req DescribeRequest) (GenerateResponse, ProviderInfo, error) {
	info := c.info(c.visionModel)
	if c.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("%s key missing for alias %q", c.name, c.keyName)
	}
	if len(req.Image) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("%s describe: empty image", c.name)
	}
	mime := req.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.visionModel),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	return c.complete(ctx, params, info)
}

func (c chatClient) complete(ctx context.Context, params openai.ChatCompletionNewParams, info ProviderInfo) (GenerateResponse, ProviderInfo, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("%s chat completion failed: %w", c.name, err)
	}
	// No choices is an empty answer, not a provider failure.
	if len(resp.Choices) == 0 {
		return GenerateResponse{}, info, nil
	}
	return GenerateResponse{Text: resp.Choices[0].Message.Content}, info, nil
}
