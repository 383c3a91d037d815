package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// defaultOpenAIModel is the chat model used for knowledge lookups.
const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider implements Provider via the OpenAI Chat Completions API.
type OpenAIProvider struct {
	Base
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI knowledge provider. The optional baseURL
// parameter allows overriding the API endpoint (pass "" for the default);
// model may be empty for the default.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	resolvedBase := "https://api.openai.com"
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
		resolvedBase = baseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	client := openai.NewClient(opts...)
	return &OpenAIProvider{
		Base:   Base{name: "openai", apiKey: apiKey, baseURL: resolvedBase},
		client: client,
		model:  model,
	}, nil
}

// Query sends prompt as a single user message and returns the assistant text.
func (p *OpenAIProvider) Query(ctx context.Context, prompt string) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: p.model,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", ErrUnavailable, err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: openai", ErrEmptyResponse)
	}
	return completion.Choices[0].Message.Content, nil
}
