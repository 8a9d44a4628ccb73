package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/citescope/citescope/internal/ports"
)

// OpenAIDefaultModel is used when an OpenAI generator has no configured
// model.
const OpenAIDefaultModel = "gpt-4o-mini"

// openaiGenerator implements ports.TextGenerator on OpenAI chat
// completions.
type openaiGenerator struct {
	client *openai.Client
	model  string
}

func newOpenAIGenerator(cfg Config) (ports.TextGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &openaiGenerator{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

func (g *openaiGenerator) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Err: err}
		}
		return "", &ProviderError{Provider: "openai", Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: "openai", Err: errors.New("no response choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *openaiGenerator) Model() string { return g.model }
