package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/citescope/citescope/internal/ports"
)

// Anthropic provider constants.
const (
	AnthropicDefaultModel     = "claude-3-5-haiku-20241022"
	anthropicDefaultMaxTokens = 2048
)

// anthropicGenerator implements ports.TextGenerator on the Anthropic
// Messages API.
type anthropicGenerator struct {
	client anthropic.Client
	model  string
}

func newAnthropicGenerator(cfg Config) (ports.TextGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicGenerator{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

func (g *anthropicGenerator) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}
	if opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.System}}
	}

	message, err := g.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Err: err}
		}
		return "", &ProviderError{Provider: "anthropic", Err: err}
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(content.Text)
		}
	}

	if text.Len() == 0 {
		return "", &ProviderError{Provider: "anthropic", Err: errors.New("empty response")}
	}
	return text.String(), nil
}

func (g *anthropicGenerator) Model() string { return g.model }
