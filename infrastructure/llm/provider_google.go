package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/citescope/citescope/internal/ports"
)

// GoogleDefaultModel is used when a Google generator has no configured
// model.
const GoogleDefaultModel = "gemini-2.5-flash"

// googleGenerator implements ports.TextGenerator on the Gemini API,
// without grounding. Query generation wants plain chat completions; the
// grounded path lives in the gemini package.
type googleGenerator struct {
	client *genai.Client
	model  string
}

func newGoogleGenerator(ctx context.Context, cfg Config) (ports.TextGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google: %w", ErrMissingAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}

	return &googleGenerator{client: client, model: model}, nil
}

func (g *googleGenerator) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	// Gemini has no separate system role; fold it into the prompt.
	finalPrompt := prompt
	if opts.System != "" {
		finalPrompt = fmt.Sprintf("System: %s\n\nUser: %s", opts.System, prompt)
	}

	config := &genai.GenerateContentConfig{}
	if opts.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(finalPrompt, genai.RoleUser)},
		config)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return "", &ProviderError{Provider: "google", StatusCode: apiErr.Code, Err: err}
		}
		return "", &ProviderError{Provider: "google", Err: err}
	}

	content := resp.Text()
	if content == "" {
		return "", &ProviderError{Provider: "google", Err: errors.New("empty response")}
	}
	return content, nil
}

func (g *googleGenerator) Model() string { return g.model }
