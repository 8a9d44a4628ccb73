// Package gemini implements the grounded-answer client on the Gemini API
// with Google Search grounding enabled.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/citescope/citescope/internal/domain"
	"github.com/citescope/citescope/internal/ports"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Client implements ports.GroundedClient against the Gemini API. Every
// request carries the Google Search tool so answers come back with
// grounding metadata when the model searched.
type Client struct {
	genai *genai.Client
	model string
	log   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the default Gemini model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a grounded client authenticated with apiKey.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}

	ai, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	c := &Client{
		genai: ai,
		model: DefaultModel,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GenerateGrounded asks the model to answer query with search grounding
// and returns the raw answer with its citation metadata. Authentication
// and quota failures wrap ports.ErrBatchFatal since retrying other
// queries with the same credentials cannot succeed.
func (c *Client) GenerateGrounded(ctx context.Context, query string) (*domain.RawGroundedAnswer, error) {
	start := time.Now()

	resp, err := c.genai.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(query, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		})
	if err != nil {
		return nil, c.classifyError(err)
	}

	answer := mapResponse(resp)
	c.log.Debug("grounded answer received",
		zap.String("model", c.model),
		zap.Int("chunks", len(answer.Chunks)),
		zap.Int("supports", len(answer.Supports)),
		zap.Duration("duration", time.Since(start)))
	return answer, nil
}

// mapResponse converts the SDK response into the provider-neutral answer.
// Non-web grounding chunks become zero-value placeholders so support
// indices keep pointing at the right chunk.
func mapResponse(resp *genai.GenerateContentResponse) *domain.RawGroundedAnswer {
	answer := &domain.RawGroundedAnswer{ResponseText: resp.Text()}

	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return answer
	}
	meta := resp.Candidates[0].GroundingMetadata

	answer.WebSearchQueries = append(answer.WebSearchQueries, meta.WebSearchQueries...)

	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			answer.Chunks = append(answer.Chunks, domain.SourceChunk{})
			continue
		}
		answer.Chunks = append(answer.Chunks, domain.SourceChunk{
			Title:       chunk.Web.Title,
			RedirectURL: chunk.Web.URI,
		})
	}

	for _, support := range meta.GroundingSupports {
		if support == nil {
			continue
		}
		span := domain.SupportSpan{}
		if support.Segment != nil {
			span.StartIndex = int(support.Segment.StartIndex)
			span.EndIndex = int(support.Segment.EndIndex)
			span.Text = support.Segment.Text
		}
		for _, idx := range support.GroundingChunkIndices {
			span.ChunkIndices = append(span.ChunkIndices, int(idx))
		}
		answer.Supports = append(answer.Supports, span)
	}

	return answer
}

// classifyError separates credential and quota failures, which doom the
// whole batch, from transient per-query failures.
func (c *Client) classifyError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return fmt.Errorf("%w: gemini rejected credentials (HTTP %d): %v",
				ports.ErrBatchFatal, apiErr.Code, err)
		case 429:
			return fmt.Errorf("%w: gemini quota exhausted: %v", ports.ErrBatchFatal, err)
		}
	}

	return fmt.Errorf("gemini: grounded generation failed: %w", err)
}
