package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/citescope/citescope/internal/domain"
	"github.com/citescope/citescope/internal/ports"
)

func TestMapResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{Text: "Apple rose 3% today."}},
			},
			GroundingMetadata: &genai.GroundingMetadata{
				WebSearchQueries: []string{"apple stock today"},
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{
						URI:   "https://vertexaisearch.example/redirect/1",
						Title: "reuters.com",
					}},
					{}, // non-web chunk keeps its index slot
					{Web: &genai.GroundingChunkWeb{
						URI:   "https://vertexaisearch.example/redirect/2",
						Title: "bloomberg.com",
					}},
				},
				GroundingSupports: []*genai.GroundingSupport{
					{
						Segment: &genai.Segment{
							StartIndex: 0,
							EndIndex:   20,
							Text:       "Apple rose 3% today.",
						},
						GroundingChunkIndices: []int32{2, 0},
					},
				},
			},
		}},
	}

	answer := mapResponse(resp)

	assert.Equal(t, "Apple rose 3% today.", answer.ResponseText)
	assert.Equal(t, []string{"apple stock today"}, answer.WebSearchQueries)

	require.Len(t, answer.Chunks, 3)
	assert.Equal(t, "reuters.com", answer.Chunks[0].Title)
	assert.Equal(t, domain.SourceChunk{}, answer.Chunks[1], "non-web chunk becomes a placeholder")
	assert.Equal(t, "https://vertexaisearch.example/redirect/2", answer.Chunks[2].RedirectURL)

	require.Len(t, answer.Supports, 1)
	support := answer.Supports[0]
	assert.Equal(t, 0, support.StartIndex)
	assert.Equal(t, 20, support.EndIndex)
	assert.Equal(t, "Apple rose 3% today.", support.Text)
	assert.Equal(t, []int{2, 0}, support.ChunkIndices)

	assert.True(t, answer.HasGrounding())
}

func TestMapResponse_NoGrounding(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{Text: "From prior knowledge."}},
			},
		}},
	}

	answer := mapResponse(resp)

	assert.Equal(t, "From prior knowledge.", answer.ResponseText)
	assert.Empty(t, answer.Chunks)
	assert.Empty(t, answer.Supports)
	assert.False(t, answer.HasGrounding())
}

func TestClassifyError(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"unauthorized", &googleapi.Error{Code: 401, Message: "bad key"}, true},
		{"forbidden", &googleapi.Error{Code: 403, Message: "denied"}, true},
		{"quota", &googleapi.Error{Code: 429, Message: "quota"}, true},
		{"server error", &googleapi.Error{Code: 500, Message: "boom"}, false},
		{"plain error", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.classifyError(tt.err)
			require.Error(t, got)
			assert.Equal(t, tt.fatal, ports.IsBatchFatal(got))
		})
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), "")
	require.Error(t, err)
}
