// Package application wires the domain logic into batch sessions: parsing
// grounded answers, processing query batches through a bounded worker pool,
// and exposing the aggregate views of a completed run.
package application

import (
	"context"

	"github.com/citescope/citescope/internal/domain"
	"github.com/citescope/citescope/internal/ports"
)

// GroundedResponseParser converts one AI answer's raw citation graph into
// text segments with resolved citations. The parser is stateless and safe
// for concurrent use; resolution results are memoized per Parse call on top
// of the resolver's own batch-wide cache, so a chunk referenced by several
// supports is resolved at most once.
type GroundedResponseParser struct {
	resolver ports.URLResolver
}

// NewGroundedResponseParser creates a parser that resolves citation URLs
// through the given resolver. A nil resolver leaves every citation
// unresolved, which is useful for redirect-only analysis and tests.
func NewGroundedResponseParser(resolver ports.URLResolver) *GroundedResponseParser {
	return &GroundedResponseParser{resolver: resolver}
}

// Parse builds the segment list for one raw grounded answer. An answer
// with no chunks or no supports yields an empty list: that is the signal
// that the model answered from prior knowledge without web search, not an
// error. Chunk references outside the chunk list are skipped silently, and
// citation order within a segment follows the chunk-index order given by
// the AI service. Parse never fails; resolution failures only leave
// ResolvedURL empty.
func (p *GroundedResponseParser) Parse(ctx context.Context, raw *domain.RawGroundedAnswer) []domain.Segment {
	if !raw.HasGrounding() {
		return nil
	}

	memo := make(map[int]domain.Citation, len(raw.Chunks))
	citationFor := func(idx int) (domain.Citation, bool) {
		if idx < 0 || idx >= len(raw.Chunks) {
			return domain.Citation{}, false
		}
		if c, ok := memo[idx]; ok {
			return c, true
		}

		chunk := raw.Chunks[idx]
		if chunk.Title == "" && chunk.RedirectURL == "" {
			// Placeholder for a non-web chunk; keeps indices aligned but
			// contributes no citation.
			return domain.Citation{}, false
		}

		c := domain.Citation{Title: chunk.Title, RedirectURL: chunk.RedirectURL}
		if p.resolver != nil && chunk.RedirectURL != "" {
			if final, ok := p.resolver.Resolve(ctx, chunk.RedirectURL); ok {
				c.ResolvedURL = final
			}
		}
		memo[idx] = c
		return c, true
	}

	segments := make([]domain.Segment, 0, len(raw.Supports))
	for _, sup := range raw.Supports {
		seg := domain.Segment{
			Text:       sup.Text,
			StartIndex: sup.StartIndex,
			EndIndex:   sup.EndIndex,
		}
		for _, idx := range sup.ChunkIndices {
			if c, ok := citationFor(idx); ok {
				seg.Citations = append(seg.Citations, c)
			}
		}
		segments = append(segments, seg)
	}

	return segments
}
