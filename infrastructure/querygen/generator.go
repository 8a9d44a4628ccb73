// Package querygen turns a website's content into a classified batch of
// search queries using a plain text-generation model.
package querygen

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/citescope/citescope/internal/domain"
	"github.com/citescope/citescope/internal/ports"
)

const (
	// maxQueries caps a batch regardless of what the model returns.
	maxQueries = 20

	// minQueryLength filters out fragments the extraction regexes can
	// produce from malformed responses.
	minQueryLength = 4

	// nearDuplicateDistance is the maximum Levenshtein distance at which
	// two queries count as the same query.
	nearDuplicateDistance = 3

	// maxContentLength truncates page content so the prompt stays inside
	// provider input limits.
	maxContentLength = 12000
)

var (
	listPattern   = regexp.MustCompile(`(?s)\[.*?\]`)
	quotedPattern = regexp.MustCompile(`"([^"]+)"`)
)

// Generator implements ports.QueryGenerator: fetch the page, prompt a
// text model for queries, and parse the response defensively since models
// do not always honor the output format.
type Generator struct {
	textGen ports.TextGenerator
	fetcher ports.ContentFetcher
	log     *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Generator) { g.log = log }
}

// New creates a Generator over the given text model and page fetcher.
func New(textGen ports.TextGenerator, fetcher ports.ContentFetcher, opts ...Option) *Generator {
	g := &Generator{
		textGen: textGen,
		fetcher: fetcher,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateQueries fetches the URL's content and asks the model for count
// classified queries. The returned batch is deduplicated and capped; it
// may be shorter than count when the model under-delivers.
func (g *Generator) GenerateQueries(ctx context.Context, url string, count int) ([]domain.Query, error) {
	content, err := g.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content for %s: %w", url, err)
	}
	if len(content) > maxContentLength {
		content = content[:maxContentLength]
	}

	response, err := g.textGen.Generate(ctx, buildPrompt(content, count), ports.GenerateOptions{})
	if err != nil {
		return nil, fmt.Errorf("query generation request failed: %w", err)
	}

	queries := g.dedupe(extractQueries(response))
	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}

	g.log.Info("generated query batch",
		zap.String("url", url),
		zap.Int("requested", count),
		zap.Int("generated", len(queries)),
		zap.String("model", g.textGen.Model()))
	return queries, nil
}

func buildPrompt(content string, count int) string {
	return fmt.Sprintf(`You are an expert query generator specializing in creating diverse, realistic search queries.

Analyze the provided website content and generate queries that real users might search for when looking for information related to this content.

CONTENT TO ANALYZE:
`+"```"+`
%s
`+"```"+`

QUERY GENERATION REQUIREMENTS:
1. Generate %d diverse queries covering different aspects of the content:
   main topics, specific services or products, industry trends, brand name
   variations, problem-solving queries, comparisons, and how-to questions.
2. Make queries natural and varied in length (2-8 words typically).
3. Classify each query: "Direct" when it names the company, brand, or a
   specific offering from the content; "Generic" when a user with no
   knowledge of this company could search it.

CRITICAL OUTPUT FORMAT:
- Return ONLY a valid JSON array, no additional text or formatting
- Each element must be an object with "query" and "type" fields
- Example: [{"query": "acme widget pricing", "type": "Direct"}, {"query": "best widget brands", "type": "Generic"}]

Generate the queries now:`, content, count)
}

// extractQueries pulls classified queries out of a model response. It
// tries the requested JSON object format first, then a bare string array,
// then falls back to scraping quoted strings. Queries without a usable
// classification default to Generic.
func extractQueries(response string) []domain.Query {
	if list := listPattern.FindString(response); list != "" {
		var classified []struct {
			Query string `json:"query"`
			Type  string `json:"type"`
		}
		if err := json.Unmarshal([]byte(list), &classified); err == nil {
			queries := make([]domain.Query, 0, len(classified))
			for _, item := range classified {
				text := strings.TrimSpace(item.Query)
				if len(text) < minQueryLength {
					continue
				}
				queries = append(queries, domain.Query{
					Text:           text,
					Classification: parseClassification(item.Type),
				})
			}
			if len(queries) > 0 {
				return queries
			}
		}

		var plain []string
		if err := json.Unmarshal([]byte(list), &plain); err == nil {
			queries := make([]domain.Query, 0, len(plain))
			for _, text := range plain {
				text = strings.TrimSpace(text)
				if len(text) < minQueryLength {
					continue
				}
				queries = append(queries, domain.Query{
					Text:           text,
					Classification: domain.ClassificationGeneric,
				})
			}
			if len(queries) > 0 {
				return queries
			}
		}
	}

	// Last resort: anything in double quotes.
	var queries []domain.Query
	for _, match := range quotedPattern.FindAllStringSubmatch(response, -1) {
		text := strings.TrimSpace(match[1])
		if len(text) < minQueryLength || text == "query" || text == "type" ||
			text == "Direct" || text == "Generic" {
			continue
		}
		queries = append(queries, domain.Query{
			Text:           text,
			Classification: domain.ClassificationGeneric,
		})
	}
	return queries
}

func parseClassification(raw string) domain.QueryClassification {
	if strings.EqualFold(strings.TrimSpace(raw), string(domain.ClassificationDirect)) {
		return domain.ClassificationDirect
	}
	return domain.ClassificationGeneric
}

// dedupe removes exact and near-duplicate queries, case-insensitively,
// keeping the first occurrence.
func (g *Generator) dedupe(queries []domain.Query) []domain.Query {
	kept := make([]domain.Query, 0, len(queries))
	folded := make([]string, 0, len(queries))

	// Casers are stateful, so build one per call.
	caser := cases.Fold()
	for _, q := range queries {
		f := caser.String(q.Text)
		duplicate := false
		for _, existing := range folded {
			if f == existing || levenshtein.ComputeDistance(f, existing) <= nearDuplicateDistance {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, q)
		folded = append(folded, f)
	}
	return kept
}
