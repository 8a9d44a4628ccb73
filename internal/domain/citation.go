// Package domain contains pure, dependency-free domain models and logic
// for the citation analysis engine.
package domain

// QueryClassification labels how a query relates to the analyzed subject.
// The classification is supplied by the query-generation collaborator and
// is treated as an opaque label by the analysis core.
type QueryClassification string

const (
	// ClassificationDirect marks queries that explicitly name the subject
	// entity (brand, company, product).
	ClassificationDirect QueryClassification = "Direct"

	// ClassificationGeneric marks queries that discuss related topics
	// without naming the subject entity.
	ClassificationGeneric QueryClassification = "Generic"
)

// Query is one input unit of a batch analysis run.
type Query struct {
	// Text is the search-like question sent to the AI service.
	Text string `json:"query"`

	// Classification is the externally supplied Direct/Generic label.
	Classification QueryClassification `json:"queryType"`
}

// Citation is one evidentiary source attached to a text segment of a
// grounded answer. Title is the display label the AI service gives the
// source, frequently but not reliably a bare domain. ResolvedURL is filled
// in by the citation resolver and stays empty when resolution failed;
// a Citation is immutable once resolved.
type Citation struct {
	Title       string `json:"title"`
	RedirectURL string `json:"redirectUrl"`
	ResolvedURL string `json:"resolvedUrl,omitempty"`
}

// Segment is a contiguous span of the AI's answer text together with the
// citations supporting it. StartIndex and EndIndex are offsets into the
// full answer text, with StartIndex <= EndIndex.
type Segment struct {
	Text       string     `json:"text"`
	StartIndex int        `json:"startIndex"`
	EndIndex   int        `json:"endIndex"`
	Citations  []Citation `json:"citations"`
}

// SourceChunk names one source in a raw grounded answer before parsing.
type SourceChunk struct {
	Title       string `json:"title"`
	RedirectURL string `json:"redirectUrl"`
}

// SupportSpan names a text span of the raw answer plus the indices of the
// chunks that support it, in the order the AI service reported them.
type SupportSpan struct {
	StartIndex   int    `json:"startIndex"`
	EndIndex     int    `json:"endIndex"`
	Text         string `json:"text"`
	ChunkIndices []int  `json:"chunkIndices"`
}

// RawGroundedAnswer is the typed schema for one AI answer's citation graph,
// mapped from the AI collaborator's loosely-typed response at the parser
// boundary. Consumers must tolerate additive fields.
type RawGroundedAnswer struct {
	ResponseText     string        `json:"responseText"`
	WebSearchQueries []string      `json:"webSearchQueries,omitempty"`
	Chunks           []SourceChunk `json:"chunks,omitempty"`
	Supports         []SupportSpan `json:"supports,omitempty"`
}

// HasGrounding reports whether the answer carries web-search evidence.
// An answer without chunks or supports was produced from the model's prior
// knowledge; that is a documented outcome, not an error.
func (r *RawGroundedAnswer) HasGrounding() bool {
	return r != nil && len(r.Chunks) > 0 && len(r.Supports) > 0
}

// DomainCount is the number of raw citation occurrences of one canonical
// domain within a single query's answer.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// QueryResult holds everything the engine derives from one query.
// RawAnswer is nil when the AI call for the query failed; HadGrounding
// distinguishes a successful-but-ungrounded answer from that failure case.
// Results are append-only for the duration of one batch run.
type QueryResult struct {
	Query        Query              `json:"query"`
	DomainCounts []DomainCount      `json:"domainCounts"`
	RawAnswer    *RawGroundedAnswer `json:"rawAnswer,omitempty"`
	HadGrounding bool               `json:"hadGrounding"`
	Segments     []Segment          `json:"groundingSegments,omitempty"`
}

// Failed reports whether the AI call for this query failed outright.
func (r QueryResult) Failed() bool { return r.RawAnswer == nil }
