package ports

import "errors"

// Failure taxonomy for a batch run. Resolution and parse failures never
// surface as errors at all; they are absorbed at the lowest layer and
// manifest only as missing data. The errors below cover the cases that do
// propagate.
var (
	// ErrBatchFatal marks failures that abort the whole batch, such as the
	// AI collaborator being unreachable or rejecting credentials. Wrap it
	// with %w so errors.Is works across layers. Per-query failures must
	// not carry this marker.
	ErrBatchFatal = errors.New("batch-fatal failure")

	// ErrAlreadyAnalyzing is returned when a batch start is requested
	// while another run is still in the analyzing state.
	ErrAlreadyAnalyzing = errors.New("analysis already running")

	// ErrNoResults is returned when results are requested before any
	// batch has completed.
	ErrNoResults = errors.New("no analysis results available")

	// ErrNoQueries is returned when query generation produced an empty
	// batch, which leaves nothing to analyze.
	ErrNoQueries = errors.New("no queries generated")
)

// IsBatchFatal reports whether err should abort the whole batch rather
// than fail a single query.
func IsBatchFatal(err error) bool { return errors.Is(err, ErrBatchFatal) }
