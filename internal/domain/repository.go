package domain

import "context"

// AnalysisLogRepository records completed analyses.
// Nothing stored here is ever read back into the pipeline.
type AnalysisLogRepository interface {
	// SaveAnalysisRun persists an audit row for a completed analysis
	SaveAnalysisRun(ctx context.Context, run AnalysisRun) error

	// Health checks storage connectivity
	Health(ctx context.Context) error
}
