package postgres

import (
	"context"
	"sync"

	"github.com/smartcity/traffic-analyzer/internal/domain"
)

const mockRunLimit = 100

// MockRepository implements domain.AnalysisLogRepository when no database is configured.
// The most recent runs are kept in memory for inspection and never read by the pipeline.
type MockRepository struct {
	mu   sync.Mutex
	runs []domain.AnalysisRun
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// SaveAnalysisRun records the run in memory
func (r *MockRepository) SaveAnalysisRun(ctx context.Context, run domain.AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	if len(r.runs) > mockRunLimit {
		r.runs = r.runs[len(r.runs)-mockRunLimit:]
	}
	return nil
}

// Runs returns a copy of the recorded runs
func (r *MockRepository) Runs() []domain.AnalysisRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AnalysisRun, len(r.runs))
	copy(out, r.runs)
	return out
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
