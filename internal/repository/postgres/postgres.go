package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smartcity/traffic-analyzer/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id                  UUID PRIMARY KEY,
		file_name           TEXT NOT NULL DEFAULT '',
		record_count        INTEGER NOT NULL,
		location_count      INTEGER NOT NULL,
		anomaly_count       INTEGER NOT NULL,
		high_severity_count INTEGER NOT NULL,
		med_severity_count  INTEGER NOT NULL,
		source              TEXT NOT NULL,
		confidence          TEXT NOT NULL,
		duration_ms         BIGINT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL
	)
`

// PostgresRepository implements domain.AnalysisLogRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the audit table if it does not exist
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to ensure schema: %w", err)
	}
	return nil
}

// SaveAnalysisRun persists an analysis audit row to PostgreSQL
func (r *PostgresRepository) SaveAnalysisRun(ctx context.Context, run domain.AnalysisRun) error {
	query := `
		INSERT INTO analysis_runs (
			id, file_name, record_count, location_count, anomaly_count,
			high_severity_count, med_severity_count, source, confidence, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.FileName, run.RecordCount, run.LocationCount, run.AnomalyCount,
		run.HighSeverityCount, run.MedSeverityCount, run.Source, run.Confidence, run.DurationMS, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save analysis run: %w", err)
	}

	return nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
