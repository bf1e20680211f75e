package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartcity/traffic-analyzer/internal/dataset"
	"github.com/smartcity/traffic-analyzer/internal/domain"
	"github.com/smartcity/traffic-analyzer/pkg/metrics"
)

// AnalysisService runs the full pipeline for one uploaded dataset
type AnalysisService struct {
	delegation  *DelegationClient
	repo        AnalysisLogRepository
	metrics     *metrics.Collector
	sampleLimit int

	wgBg sync.WaitGroup // tracks background goroutines for graceful shutdown
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	delegation *DelegationClient,
	repo AnalysisLogRepository,
	collector *metrics.Collector,
	sampleLimit int,
) *AnalysisService {
	if sampleLimit <= 0 {
		sampleLimit = DefaultSampleLimit
	}
	return &AnalysisService{
		delegation:  delegation,
		repo:        repo,
		metrics:     collector,
		sampleLimit: sampleLimit,
	}
}

// WaitBackground blocks until all background save goroutines complete.
// Call during graceful shutdown to avoid dropped writes.
func (s *AnalysisService) WaitBackground() {
	s.wgBg.Wait()
}

// Analyze validates, cleans and scores raw file contents.
// It returns *domain.ValidationError or *domain.ParseError for bad input;
// external analysis failures never surface as errors.
func (s *AnalysisService) Analyze(ctx context.Context, raw []byte, fileName string) (*domain.AnalysisReport, error) {
	started := time.Now()

	report, err := s.run(ctx, raw)
	if err != nil {
		s.metrics.RecordAnalysisRequest(outcomeOf(err))
		return nil, err
	}
	report.Duration = time.Since(started)
	s.metrics.RecordAnalysisRequest("ok")
	s.metrics.RecordAnomalies(report.Result.SeverityBreakdown.High, report.Result.SeverityBreakdown.Medium)

	log.Printf("[analysis] run %s: %d records, %d locations, %d anomalies (source=%s) in %s",
		report.RunID, report.TotalRecords, len(report.Locations), report.Result.TotalAnomalyCount,
		report.Result.Source, report.Duration)

	s.saveRun(report, fileName)
	return report, nil
}

func (s *AnalysisService) run(ctx context.Context, raw []byte) (*domain.AnalysisReport, error) {
	timer := s.metrics.NewStageTimer("parse")
	table, err := dataset.Load(raw)
	timer.ObserveDuration()
	if err != nil {
		return nil, err
	}

	timer = s.metrics.NewStageTimer("validate")
	validation := Validate(table)
	timer.ObserveDuration()
	if !validation.Valid {
		return nil, &domain.ValidationError{Reasons: validation.Errors}
	}

	timer = s.metrics.NewStageTimer("clean")
	obs, err := Clean(table)
	timer.ObserveDuration()
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRecords(len(obs))

	timer = s.metrics.NewStageTimer("baseline")
	baselines := CalculateBaselines(obs)
	timer.ObserveDuration()

	payload := BuildPayload(obs, baselines, s.sampleLimit)

	timer = s.metrics.NewStageTimer("delegate")
	result := s.delegation.Analyze(ctx, payload)
	timer.ObserveDuration()
	if result == nil {
		return nil, errors.New("analysis: delegation produced no result")
	}

	return &domain.AnalysisReport{
		RunID:        uuid.NewString(),
		TotalRecords: len(obs),
		Locations:    payload.Locations,
		TimeRange:    payload.TimeRange,
		Records:      obs,
		Baselines:    baselines,
		Result:       result,
	}, nil
}

// saveRun persists the audit row asynchronously (tracked for graceful shutdown)
func (s *AnalysisService) saveRun(report *domain.AnalysisReport, fileName string) {
	run := domain.AnalysisRun{
		ID:                report.RunID,
		FileName:          fileName,
		RecordCount:       report.TotalRecords,
		LocationCount:     len(report.Locations),
		AnomalyCount:      report.Result.TotalAnomalyCount,
		HighSeverityCount: report.Result.SeverityBreakdown.High,
		MedSeverityCount:  report.Result.SeverityBreakdown.Medium,
		Source:            report.Result.Source,
		Confidence:        report.Result.Confidence,
		DurationMS:        report.Duration.Milliseconds(),
		CreatedAt:         time.Now().UTC(),
	}

	s.wgBg.Add(1)
	go func() {
		defer s.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.SaveAnalysisRun(bgCtx, run); err != nil {
			log.Printf("Failed to save analysis run %s: %v", run.ID, err)
		}
	}()
}

// Health reports the analysis service status and storage connectivity
func (s *AnalysisService) Health(ctx context.Context) (analysisStatus string, storageErr error) {
	analysisStatus = s.delegation.Health(ctx)
	if err := s.repo.Health(ctx); err != nil {
		storageErr = fmt.Errorf("analysis: storage unavailable: %w", err)
	}
	return analysisStatus, storageErr
}

func outcomeOf(err error) string {
	var verr *domain.ValidationError
	var perr *domain.ParseError
	switch {
	case errors.As(err, &verr):
		return "invalid"
	case errors.As(err, &perr):
		return "parse_error"
	default:
		return "internal_error"
	}
}
