package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/smartcity/traffic-analyzer/internal/domain"
)

type recordingRepo struct {
	mu   sync.Mutex
	runs []domain.AnalysisRun
	err  error
}

func (r *recordingRepo) SaveAnalysisRun(_ context.Context, run domain.AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *recordingRepo) Health(context.Context) error { return r.err }

// singleSpikeCSV has one location observed at hours 2, 8, 12 and 17 over six
// days. The 08:00 reading on 2024-01-03 is the only one far from its mean.
func singleSpikeCSV() string {
	var b strings.Builder
	b.WriteString("timestamp,location_id,vehicle_count,avg_speed_kmh\n")
	for day := 1; day <= 6; day++ {
		for _, hc := range [][2]int{{2, 40}, {8, 120}, {12, 100}, {17, 200}} {
			count := hc[1]
			if day == 3 && hc[0] == 8 {
				count = 300
			}
			fmt.Fprintf(&b, "2024-01-%02d %02d:00:00,LOC_01,%d,50\n", day, hc[0], count)
		}
	}
	return b.String()
}

func newTestAnalysisService(repo AnalysisLogRepository) *AnalysisService {
	return NewAnalysisService(NewDelegationClient(DefaultDelegationConfig(), nil), repo, nil, 0)
}

func TestAnalysisServiceEndToEnd(t *testing.T) {
	repo := &recordingRepo{}
	svc := newTestAnalysisService(repo)

	report, err := svc.Analyze(context.Background(), []byte(singleSpikeCSV()), "spike.csv")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if report.TotalRecords != 24 || len(report.Records) != 24 {
		t.Errorf("records = %d/%d, want 24", report.TotalRecords, len(report.Records))
	}
	if report.RunID == "" {
		t.Error("missing run id")
	}
	if got := report.Baselines["LOC_01"].VehicleCount["8"].Mean; got != 150 {
		t.Errorf("hour 8 baseline mean = %v, want 150", got)
	}

	res := report.Result
	if res.TotalAnomalyCount != 1 || len(res.Anomalies) != 1 {
		t.Fatalf("anomalies = %+v", res.Anomalies)
	}
	a := res.Anomalies[0]
	if a.Timestamp != "2024-01-03T08:00:00" || a.ObservedValue != 300 || a.DeviationPct != 100 || a.Severity != domain.SeverityHigh {
		t.Errorf("anomaly = %+v", a)
	}
	if res.Source != domain.SourceLocal || res.Confidence != domain.ConfidenceMedium {
		t.Errorf("source/confidence = %s/%s", res.Source, res.Confidence)
	}
	wantSummary := "Analysis detected 1 traffic anomalies across 1 locations. " +
		"1 high-severity incidents require immediate attention. " +
		"Most significant anomaly: LOC_01 at 2024-01-03T08:00 with 100.0% deviation from baseline."
	if res.Summary != wantSummary {
		t.Errorf("Summary = %q", res.Summary)
	}

	svc.WaitBackground()
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.runs) != 1 {
		t.Fatalf("saved runs = %d, want 1", len(repo.runs))
	}
	run := repo.runs[0]
	if run.ID != report.RunID || run.FileName != "spike.csv" || run.HighSeverityCount != 1 {
		t.Errorf("saved run = %+v", run)
	}
}

func TestAnalysisServiceRejectsInvalidInput(t *testing.T) {
	svc := newTestAnalysisService(&recordingRepo{})

	_, err := svc.Analyze(context.Background(), []byte("timestamp,location_id\n2024-01-01 00:00:00,A\n"), "bad.csv")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Reasons) != 2 {
		t.Errorf("reasons = %v", verr.Reasons)
	}
}

func TestAnalysisServiceReportsParseErrors(t *testing.T) {
	svc := newTestAnalysisService(&recordingRepo{})

	csv := strings.Replace(singleSpikeCSV(), "2024-01-04 12:00:00", "not-a-date", 1)
	_, err := svc.Analyze(context.Background(), []byte(csv), "bad.csv")
	var perr *domain.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if outcomeOf(err) != "parse_error" {
		t.Errorf("outcome = %s", outcomeOf(err))
	}
}

func TestAnalysisServiceHealth(t *testing.T) {
	repo := &recordingRepo{err: errors.New("connection reset")}
	svc := newTestAnalysisService(repo)

	status, err := svc.Health(context.Background())
	if status != "local_mode" {
		t.Errorf("status = %q", status)
	}
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("storage error = %v", err)
	}
}
