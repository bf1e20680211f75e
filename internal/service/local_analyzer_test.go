package service

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/smartcity/traffic-analyzer/internal/domain"
)

// requestWith builds a payload where every record shares one LOC_01 baseline
// of mean 100 vehicles at hour 8.
func requestWith(counts ...int) domain.AnalysisRequest {
	records := make([]domain.SampleRecord, len(counts))
	for i, c := range counts {
		records[i] = domain.SampleRecord{
			Timestamp:    fmt.Sprintf("2024-01-%02dT08:00:00", i+1),
			Location:     "LOC_01",
			VehicleCount: c,
			AvgSpeed:     40,
			Hour:         8,
		}
	}
	return domain.AnalysisRequest{
		RawData: records,
		Baselines: domain.Baselines{
			"LOC_01": {
				VehicleCount: map[string]domain.HourlyStats{"8": {Mean: 100, Std: 10, Min: 80, Max: 120}},
				AvgSpeed:     map[string]domain.HourlyStats{"8": {Mean: 40}},
			},
		},
		Locations: []string{"LOC_01"},
	}
}

func TestClassifyDeviation(t *testing.T) {
	tests := []struct {
		deviation float64
		want      string
		flagged   bool
	}{
		{25, "", false},
		{30, "", false},
		{40, domain.SeverityMedium, true},
		{-40, domain.SeverityMedium, true},
		{50, domain.SeverityMedium, true},
		{60, domain.SeverityHigh, true},
		{-75, domain.SeverityHigh, true},
	}
	for _, tt := range tests {
		got, flagged := ClassifyDeviation(tt.deviation)
		if got != tt.want || flagged != tt.flagged {
			t.Errorf("ClassifyDeviation(%v) = %q, %v; want %q, %v", tt.deviation, got, flagged, tt.want, tt.flagged)
		}
	}
}

func TestDetectAnomalies(t *testing.T) {
	anomalies := DetectAnomalies(requestWith(140, 160, 125, 60))
	if len(anomalies) != 3 {
		t.Fatalf("got %d anomalies, want 3: %+v", len(anomalies), anomalies)
	}

	want := []domain.Anomaly{
		{
			Timestamp: "2024-01-01T08:00:00", LocationID: "LOC_01", Severity: domain.SeverityMedium,
			ObservedValue: 140, BaselineMean: 100, DeviationPct: 40, Description: "Traffic spike of 40% detected",
		},
		{
			Timestamp: "2024-01-02T08:00:00", LocationID: "LOC_01", Severity: domain.SeverityHigh,
			ObservedValue: 160, BaselineMean: 100, DeviationPct: 60, Description: "Traffic spike of 60% detected",
		},
		{
			Timestamp: "2024-01-04T08:00:00", LocationID: "LOC_01", Severity: domain.SeverityMedium,
			ObservedValue: 60, BaselineMean: 100, DeviationPct: -40, Description: "Traffic drop of 40% detected",
		},
	}
	if !reflect.DeepEqual(anomalies, want) {
		t.Errorf("anomalies = %+v\nwant %+v", anomalies, want)
	}
}

func TestDetectAnomaliesSkipsMissingOrZeroBaseline(t *testing.T) {
	req := requestWith(500)
	req.RawData = append(req.RawData,
		domain.SampleRecord{Timestamp: "2024-01-09T09:00:00", Location: "LOC_01", VehicleCount: 900, Hour: 9},
		domain.SampleRecord{Timestamp: "2024-01-09T08:00:00", Location: "LOC_99", VehicleCount: 900, Hour: 8},
	)
	req.Baselines["LOC_02"] = domain.LocationBaseline{
		VehicleCount: map[string]domain.HourlyStats{"8": {Mean: 0}},
	}
	req.RawData = append(req.RawData,
		domain.SampleRecord{Timestamp: "2024-01-09T08:00:00", Location: "LOC_02", VehicleCount: 5, Hour: 8},
	)

	anomalies := DetectAnomalies(req)
	if len(anomalies) != 1 || anomalies[0].ObservedValue != 500 {
		t.Errorf("anomalies = %+v, want only the LOC_01 hour 8 record", anomalies)
	}
}

func TestAnalyzeLocallyNoAnomalies(t *testing.T) {
	res := AnalyzeLocally(requestWith(100, 110, 95))

	if res.Anomalies == nil || len(res.Anomalies) != 0 {
		t.Errorf("Anomalies = %#v, want empty non-nil slice", res.Anomalies)
	}
	if res.TotalAnomalyCount != 0 || res.LocationsAffected != 0 {
		t.Errorf("counts = %d/%d", res.TotalAnomalyCount, res.LocationsAffected)
	}
	if res.Summary != noAnomaliesSummary {
		t.Errorf("Summary = %q", res.Summary)
	}
	want := []string{"Maintain current traffic management strategies", "Continue monitoring for emerging patterns"}
	if !reflect.DeepEqual(res.Recommendations, want) {
		t.Errorf("Recommendations = %v", res.Recommendations)
	}
	if res.Confidence != domain.ConfidenceMedium || res.Source != domain.SourceLocal {
		t.Errorf("confidence/source = %s/%s", res.Confidence, res.Source)
	}
}

func TestAnalyzeLocallyTruncatesAndSummarizes(t *testing.T) {
	counts := make([]int, 60)
	for i := range counts {
		counts[i] = 100
	}
	// 12 anomalies: 8 medium spikes, then 4 high drops
	for i := 0; i < 8; i++ {
		counts[i] = 140
	}
	for i := 8; i < 12; i++ {
		counts[i] = 20
	}

	res := AnalyzeLocally(requestWith(counts...))

	if len(res.Anomalies) != 10 {
		t.Errorf("reported %d anomalies, want 10", len(res.Anomalies))
	}
	if res.TotalAnomalyCount != 12 {
		t.Errorf("TotalAnomalyCount = %d, want 12", res.TotalAnomalyCount)
	}
	if res.SeverityBreakdown != (domain.SeverityBreakdown{High: 4, Medium: 8}) {
		t.Errorf("SeverityBreakdown = %+v", res.SeverityBreakdown)
	}
	if res.LocationsAffected != 1 {
		t.Errorf("LocationsAffected = %d", res.LocationsAffected)
	}
	if res.Confidence != domain.ConfidenceHigh {
		t.Errorf("Confidence = %s, want high for 60 records", res.Confidence)
	}

	wantSummary := "Analysis detected 12 traffic anomalies across 1 locations. " +
		"4 high-severity incidents require immediate attention. " +
		"Most significant anomaly: LOC_01 at 2024-01-09T08:00 with 80.0% deviation from baseline."
	if res.Summary != wantSummary {
		t.Errorf("Summary = %q\nwant %q", res.Summary, wantSummary)
	}

	wantRecs := []string{
		"Consider deploying additional traffic monitoring resources during peak anomaly hours",
		"Review signal timing optimization for affected corridors",
		"Implement incident response protocols for high-severity congestion events",
		"Evaluate alternative route suggestions for navigation systems",
	}
	if !reflect.DeepEqual(res.Recommendations, wantRecs) {
		t.Errorf("Recommendations = %v", res.Recommendations)
	}
}

func TestAnalyzeLocallyIsDeterministic(t *testing.T) {
	req := requestWith(140, 160, 20, 100, 131)
	first := AnalyzeLocally(req)
	second := AnalyzeLocally(req)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
	if !strings.Contains(first.Summary, "with 80.0% deviation") {
		t.Errorf("Summary = %q", first.Summary)
	}
}
