package service

import (
	"fmt"
	"math"

	"github.com/smartcity/traffic-analyzer/internal/domain"
	"github.com/smartcity/traffic-analyzer/pkg/utils"
)

// Scoring thresholds, in percent deviation from the hourly baseline mean
const (
	AnomalyThresholdPct      = 30.0
	HighSeverityThresholdPct = 50.0
)

const (
	maxReportedAnomalies     = 10
	highConfidenceMinRecords = 50
)

const noAnomaliesSummary = "No significant traffic anomalies detected. Traffic patterns are within normal operating ranges across all monitored locations."

// ClassifyDeviation returns the severity for a signed deviation percentage,
// or false when the deviation is within the normal band.
func ClassifyDeviation(deviationPct float64) (string, bool) {
	abs := math.Abs(deviationPct)
	switch {
	case abs > HighSeverityThresholdPct:
		return domain.SeverityHigh, true
	case abs > AnomalyThresholdPct:
		return domain.SeverityMedium, true
	default:
		return "", false
	}
}

// DetectAnomalies scores every sampled observation against its hourly
// baseline. Observations without a baseline, or with a zero mean, are skipped.
func DetectAnomalies(req domain.AnalysisRequest) []domain.Anomaly {
	var anomalies []domain.Anomaly
	for _, rec := range req.RawData {
		mean, ok := req.Baselines.VehicleCountMean(rec.Location, rec.Hour)
		if !ok || mean <= 0 {
			continue
		}
		deviation := (float64(rec.VehicleCount) - mean) / mean * 100
		severity, flagged := ClassifyDeviation(deviation)
		if !flagged {
			continue
		}
		anomalies = append(anomalies, domain.Anomaly{
			Timestamp:     rec.Timestamp,
			LocationID:    rec.Location,
			Severity:      severity,
			ObservedValue: rec.VehicleCount,
			BaselineMean:  mean,
			DeviationPct:  utils.RoundTo(deviation, 1),
			Description:   describeDeviation(deviation),
		})
	}
	return anomalies
}

func describeDeviation(deviation float64) string {
	kind := "drop"
	if deviation > 0 {
		kind = "spike"
	}
	return fmt.Sprintf("Traffic %s of %.0f%% detected", kind, math.Abs(math.RoundToEven(deviation)))
}

// AnalyzeLocally derives anomalies, a summary and recommendations from the
// payload alone. It never fails and has no time-dependent input.
func AnalyzeLocally(req domain.AnalysisRequest) *domain.AnalysisResult {
	all := DetectAnomalies(req)

	var breakdown domain.SeverityBreakdown
	affected := make(map[string]struct{})
	for _, a := range all {
		if a.Severity == domain.SeverityHigh {
			breakdown.High++
		} else {
			breakdown.Medium++
		}
		affected[a.LocationID] = struct{}{}
	}

	reported := all
	if len(reported) > maxReportedAnomalies {
		reported = reported[:maxReportedAnomalies]
	}
	if reported == nil {
		reported = []domain.Anomaly{}
	}

	confidence := domain.ConfidenceMedium
	if len(req.RawData) > highConfidenceMinRecords {
		confidence = domain.ConfidenceHigh
	}

	return &domain.AnalysisResult{
		Anomalies:         reported,
		TotalAnomalyCount: len(all),
		LocationsAffected: len(affected),
		SeverityBreakdown: breakdown,
		Summary:           summarizeAnomalies(all, breakdown, len(req.Locations)),
		Recommendations:   recommend(len(all), breakdown),
		Confidence:        confidence,
		Source:            domain.SourceLocal,
	}
}

func summarizeAnomalies(all []domain.Anomaly, breakdown domain.SeverityBreakdown, locations int) string {
	if len(all) == 0 {
		return noAnomaliesSummary
	}

	summary := fmt.Sprintf("Analysis detected %d traffic anomalies across %d locations. ", len(all), locations)
	if breakdown.High > 0 {
		summary += fmt.Sprintf("%d high-severity incidents require immediate attention. ", breakdown.High)
	}

	peak := all[0]
	for _, a := range all[1:] {
		if math.Abs(a.DeviationPct) > math.Abs(peak.DeviationPct) {
			peak = a
		}
	}
	ts := peak.Timestamp
	if len(ts) > 16 {
		ts = ts[:16]
	}
	summary += fmt.Sprintf("Most significant anomaly: %s at %s with %.1f%% deviation from baseline.",
		peak.LocationID, ts, math.Abs(peak.DeviationPct))
	return summary
}

func recommend(total int, breakdown domain.SeverityBreakdown) []string {
	var recs []string
	if total > 3 {
		recs = append(recs,
			"Consider deploying additional traffic monitoring resources during peak anomaly hours",
			"Review signal timing optimization for affected corridors",
		)
	}
	if breakdown.High > 0 {
		recs = append(recs,
			"Implement incident response protocols for high-severity congestion events",
			"Evaluate alternative route suggestions for navigation systems",
		)
	}
	if len(recs) == 0 {
		recs = append(recs,
			"Maintain current traffic management strategies",
			"Continue monitoring for emerging patterns",
		)
	}
	return recs
}
