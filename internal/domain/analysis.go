package domain

import (
	"strconv"
	"time"
)

// Severity levels for detected anomalies
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Confidence levels reported with an analysis result
const (
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Result sources
const (
	SourceLocal    = "local"
	SourceExternal = "external"
)

// SampleRecord is one observation as serialized into the analysis request
type SampleRecord struct {
	Timestamp    string  `json:"timestamp"`
	Location     string  `json:"location"`
	VehicleCount int     `json:"vehicle_count"`
	AvgSpeed     float64 `json:"avg_speed"`
	Hour         int     `json:"hour"`
	DayOfWeek    int     `json:"day_of_week"`
}

// SummaryStats describes the whole cleaned dataset
type SummaryStats struct {
	TotalRecords      int     `json:"total_records"`
	UniqueLocations   int     `json:"unique_locations"`
	TimeSpanHours     float64 `json:"time_span_hours"`
	AvgVehicleCount   float64 `json:"avg_vehicle_count"`
	AvgSpeed          float64 `json:"avg_speed"`
	PeakHourTraffic   int     `json:"peak_hour_traffic"`
	LowestHourTraffic int     `json:"lowest_hour_traffic"`
}

// AnalysisRequest is the bounded payload handed to an analyzer
type AnalysisRequest struct {
	RawData         []SampleRecord `json:"raw_data"`
	Baselines       Baselines      `json:"baselines"`
	SummaryStats    SummaryStats   `json:"summary_stats"`
	TimeRange       TimeRange      `json:"time_range"`
	Locations       []string       `json:"locations"`
	AnalysisRequest string         `json:"analysis_request"`
}

// Anomaly is an observation that deviates materially from its hourly baseline
type Anomaly struct {
	Timestamp     string  `json:"timestamp"`
	LocationID    string  `json:"location_id"`
	Severity      string  `json:"severity"`
	ObservedValue int     `json:"observed_value"`
	BaselineMean  float64 `json:"baseline_mean"`
	DeviationPct  float64 `json:"deviation_pct"`
	Description   string  `json:"description"`
}

// SeverityBreakdown counts anomalies per severity
type SeverityBreakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
}

// AnalysisResult is the unified outcome of local or external analysis
type AnalysisResult struct {
	Anomalies         []Anomaly         `json:"anomalies"`
	TotalAnomalyCount int               `json:"total_anomaly_count"`
	LocationsAffected int               `json:"locations_affected"`
	SeverityBreakdown SeverityBreakdown `json:"severity_breakdown"`
	Summary           string            `json:"summary"`
	Recommendations   []string          `json:"recommendations"`
	Confidence        string            `json:"confidence"`
	Source            string            `json:"source"`
}

// AnalysisReport bundles everything produced for a single upload
type AnalysisReport struct {
	RunID        string          `json:"run_id"`
	TotalRecords int             `json:"total_records"`
	Locations    []string        `json:"locations"`
	TimeRange    TimeRange       `json:"time_range"`
	Records      []Observation   `json:"records"`
	Baselines    Baselines       `json:"baselines"`
	Result       *AnalysisResult `json:"analysis"`
	Duration     time.Duration   `json:"-"`
}

// AnalysisRun is the audit row written after an analysis completes
type AnalysisRun struct {
	ID                string
	FileName          string
	RecordCount       int
	LocationCount     int
	AnomalyCount      int
	HighSeverityCount int
	MedSeverityCount  int
	Source            string
	Confidence        string
	DurationMS        int64
	CreatedAt         time.Time
}

// HourKey formats an hour-of-day as used in baseline tables
func HourKey(hour int) string {
	return strconv.Itoa(hour)
}
