package service

import (
	"time"

	"github.com/smartcity/traffic-analyzer/internal/domain"
	"github.com/smartcity/traffic-analyzer/pkg/utils"
)

// DefaultSampleLimit caps the observations serialized into an analysis request
const DefaultSampleLimit = 100

const analysisInstruction = "Detect traffic anomalies and provide insights"

// BuildPayload assembles the bounded analysis request. Only the first
// sampleLimit observations (in cleaned order) are included; scoring downstream
// sees the same window.
func BuildPayload(obs []domain.Observation, baselines domain.Baselines, sampleLimit int) domain.AnalysisRequest {
	if sampleLimit <= 0 {
		sampleLimit = DefaultSampleLimit
	}

	n := len(obs)
	if n > sampleLimit {
		n = sampleLimit
	}
	sample := make([]domain.SampleRecord, n)
	for i := 0; i < n; i++ {
		o := obs[i]
		sample[i] = domain.SampleRecord{
			Timestamp:    FormatTimestamp(o.Timestamp),
			Location:     o.LocationID,
			VehicleCount: int(o.VehicleCount),
			AvgSpeed:     o.AvgSpeedKmh,
			Hour:         o.Hour,
			DayOfWeek:    o.DayOfWeek,
		}
	}

	return domain.AnalysisRequest{
		RawData:         sample,
		Baselines:       baselines,
		SummaryStats:    summarize(obs),
		TimeRange:       timeRange(obs),
		Locations:       UniqueLocations(obs),
		AnalysisRequest: analysisInstruction,
	}
}

func summarize(obs []domain.Observation) domain.SummaryStats {
	stats := domain.SummaryStats{
		TotalRecords:    len(obs),
		UniqueLocations: len(UniqueLocations(obs)),
	}
	if len(obs) == 0 {
		return stats
	}

	start, end := timeBounds(obs)
	stats.TimeSpanHours = end.Sub(start).Hours()

	counts := make([]float64, len(obs))
	speeds := make([]float64, len(obs))
	var hourSum [24]float64
	var hourN [24]int
	for i, o := range obs {
		counts[i] = o.VehicleCount
		speeds[i] = o.AvgSpeedKmh
		hourSum[o.Hour] += o.VehicleCount
		hourN[o.Hour]++
	}
	stats.AvgVehicleCount = utils.Mean(counts)
	stats.AvgSpeed = utils.Mean(speeds)

	peak, low := -1, -1
	var peakMean, lowMean float64
	for h := 0; h < 24; h++ {
		if hourN[h] == 0 {
			continue
		}
		m := hourSum[h] / float64(hourN[h])
		if peak < 0 || m > peakMean {
			peak, peakMean = h, m
		}
		if low < 0 || m < lowMean {
			low, lowMean = h, m
		}
	}
	stats.PeakHourTraffic = peak
	stats.LowestHourTraffic = low
	return stats
}

func timeBounds(obs []domain.Observation) (time.Time, time.Time) {
	start, end := obs[0].Timestamp, obs[0].Timestamp
	for _, o := range obs[1:] {
		if o.Timestamp.Before(start) {
			start = o.Timestamp
		}
		if o.Timestamp.After(end) {
			end = o.Timestamp
		}
	}
	return start, end
}

func timeRange(obs []domain.Observation) domain.TimeRange {
	if len(obs) == 0 {
		return domain.TimeRange{}
	}
	start, end := timeBounds(obs)
	return domain.TimeRange{Start: FormatTimestamp(start), End: FormatTimestamp(end)}
}

// UniqueLocations returns location ids in order of first appearance
func UniqueLocations(obs []domain.Observation) []string {
	seen := make(map[string]struct{})
	locations := []string{}
	for _, o := range obs {
		if _, ok := seen[o.LocationID]; ok {
			continue
		}
		seen[o.LocationID] = struct{}{}
		locations = append(locations, o.LocationID)
	}
	return locations
}

// FormatTimestamp renders an ISO-8601 timestamp, omitting the offset for UTC
// values so zone-less inputs round-trip unchanged.
func FormatTimestamp(t time.Time) string {
	if t.Location() == time.UTC {
		return t.Format("2006-01-02T15:04:05")
	}
	return t.Format(time.RFC3339)
}
