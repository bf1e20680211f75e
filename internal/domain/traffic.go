package domain

import "time"

// Required columns of an uploaded traffic dataset
const (
	ColumnTimestamp    = "timestamp"
	ColumnLocationID   = "location_id"
	ColumnVehicleCount = "vehicle_count"
	ColumnAvgSpeed     = "avg_speed_kmh"
)

// RequiredColumns lists every column a dataset must carry, in reporting order
var RequiredColumns = []string{ColumnTimestamp, ColumnLocationID, ColumnVehicleCount, ColumnAvgSpeed}

// Observation is a single cleaned sensor reading.
// VehicleCount stays fractional after cleaning because median imputation and
// outlier bounds may produce non-integer values.
type Observation struct {
	Timestamp    time.Time `json:"timestamp"`
	LocationID   string    `json:"location_id"`
	VehicleCount float64   `json:"vehicle_count"`
	AvgSpeedKmh  float64   `json:"avg_speed_kmh"`
	Hour         int       `json:"hour"`
	DayOfWeek    int       `json:"day_of_week"` // 0 = Monday
	Date         string    `json:"date"`
}

// HourlyStats describes one metric for one location-hour group
type HourlyStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// LocationBaseline holds hourly statistics keyed by hour-of-day ("0".."23")
type LocationBaseline struct {
	VehicleCount map[string]HourlyStats `json:"vehicle_count"`
	AvgSpeed     map[string]HourlyStats `json:"avg_speed"`
}

// Baselines maps location_id to its hourly baseline table
type Baselines map[string]LocationBaseline

// VehicleCountMean returns the baseline mean vehicle count for a location and hour
func (b Baselines) VehicleCountMean(locationID string, hour int) (float64, bool) {
	loc, ok := b[locationID]
	if !ok {
		return 0, false
	}
	stats, ok := loc.VehicleCount[HourKey(hour)]
	if !ok {
		return 0, false
	}
	return stats.Mean, true
}

// TimeRange is the inclusive span covered by a dataset
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
