package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/smartcity/traffic-analyzer/internal/dataset"
	"github.com/smartcity/traffic-analyzer/internal/domain"
	"github.com/smartcity/traffic-analyzer/pkg/utils"
)

// IQRMultiplier bounds outliers to [Q1-k*IQR, Q3+k*IQR]; only extreme values are clamped.
const IQRMultiplier = 3.0

const (
	colCount = iota
	colSpeed
	numMetricCols
)

var metricColumns = [numMetricCols]string{domain.ColumnVehicleCount, domain.ColumnAvgSpeed}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"01/02/2006",
}

var errUnparseableTimestamp = errors.New("unrecognized date-time format")

type cleanRow struct {
	ts      time.Time
	loc     string
	vals    [numMetricCols]float64
	present [numMetricCols]bool
}

// Clean turns a validated table into ordered observations. Rows are never
// dropped: gaps are forward-filled then median-imputed per location, and
// outliers are clamped per location and column.
func Clean(t *dataset.Table) ([]domain.Observation, error) {
	rows := make([]cleanRow, t.Len())
	for i := range rows {
		raw := t.Cell(i, domain.ColumnTimestamp)
		ts, err := ParseTimestamp(raw)
		if err != nil {
			return nil, &domain.ParseError{Row: i + 1, Column: domain.ColumnTimestamp, Value: raw, Err: err}
		}
		rows[i].ts = ts
		rows[i].loc = t.Cell(i, domain.ColumnLocationID)

		for c, name := range metricColumns {
			cell := t.Cell(i, name)
			if dataset.IsMissing(cell) {
				continue
			}
			v, err := dataset.ParseNumber(cell)
			if err != nil {
				return nil, &domain.ParseError{Row: i + 1, Column: name, Value: cell, Err: err}
			}
			rows[i].vals[c] = v
			rows[i].present[c] = true
		}
	}

	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].loc != rows[b].loc {
			return rows[a].loc < rows[b].loc
		}
		return rows[a].ts.Before(rows[b].ts)
	})

	for start := 0; start < len(rows); {
		end := start + 1
		for end < len(rows) && rows[end].loc == rows[start].loc {
			end++
		}
		group := rows[start:end]
		for c := 0; c < numMetricCols; c++ {
			forwardFill(group, c)
			imputeMedian(group, c)
			capOutliers(group, c)
		}
		start = end
	}

	out := make([]domain.Observation, len(rows))
	for i, r := range rows {
		out[i] = domain.Observation{
			Timestamp:    r.ts,
			LocationID:   r.loc,
			VehicleCount: r.vals[colCount],
			AvgSpeedKmh:  r.vals[colSpeed],
			Hour:         r.ts.Hour(),
			DayOfWeek:    (int(r.ts.Weekday()) + 6) % 7,
			Date:         r.ts.Format("2006-01-02"),
		}
	}
	return out, nil
}

// ParseTimestamp accepts the common date-time layouts found in sensor exports.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errUnparseableTimestamp
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errUnparseableTimestamp, s)
}

func forwardFill(group []cleanRow, c int) {
	var last float64
	seen := false
	for i := range group {
		if group[i].present[c] {
			last = group[i].vals[c]
			seen = true
			continue
		}
		if seen {
			group[i].vals[c] = last
			group[i].present[c] = true
		}
	}
}

// imputeMedian fills leading gaps that forward-fill could not reach.
// A location with no value at all for the column gets 0.
func imputeMedian(group []cleanRow, c int) {
	values := columnValues(group, c)
	if len(values) == len(group) {
		return
	}
	median := 0.0
	if len(values) > 0 {
		median = utils.Median(values)
	}
	for i := range group {
		if !group[i].present[c] {
			group[i].vals[c] = median
			group[i].present[c] = true
		}
	}
}

func capOutliers(group []cleanRow, c int) {
	lower, upper := OutlierBounds(columnValues(group, c))
	for i := range group {
		group[i].vals[c] = utils.Clamp(group[i].vals[c], lower, upper)
	}
}

// OutlierBounds returns the capping interval for a set of values
func OutlierBounds(values []float64) (lower, upper float64) {
	q1 := utils.Quantile(values, 0.25)
	q3 := utils.Quantile(values, 0.75)
	iqr := q3 - q1
	return q1 - IQRMultiplier*iqr, q3 + IQRMultiplier*iqr
}

func columnValues(group []cleanRow, c int) []float64 {
	values := make([]float64, 0, len(group))
	for _, r := range group {
		if r.present[c] {
			values = append(values, r.vals[c])
		}
	}
	return values
}
