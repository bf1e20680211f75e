package service

import (
	"github.com/smartcity/traffic-analyzer/internal/domain"
	"github.com/smartcity/traffic-analyzer/pkg/utils"
)

type hourGroup struct {
	counts []float64
	speeds []float64
}

// CalculateBaselines computes per-location, per-hour statistics for vehicle
// count and speed. Hours without observations are left out of the table.
func CalculateBaselines(obs []domain.Observation) domain.Baselines {
	groups := make(map[string]map[int]*hourGroup)
	for _, o := range obs {
		byHour, ok := groups[o.LocationID]
		if !ok {
			byHour = make(map[int]*hourGroup)
			groups[o.LocationID] = byHour
		}
		g, ok := byHour[o.Hour]
		if !ok {
			g = &hourGroup{}
			byHour[o.Hour] = g
		}
		g.counts = append(g.counts, o.VehicleCount)
		g.speeds = append(g.speeds, o.AvgSpeedKmh)
	}

	baselines := make(domain.Baselines, len(groups))
	for loc, byHour := range groups {
		lb := domain.LocationBaseline{
			VehicleCount: make(map[string]domain.HourlyStats, len(byHour)),
			AvgSpeed:     make(map[string]domain.HourlyStats, len(byHour)),
		}
		for hour, g := range byHour {
			key := domain.HourKey(hour)
			lb.VehicleCount[key] = describe(g.counts)
			lb.AvgSpeed[key] = describe(g.speeds)
		}
		baselines[loc] = lb
	}
	return baselines
}

// describe rounds every statistic to two decimals; a single-sample group has std 0
func describe(values []float64) domain.HourlyStats {
	lo, hi := utils.MinMax(values)
	return domain.HourlyStats{
		Mean: utils.RoundTo(utils.Mean(values), 2),
		Std:  utils.RoundTo(utils.SampleStdDev(values), 2),
		Min:  utils.RoundTo(lo, 2),
		Max:  utils.RoundTo(hi, 2),
	}
}
