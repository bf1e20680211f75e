package service

import (
	"testing"
	"time"

	"github.com/smartcity/traffic-analyzer/internal/domain"
)

func obsAt(loc string, day, hour int, count, speed float64) domain.Observation {
	ts := time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
	return domain.Observation{
		Timestamp:    ts,
		LocationID:   loc,
		VehicleCount: count,
		AvgSpeedKmh:  speed,
		Hour:         hour,
		DayOfWeek:    (int(ts.Weekday()) + 6) % 7,
		Date:         ts.Format("2006-01-02"),
	}
}

func TestCalculateBaselines(t *testing.T) {
	obs := []domain.Observation{
		obsAt("LOC_01", 1, 8, 100, 30),
		obsAt("LOC_01", 2, 8, 200, 40),
		obsAt("LOC_01", 1, 9, 120, 45),
		obsAt("LOC_02", 1, 8, 80, 60),
	}

	b := CalculateBaselines(obs)

	got := b["LOC_01"].VehicleCount["8"]
	want := domain.HourlyStats{Mean: 150, Std: 70.71, Min: 100, Max: 200}
	if got != want {
		t.Errorf("LOC_01 hour 8 counts = %+v, want %+v", got, want)
	}
	if speed := b["LOC_01"].AvgSpeed["8"]; speed.Mean != 35 || speed.Std != 7.07 {
		t.Errorf("LOC_01 hour 8 speed = %+v", speed)
	}

	single := b["LOC_01"].VehicleCount["9"]
	if single.Std != 0 || single.Mean != 120 {
		t.Errorf("single-sample group = %+v, want std 0 and mean 120", single)
	}

	if _, ok := b["LOC_01"].VehicleCount["10"]; ok {
		t.Error("unobserved hour should be absent")
	}
	if _, ok := b["LOC_02"].VehicleCount["9"]; ok {
		t.Error("LOC_02 has no hour 9 observations")
	}

	if mean, ok := b.VehicleCountMean("LOC_02", 8); !ok || mean != 80 {
		t.Errorf("VehicleCountMean = %v, %v", mean, ok)
	}
}
