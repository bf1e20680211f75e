package http

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/smartcity/traffic-analyzer/internal/domain"
	"github.com/smartcity/traffic-analyzer/internal/service"
)

const timestampLayout = "2006-01-02 15:04:05"

// Handler contains all HTTP handlers
type Handler struct {
	analysisSvc *service.AnalysisService
}

// NewHandler creates a new handler
func NewHandler(analysisSvc *service.AnalysisService) *Handler {
	return &Handler{analysisSvc: analysisSvc}
}

// Root describes the API
func (h *Handler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Traffic Pattern Analyzer API",
		"version": "1.0.0",
		"endpoints": fiber.Map{
			"health":  "/health",
			"analyze": "/api/v1/analyze (POST)",
			"metrics": "/metrics",
		},
	})
}

// HealthCheck returns backend, analysis service and storage status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	analysisStatus, storageErr := h.analysisSvc.Health(c.UserContext())

	database := "ok"
	if storageErr != nil {
		log.Printf("Health check: %v", storageErr)
		database = "unavailable"
	}

	return c.JSON(fiber.Map{
		"backend":          "healthy",
		"analysis_service": analysisStatus,
		"database":         database,
		"timestamp":        time.Now().Format(time.RFC3339),
	})
}

// recordView is the JSON shape of a cleaned record
type recordView struct {
	Timestamp    string  `json:"timestamp"`
	LocationID   string  `json:"location_id"`
	VehicleCount float64 `json:"vehicle_count"`
	AvgSpeedKmh  float64 `json:"avg_speed_kmh"`
	Hour         int     `json:"hour"`
	DayOfWeek    int     `json:"day_of_week"`
	Date         string  `json:"date"`
}

// Analyze accepts a CSV upload and returns cleaned data, baselines and anomalies
func (h *Handler) Analyze(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Missing file",
			"details": "Upload a CSV file in the 'file' form field",
		})
	}

	f, err := fh.Open()
	if err != nil {
		return internalError(c, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return internalError(c, err)
	}

	report, err := h.analysisSvc.Analyze(c.UserContext(), raw, fh.Filename)
	if err != nil {
		var verr *domain.ValidationError
		var perr *domain.ParseError
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid CSV format",
				"details": verr.Reasons,
			})
		case errors.As(err, &perr):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "CSV parsing error",
				"details": perr.Error(),
			})
		default:
			return internalError(c, err)
		}
	}

	records := make([]recordView, len(report.Records))
	for i, o := range report.Records {
		records[i] = recordView{
			Timestamp:    o.Timestamp.Format(timestampLayout),
			LocationID:   o.LocationID,
			VehicleCount: o.VehicleCount,
			AvgSpeedKmh:  o.AvgSpeedKmh,
			Hour:         o.Hour,
			DayOfWeek:    o.DayOfWeek,
			Date:         o.Date,
		}
	}

	res := report.Result
	return c.JSON(fiber.Map{
		"success": true,
		"run_id":  report.RunID,
		"processed_data": fiber.Map{
			"total_records": report.TotalRecords,
			"locations":     report.Locations,
			"time_range":    report.TimeRange,
			"raw_data":      records,
			"hourly_data":   records,
		},
		"baselines": report.Baselines,
		"analysis": fiber.Map{
			"anomalies":           res.Anomalies,
			"insights":            res.Summary,
			"recommendations":     res.Recommendations,
			"total_anomaly_count": res.TotalAnomalyCount,
			"locations_affected":  res.LocationsAffected,
			"severity_breakdown":  res.SeverityBreakdown,
			"confidence":          res.Confidence,
			"source":              res.Source,
		},
	})
}

func internalError(c *fiber.Ctx, err error) error {
	log.Printf("Unhandled error in analyze: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Internal server error",
		"details": err.Error(),
	})
}
