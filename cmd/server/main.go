package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartcity/traffic-analyzer/internal/config"
	"github.com/smartcity/traffic-analyzer/internal/delivery/http"
	"github.com/smartcity/traffic-analyzer/internal/repository/postgres"
	"github.com/smartcity/traffic-analyzer/internal/service"
	"github.com/smartcity/traffic-analyzer/pkg/metrics"
)

func main() {
	// Configuration
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("[config] use_local_analyzer=%t analysis_service_url=%s analysis_api_key=%s",
		cfg.UseLocalAnalyzer, cfg.AnalysisServiceURL, cfg.MaskedAPIKey())

	// Optional audit log database
	var repo service.AnalysisLogRepository = postgres.NewMockRepository()
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err == nil {
			err = pool.Ping(ctx)
		}
		if err != nil {
			log.Printf("Warning: Could not connect to database: %v", err)
			log.Println("Running without analysis audit log")
			if pool != nil {
				pool.Close()
			}
		} else {
			defer pool.Close()
			pgRepo := postgres.NewPostgresRepository(pool)
			if err := pgRepo.EnsureSchema(ctx); err != nil {
				log.Printf("Warning: %v", err)
			}
			repo = pgRepo
			log.Println("Connected to PostgreSQL")
		}
		cancel()
	}

	// Dependency Injection: Services
	collector := metrics.NewCollector("traffic_analyzer", prometheus.DefaultRegisterer)
	delegation := service.NewDelegationClient(cfg.Delegation(), collector)
	analysisSvc := service.NewAnalysisService(delegation, repo, collector, cfg.SampleLimit)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Traffic Analyzer API v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    cfg.MaxUploadMB << 20,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, analysisSvc, prometheus.DefaultGatherer)

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	analysisSvc.WaitBackground()
	log.Println("Server exited gracefully")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
