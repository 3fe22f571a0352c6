package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/i474232898/growth-observations/internal/api/http"
	"github.com/i474232898/growth-observations/internal/config"
	"github.com/i474232898/growth-observations/internal/fetch"
	"github.com/i474232898/growth-observations/internal/growth"
	"github.com/i474232898/growth-observations/internal/growth/fhirclient"
	"github.com/i474232898/growth-observations/internal/scheduler"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound FHIR calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	backoff := fhirclient.DefaultBackoff()
	backoff.MaxRetries = cfg.FHIRMaxRetries
	source := fhirclient.NewObservationClient(httpClient, cfg.FHIRBaseURL, backoff)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Request cache shared by every caller: one in-flight fetch per patient.
	cache := fetch.NewCache[growth.Bundle](fetch.Options{
		StaleAfter:      cfg.CacheStaleAfter,
		ErrorRetryAfter: cfg.CacheErrorRetry,
		FetchTimeout:    cfg.FetchTimeout,
		MaxEntries:      cfg.CacheMaxEntries,
		Retention:       cfg.CacheRetention,
		Metrics:         fetch.NewMetrics(registry, "growth"),
	})

	reader := growth.NewReader(source, cache, cfg.DateLayout)

	// Scheduler that periodically revalidates cached patients.
	sched := scheduler.New(cfg.RevalidateInterval, cfg.FetchTimeout, reader)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "growth-observations",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.AwaitTimeout + 10*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "growth-observations",
			"source":  source.Name(),
			"cached":  cache.Len(),
		})
	})

	httpapi.RegisterMetrics(app, registry)
	httpapi.RegisterRoutes(app, reader, cfg.AwaitTimeout)

	go func() {
		log.Printf("INFO: listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
