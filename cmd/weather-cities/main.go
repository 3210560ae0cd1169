package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-cities/internal/api/http"
	"github.com/i474232898/weather-cities/internal/config"
	"github.com/i474232898/weather-cities/internal/logger"
	"github.com/i474232898/weather-cities/internal/metrics"
	"github.com/i474232898/weather-cities/internal/scheduler"
	"github.com/i474232898/weather-cities/internal/store"
	"github.com/i474232898/weather-cities/internal/weather"
	"github.com/i474232898/weather-cities/internal/weather/providers"
)

const serviceName = "weather-cities"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, serviceName)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	m := metrics.NewCollector()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: providers.NewLoggingTransport(lg.Named("http"), http.DefaultTransport),
	}

	var cityStore weather.CityStore
	switch cfg.StoreBackend {
	case config.BackendMemory:
		cityStore = store.NewMemoryStore()
	default:
		cityStore = store.NewFileStore(cfg.CitiesFile)
	}

	client := providers.NewRapidAPIClient(httpClient, cfg.RapidAPI(), m)
	suggester := providers.NewGeobytesClient(httpClient, cfg.SuggestBaseURL, m)
	lg.Info("weather provider configured",
		zap.String("provider", client.Name()),
		zap.Bool("breaker", cfg.BreakerEnabled),
	)

	// Core service owning the saved city list.
	service := weather.NewService(cityStore, client, suggester, cfg.DefaultCountry, lg.Named("service"), m)

	// Scheduler that periodically refreshes the saved list.
	sched := scheduler.New(service, cfg.RefreshInterval, lg)
	if err := sched.Start(); err != nil {
		lg.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, service, m)

	go func() {
		lg.Info("http server listening",
			zap.String("addr", cfg.Address()),
			zap.String("store", cfg.StoreBackend),
		)
		if err := app.Listen(cfg.Address()); err != nil {
			lg.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Error("error during shutdown", zap.Error(err))
	}
}
