package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"knapsack-bench/internal/api"
	"knapsack-bench/internal/config"
	"knapsack-bench/internal/logging"
	"knapsack-bench/internal/metrics"
	"knapsack-bench/internal/service"
)

func main() {
	fs := pflag.NewFlagSet("knapsack-server", pflag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	collectors := metrics.New()

	// Initialize services
	optimizerService, closeStore, err := service.FromConfig(context.Background(), cfg, log, collectors)
	if err != nil {
		log.Fatal("Failed to initialize service", zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("Failed to close run store", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      "Knapsack Bench v1.0",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.Server.BodyLimitBytes,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(api.RequestSizeLimiter(cfg.Server.BodyLimitBytes))

	// Setup routes
	api.SetupRoutes(app, optimizerService, collectors.Registry)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down gracefully...")
		_ = app.Shutdown()
	}()

	// Start server
	port := strconv.Itoa(cfg.Server.Port)
	log.Info("Knapsack Bench API starting",
		zap.String("port", port),
		zap.String("exact_backend", cfg.Solver.Exact.Backend),
		zap.Bool("store", cfg.Store.DSN != ""))

	if err := app.Listen(":" + port); err != nil {
		log.Error("Failed to start server", zap.Error(err))
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}
