package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"knapsack-bench/internal/domain"
	"knapsack-bench/internal/service"
)

func SetupRoutes(app *fiber.App, optimizerService *service.OptimizerService, registry *prometheus.Registry) {
	app.Get("/healthz", HealthCheckHandler(optimizerService))
	app.Get("/actuator/health", HealthCheckHandler(optimizerService))

	if registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	}

	v1 := app.Group("/api/v1")
	knapsack := v1.Group("/knapsack")
	knapsack.Post("/solve", SolveHandler(optimizerService))
	knapsack.Post("/compare", CompareHandler(optimizerService))
	knapsack.Get("/report", ReportHandler(optimizerService))
	knapsack.Get("/runs", RunsHandler(optimizerService))
}

func HealthCheckHandler(optimizerService *service.OptimizerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "UP",
			"service": "Knapsack Bench API",
			"version": "1.0.0",
			"details": optimizerService.HealthCheck(),
		})
	}
}

func SolveHandler(optimizerService *service.OptimizerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var request domain.SolveRequest
		if err := c.BodyParser(&request); err != nil {
			return invalidJSON(c, err)
		}

		response, err := optimizerService.Solve(c.UserContext(), request)
		if err != nil {
			return errorResponse(c, err)
		}

		return c.Status(fiber.StatusOK).JSON(response)
	}
}

func CompareHandler(optimizerService *service.OptimizerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var request domain.CompareRequest
		if err := c.BodyParser(&request); err != nil {
			return invalidJSON(c, err)
		}

		report, err := optimizerService.Compare(c.UserContext(), request)
		if err != nil {
			return errorResponse(c, err)
		}

		return c.Status(fiber.StatusOK).JSON(report)
	}
}

func ReportHandler(optimizerService *service.OptimizerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := optimizerService.Report(c.UserContext(), c.Query("challenger"), c.Query("baseline"))
		if err != nil {
			return errorResponse(c, err)
		}

		return c.Status(fiber.StatusOK).JSON(report)
	}
}

func RunsHandler(optimizerService *service.OptimizerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		records, err := optimizerService.Runs(c.UserContext(), c.Query("solver"))
		if err != nil {
			return errorResponse(c, err)
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"runs":  records,
			"count": len(records),
		})
	}
}

func RequestSizeLimiter(maxBytes int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Request().Header.ContentLength() > maxBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    fiber.StatusRequestEntityTooLarge,
					"message": "Request body too large",
				},
			})
		}
		return c.Next()
	}
}

// StatusCode maps the error taxonomy onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInstance), errors.Is(err, domain.ErrInvalidConfig):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyInput):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(c *fiber.Ctx, err error) error {
	statusCode := StatusCode(err)
	return c.Status(statusCode).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    statusCode,
			"message": err.Error(),
		},
	})
}

func invalidJSON(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    fiber.StatusBadRequest,
			"message": "Invalid JSON format",
			"details": err.Error(),
		},
	})
}
