package http

import (
	"errors"
	"strings"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/roadwatch/server/internal/config"
	"github.com/roadwatch/server/internal/services"
)

// NewApp creates the fiber app serving the road damage API
func NewApp(svc *services.AssessmentService, cfg config.ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Roadwatch API v1",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    16 * 1024 * 1024,
		ErrorHandler: errorHandler,
	})

	origins := "*"
	if len(cfg.CorsOrigins) > 0 {
		origins = strings.Join(cfg.CorsOrigins, ",")
	}

	app.Use(recover.New())
	app.Use(func(c *fiber.Ctx) error {
		// Handlers and services log through prefab's context logger
		c.SetUserContext(logging.EnsureLogger(c.UserContext()))
		return c.Next()
	})
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	SetupRoutes(app, svc)
	return app
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, svc *services.AssessmentService) {
	handler := NewHandler(svc)

	app.Get("/health", handler.HealthCheck)

	api := app.Group("/api/v1")
	{
		// Reference network and AHP priorities
		api.Get("/roads", handler.GetRoads)
		api.Get("/roads/scores", handler.GetRoadScores)
		api.Get("/roads/:id/score", handler.GetRoadScore)
		api.Get("/model", handler.GetModel)

		// Ad hoc geometry
		api.Post("/snap", handler.Snap)
		api.Post("/reconcile", handler.Reconcile)

		// Observation batches
		api.Post("/batches", handler.SubmitBatch)
		api.Post("/batches/video", handler.SubmitVideoBatch)
		api.Get("/batches", handler.ListBatches)
		api.Get("/batches/:id", handler.GetBatch)
		api.Get("/batches/:id/roads", handler.GetBatchRoads)
		api.Get("/batches/:id/markers", handler.GetBatchMarkers)
		api.Get("/batches/:id/path", handler.GetBatchPath)
		api.Get("/batches/:id/map.kml", handler.GetBatchKML)
		api.Delete("/batches/:id", handler.DeleteBatch)

		api.Delete("/session", handler.ClearSession)
		api.Get("/statistics", handler.GetStatistics)
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
