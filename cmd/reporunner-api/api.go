package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/KlikkAI/reporunner-sub008/pkg/engine"
	"github.com/KlikkAI/reporunner-sub008/pkg/persistence"
	"github.com/KlikkAI/reporunner-sub008/pkg/web"
)

type API struct {
	logger   *slog.Logger
	persist  persistence.Persistence
	engine   *engine.Engine
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, persist persistence.Persistence, eng *engine.Engine) *API {
	return &API{
		logger:   logger,
		persist:  persist,
		engine:   eng,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.persist, a.engine, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Reporunner API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
