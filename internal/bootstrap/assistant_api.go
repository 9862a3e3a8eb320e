package bootstrap

import (
	"assistant_server/adapter/in/http"
	"assistant_server/config"
	"assistant_server/infra/middleware"
	"assistant_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
)

// NewAPI builds the status API server around an already-assembled
// dependency set, so the "all" mode shares one set of stores and breakers
// with the bot loops.
func NewAPI(cfg *config.Config, deps *Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,

		// go-json is 2-3x faster than encoding/json for serialization
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 1 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	healthHandler := http.NewHealthHandler(deps.Redis, deps.History)
	healthHandler.Register(app)

	api := app.Group("/api/v1")

	// History is an interface-typed field; keep it a nil interface when the
	// store is disabled.
	statusHandler := http.NewStatusHandler(
		deps.Metrics,
		deps.Snapshots,
		deps.Drafts,
		historyPort(deps),
		deps.BreakerStates,
	)
	statusHandler.Register(api)

	logger.Info("status API initialized")
	return app
}
