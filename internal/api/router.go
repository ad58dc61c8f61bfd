// Package api wires the HTTP surface: REST routes for sources, tasks
// and contacts, plus the WebSocket progress stream.
package api

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/ankaboot-source/leadminer-engine/internal/api/handlers"
	"github.com/ankaboot-source/leadminer-engine/internal/miner"
	"github.com/ankaboot-source/leadminer-engine/internal/progress"
	"github.com/ankaboot-source/leadminer-engine/internal/repository"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB             *gorm.DB
	Engine         *miner.Engine
	Hub            *progress.Hub
	AllowedOrigins string
	Logger         *slog.Logger
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: splitOrigins(cfg.AllowedOrigins),
	}))

	// Initialize repositories
	sourceRepo := repository.NewSourceRepository(cfg.DB)
	contactRepo := repository.NewContactRepository(cfg.DB)

	// WebSocket upgrades share one origin-checked upgrader
	upgrader := progress.NewSecureUpgrader(cfg.AllowedOrigins, cfg.Logger)
	upgrade := func(c echo.Context) (*progress.Client, error) {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return nil, err
		}
		return progress.NewClient(cfg.Hub, conn, cfg.Logger), nil
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB)
	sourceHandler := handlers.NewSourceHandler(sourceRepo)
	contactHandler := handlers.NewContactHandler(contactRepo)
	miningHandler := handlers.NewMiningHandler(cfg.Engine, cfg.Hub, upgrade, cfg.Logger)

	// Health routes
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	// API routes
	api := e.Group("/api")

	users := api.Group("/users/:user_id")
	users.POST("/sources", sourceHandler.Create)
	users.GET("/sources", sourceHandler.List)
	users.DELETE("/sources/:source_id", sourceHandler.Delete)
	users.GET("/sources/:source_id/folders", miningHandler.ListFolders)
	users.POST("/sources/:source_id/mine", miningHandler.Start)
	users.GET("/contacts", contactHandler.List)

	mining := api.Group("/mining")
	mining.GET("/:mining_id", miningHandler.Get)
	mining.DELETE("/:mining_id", miningHandler.Cancel)

	// Progress stream
	e.GET("/ws/mining/:mining_id", miningHandler.Stream)

	return e
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return origins
}
