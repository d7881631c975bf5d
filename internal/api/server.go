// Package api exposes the research and reporting pipeline over HTTP.
package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"

	"github.com/cyberbrief/cyberbrief/internal/config"
	"github.com/cyberbrief/cyberbrief/internal/database"
	"github.com/cyberbrief/cyberbrief/internal/research"
	"github.com/cyberbrief/cyberbrief/internal/util"
)

// Server bundles the HTTP app with its collaborators.
type Server struct {
	cfg      *config.Cfg
	engine   *research.Engine
	store    *database.Store
	limiter  *rateLimiter
	progress *progressBroker
}

// NewServer builds the Fiber application with all routes registered.
func NewServer(cfg *config.Cfg, engine *research.Engine, store *database.Store) *fiber.App {
	snapshot := cfg.Snapshot()

	app := fiber.New(fiber.Config{
		ReadTimeout: time.Duration(snapshot.Network.ReadTimeout) * time.Second,
		// Deep research holds the connection open for minutes.
		WriteTimeout: time.Duration(snapshot.Network.WriteTimeout) * time.Second,
	})

	util.PrintInfof("Server configured with read timeout %ds, write timeout %ds",
		snapshot.Network.ReadTimeout, snapshot.Network.WriteTimeout)

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(snapshot.Network.CORSOrigins, ","),
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Job-ID",
		AllowCredentials: true,
	}))

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		store:    store,
		limiter:  newRateLimiter(snapshot.Limits.PerHour, snapshot.Limits.PerDay),
		progress: newProgressBroker(),
	}
	s.setupRoutes(app)

	return app
}

func (s *Server) setupRoutes(app *fiber.App) {
	app.Get("/api/health", s.healthHandler)

	app.Post("/api/research", s.researchHandler)
	app.Post("/api/research/from-sources", s.researchFromSourcesHandler)

	app.Post("/api/report/generate", s.reportGenerateHandler)

	app.Get("/api/attack/lookup", s.attackLookupHandler)
	app.Post("/api/attack/navigator", s.attackNavigatorHandler)

	app.Post("/api/export/markdown", s.exportMarkdownHandler)
	app.Post("/api/export/html", s.exportHTMLHandler)
	app.Post("/api/export/pdf", s.exportPDFHandler)

	app.Get("/api/reports", s.listReportsHandler)
	app.Get("/api/reports/:id", s.getReportHandler)
	app.Delete("/api/reports/:id", s.deleteReportHandler)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/research/:id", websocket.New(s.researchProgressWS))
}
