package http_handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/config"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/port"
)

type Server struct {
	app     *fiber.App
	cfg     *config.Config
	service port.CoordinatorService
}

func NewServer(cfg *config.Config, service port.CoordinatorService) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{
		app:     app,
		cfg:     cfg,
		service: service,
	}

	// Routes
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	meta := s.app.Group("/metadata")
	meta.Post("/migration", s.handleMigrate)
	meta.Get("/migration", s.handleJob)
	meta.Get("/migrations", s.handleJobs)
	meta.Post("/migration/cancel", s.handleCancel)

	meta.Post("/join_leader", s.handleJoin)
	meta.Post("/leave_cluster", s.handleLeave)
	meta.Post("/drain", s.handleDrain)
	meta.Post("/heartbeat", s.handleHeartbeat)
	meta.Get("/peers", s.handlePeers)
	meta.Post("/leader", s.handleLeaderChanged)

	meta.Get("/slots_detail", s.handleSlotsDetail)
	meta.Get("/backlog", s.handleBacklog)
	meta.Post("/reclaim", s.handleReclaim)
}

// App exposes the fiber app for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Addr)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	leaderID, leaderAddr := s.service.Leader()
	return c.JSON(fiber.Map{
		"status":     "ok",
		"serverId":   s.cfg.Server.ServerID,
		"leaderId":   leaderID,
		"leaderAddr": leaderAddr,
	})
}
