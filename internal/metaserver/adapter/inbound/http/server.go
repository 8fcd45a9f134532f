package http_handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/config"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/port"
	"github.com/anthanhphan/gosdk/logger"
)

// fencedRetryAfter is the Retry-After hint, in seconds, for writes to a fenced slot.
const fencedRetryAfter = "1"

type Server struct {
	app     *fiber.App
	cfg     *config.Config
	service port.MetadataService
}

func NewServer(cfg *config.Config, service port.MetadataService) *Server {
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
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	s.app.Put("/records", s.handlePut)
	s.app.Post("/records", s.handlePut)
	s.app.Get("/records", s.handleVersions)
	s.app.Get("/records/slot", s.handleSlotOf)

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.HTTPAddr())
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"serverId": s.cfg.NodeID(),
	})
}

func (s *Server) handlePut(c *fiber.Ctx) error {
	var rec domain.Record
	if err := c.BodyParser(&rec); err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	stored, err := s.service.PutRecord(c.UserContext(), rec)
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(stored)
}

func (s *Server) handleVersions(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "name query parameter is required")
	}

	versions, err := s.service.Versions(c.UserContext(), name)
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(versions)
}

func (s *Server) handleSlotOf(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "name query parameter is required")
	}
	return c.JSON(fiber.Map{
		"name": name,
		"slot": s.service.SlotOf(name),
	})
}

func (s *Server) sendServiceError(c *fiber.Ctx, err error) error {
	var fenced *domain.FencedError
	var moved *domain.MovedError
	switch {
	case errors.As(err, &moved):
		status := fiber.StatusMisdirectedRequest
		if loc := ownerLocation(moved.Owner.HTTPAddr, c.OriginalURL()); loc != "" {
			c.Set(fiber.HeaderLocation, loc)
			status = fiber.StatusTemporaryRedirect
		}
		return c.Status(status).JSON(fiber.Map{
			"error":     err.Error(),
			"slot":      moved.Slot,
			"serverId":  moved.Owner.ServerID,
			"ownerAddr": moved.Owner.HTTPAddr,
		})
	case errors.As(err, &fenced):
		c.Set(fiber.HeaderRetryAfter, fencedRetryAfter)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
			"slot":  fenced.Slot,
			"jobId": fenced.JobID,
		})
	case errors.Is(err, domain.ErrInvalidRecord), errors.Is(err, domain.ErrSlotOutOfRange):
		return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRecordNotFound):
		return s.sendJSONError(c, fiber.StatusNotFound, err.Error())
	default:
		logger.Errorw("Metadata request failed", "path", c.Path(), "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, err.Error())
	}
}

// ownerLocation rewrites the request URI onto the new owner's address.
func ownerLocation(addr, uri string) string {
	if addr == "" {
		return ""
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/") + uri
}

func (s *Server) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}
