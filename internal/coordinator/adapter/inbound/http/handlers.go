package http_handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

func (s *Server) handleMigrate(c *fiber.Ctx) error {
	var req migrateRequest
	if err := decodeStrict(c.Body(), &req); err != nil {
		return s.sendServiceError(c, err)
	}
	migration, err := req.toDomain(s.service.SlotCount())
	if err != nil {
		return s.sendServiceError(c, err)
	}

	job, err := s.service.Migrate(c.UserContext(), migration)
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}

func (s *Server) handleJob(c *fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return s.sendJSONError(c, fiber.StatusBadRequest, "id query parameter is required")
	}
	job, err := s.service.Job(c.UserContext(), id)
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(job)
}

func (s *Server) handleJobs(c *fiber.Ctx) error {
	jobs, err := s.service.Jobs(c.UserContext())
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(jobs)
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	var req jobRequest
	if err := decodeStrict(c.Body(), &req); err != nil {
		return s.sendServiceError(c, err)
	}
	if err := required("id", req.ID); err != nil {
		return s.sendServiceError(c, err)
	}
	job, err := s.service.CancelMigration(c.UserContext(), req.ID)
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(job)
}

func (s *Server) handleJoin(c *fiber.Ctx) error {
	var req joinRequest
	if err := decodeStrict(c.Body(), &req); err != nil {
		return s.sendServiceError(c, err)
	}
	if err := required("masterId", req.MasterID, "serverId", req.ServerID); err != nil {
		return s.sendServiceError(c, err)
	}
	srv, err := s.service.Join(c.UserContext(), domain.JoinRequest{
		LeaderID: req.MasterID,
		ServerID: req.ServerID,
		HTTPAddr: req.HTTPAddr,
		RPCAddr:  req.RPCAddr,
	})
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(srv)
}

func (s *Server) handleLeave(c *fiber.Ctx) error {
	var req serverRequest
	if err := decodeStrict(c.Body(), &req); err != nil {
		return s.sendServiceError(c, err)
	}
	if err := required("serverId", req.ServerID); err != nil {
		return s.sendServiceError(c, err)
	}
	result, err := s.service.Leave(c.UserContext(), req.ServerID)
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) handleDrain(c *fiber.Ctx) error {
	var req serverRequest
	if err := decodeStrict(c.Body(), &req); err != nil {
		return s.sendServiceError(c, err)
	}
	if err := required("serverId", req.ServerID); err != nil {
		return s.sendServiceError(c, err)
	}
	srv, err := s.service.Drain(c.UserContext(), req.ServerID)
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(srv)
}

func (s *Server) handleHeartbeat(c *fiber.Ctx) error {
	var req serverRequest
	if err := decodeStrict(c.Body(), &req); err != nil {
		return s.sendServiceError(c, err)
	}
	if err := required("serverId", req.ServerID); err != nil {
		return s.sendServiceError(c, err)
	}
	if err := s.service.Heartbeat(c.UserContext(), req.ServerID); err != nil {
		return s.sendServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handlePeers(c *fiber.Ctx) error {
	peers, err := s.service.ListPeers(c.UserContext(), c.Query("serverId"))
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(peers)
}

func (s *Server) handleLeaderChanged(c *fiber.Ctx) error {
	var req leaderRequest
	if err := decodeStrict(c.Body(), &req); err != nil {
		return s.sendServiceError(c, err)
	}
	if err := required("leaderId", req.LeaderID); err != nil {
		return s.sendServiceError(c, err)
	}
	if err := s.service.SetLeader(c.UserContext(), req.FromID, req.LeaderID, req.LeaderAddr); err != nil {
		return s.sendServiceError(c, err)
	}
	leaderID, leaderAddr := s.service.Leader()
	return c.JSON(fiber.Map{
		"leaderId":   leaderID,
		"leaderAddr": leaderAddr,
	})
}

func (s *Server) handleSlotsDetail(c *fiber.Ctx) error {
	detail, err := s.service.SlotsDetail(c.UserContext())
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(detail)
}

func (s *Server) handleBacklog(c *fiber.Ctx) error {
	backlog, err := s.service.Backlog(c.UserContext())
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(backlog)
}

func (s *Server) handleReclaim(c *fiber.Ctx) error {
	var req reclaimRequest
	if err := decodeStrict(c.Body(), &req); err != nil {
		return s.sendServiceError(c, err)
	}
	if err := required("serverId", req.ServerID, "destServerId", req.DestServerID); err != nil {
		return s.sendServiceError(c, err)
	}
	moved, err := s.service.Reclaim(c.UserContext(), req.ServerID, req.DestServerID)
	if err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"serverId":     req.ServerID,
		"destServerId": req.DestServerID,
		"slots":        slotmap.Format(moved),
	})
}
