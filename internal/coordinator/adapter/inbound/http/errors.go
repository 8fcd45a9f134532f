package http_handler

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	sdklogger "github.com/anthanhphan/gosdk/logger"
)

const defaultRetryAfterSeconds = 1

func (s *Server) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// sendServiceError maps coordinator errors onto HTTP responses.
func (s *Server) sendServiceError(c *fiber.Ctx, err error) error {
	var (
		notLeader *domain.NotLeaderError
		busy      *domain.SlotRangeBusyError
		owned     *domain.HasOwnedSlotsError
	)
	switch {
	case errors.As(err, &notLeader):
		if loc := leaderLocation(notLeader.LeaderAddr, c.OriginalURL()); loc != "" {
			c.Set(fiber.HeaderLocation, loc)
		}
		return c.Status(fiber.StatusTemporaryRedirect).JSON(fiber.Map{
			"error":      err.Error(),
			"leaderId":   notLeader.LeaderID,
			"leaderAddr": notLeader.LeaderAddr,
		})
	case errors.As(err, &busy):
		retryAfter := defaultRetryAfterSeconds
		if busy.RetryAfter > 0 {
			retryAfter = int(math.Ceil(busy.RetryAfter.Seconds()))
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
			"jobId": busy.JobID,
			"slot":  busy.Slot,
		})
	case errors.As(err, &owned):
		return c.Status(fiber.StatusPreconditionFailed).JSON(fiber.Map{
			"error":    err.Error(),
			"serverId": owned.ServerID,
			"slots":    slotmap.Format(owned.Slots),
		})
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, slotmap.ErrOutOfRange):
		return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownServer), errors.Is(err, domain.ErrUnknownJob):
		return s.sendJSONError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyMember), errors.Is(err, domain.ErrCancelRefused),
		errors.Is(err, domain.ErrLeaderChangeRefused):
		return s.sendJSONError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrServerGone):
		return s.sendJSONError(c, fiber.StatusGone, err.Error())
	default:
		sdklogger.Errorw("Coordinator request failed", "path", c.Path(), "error", err.Error())
		return s.sendJSONError(c, fiber.StatusInternalServerError, err.Error())
	}
}

// leaderLocation rewrites the request URI onto the leader's address.
func leaderLocation(leaderAddr, uri string) string {
	if leaderAddr == "" {
		return ""
	}
	if !strings.Contains(leaderAddr, "://") {
		leaderAddr = "http://" + leaderAddr
	}
	return strings.TrimRight(leaderAddr, "/") + uri
}
