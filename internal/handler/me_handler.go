package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campuscode-api/internal/service"
	"github.com/noah-isme/campuscode-api/internal/utils"
)

// MeHandler serves the caller's own ledger, statistics and standing.
type MeHandler struct {
	stats  service.StatsService
	ranks  service.RankService
	logger zerolog.Logger
}

// NewMeHandler constructs the handler.
func NewMeHandler(stats service.StatsService, ranks service.RankService, logger zerolog.Logger) *MeHandler {
	return &MeHandler{
		stats:  stats,
		ranks:  ranks,
		logger: logger.With().Str("component", "me_handler").Logger(),
	}
}

// Register mounts the /me routes.
func (h *MeHandler) Register(router fiber.Router) {
	router.Get("/submissions", h.submissions)
	router.Get("/stats", h.statistics)
	router.Get("/standing", h.standing)
}

func (h *MeHandler) submissions(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	items, err := h.stats.ListSubmissions(c.UserContext(), userID, limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to retrieve submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", items)
}

func (h *MeHandler) statistics(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	stats, err := h.stats.GetStats(c.UserContext(), userID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build statistics")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to retrieve statistics")
	}

	return utils.SendSuccess(c, "statistics retrieved", stats)
}

func (h *MeHandler) standing(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	standing, err := h.ranks.Standing(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load standing")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to retrieve standing")
	}

	return utils.SendSuccess(c, "standing retrieved", standing)
}
