package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campuscode-api/internal/service"
	"github.com/noah-isme/campuscode-api/internal/utils"
)

// LeaderboardHandler exposes global and per-college rankings.
type LeaderboardHandler struct {
	service service.RankService
	logger  zerolog.Logger
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(service service.RankService, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		logger:  logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register mounts the leaderboard route.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *LeaderboardHandler) list(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	board, err := h.service.Leaderboard(c.UserContext(), strings.TrimSpace(c.Query("college")), limit)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load leaderboard")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to retrieve leaderboard")
	}

	return utils.SendSuccess(c, "leaderboard retrieved", board)
}
