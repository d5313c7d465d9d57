package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campuscode-api/internal/dto"
	"github.com/noah-isme/campuscode-api/internal/middleware"
	"github.com/noah-isme/campuscode-api/internal/models"
	"github.com/noah-isme/campuscode-api/internal/service"
	"github.com/noah-isme/campuscode-api/internal/utils"
)

// AdminHandler exposes capability-gated administration endpoints.
type AdminHandler struct {
	problems  service.ProblemService
	ranks     service.RankService
	stats     service.StatsService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAdminHandler constructs the admin handler.
func NewAdminHandler(problems service.ProblemService, ranks service.RankService, stats service.StatsService, validate *validator.Validate, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		problems:  problems,
		ranks:     ranks,
		stats:     stats,
		validator: validate,
		logger:    logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register mounts the admin routes, each behind its own capability.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Post("/problems", middleware.RequireCapability(models.CapabilityManageProblems), h.createProblem)
	router.Post("/ranks/recompute", middleware.RequireCapability(models.CapabilityManageRanks), h.recompute)
	router.Post("/users/:id/xp", middleware.RequireCapability(models.CapabilityManageRanks), h.adjustXP)
	router.Get("/overview", middleware.RequireCapability(models.CapabilityViewAdmin), h.overview)
}

func (h *AdminHandler) createProblem(c *fiber.Ctx) error {
	var payload dto.ProblemCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	problem, err := h.problems.Create(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "problem created", problem)
}

func (h *AdminHandler) recompute(c *fiber.Ctx) error {
	result, err := h.ranks.Recompute(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "ranks recomputed", result)
}

func (h *AdminHandler) adjustXP(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.XPAdjustmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().
		Uint("user_id", userID).
		Uint("admin_id", userIDFromContext(c)).
		Int64("amount", payload.Amount).
		Msg("admin xp adjustment")

	standing, err := h.ranks.AwardExperience(c.UserContext(), userID, payload.Amount, payload.Reason)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "experience adjusted", standing)
}

func (h *AdminHandler) overview(c *fiber.Ctx) error {
	overview, err := h.stats.Overview(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "overview retrieved", overview)
}

func (h *AdminHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", err.Error())
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrProblemNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("admin operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
