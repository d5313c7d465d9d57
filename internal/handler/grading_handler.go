package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campuscode-api/internal/dto"
	"github.com/noah-isme/campuscode-api/internal/service"
	"github.com/noah-isme/campuscode-api/internal/utils"
	"github.com/noah-isme/campuscode-api/pkg/execution"
)

// GradingHandler exposes the submit and dry-run endpoints.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register wires the grading endpoints. Extra handlers, such as a rate
// limiter, run before each endpoint.
func (h *GradingHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Post("/problems/:id/submit", withGuards(guards, h.submit)...)
	router.Post("/run", withGuards(guards, h.run)...)
}

func (h *GradingHandler) submit(c *fiber.Ctx) error {
	problemID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	outcome, err := h.service.Grade(c.UserContext(), userID, problemID, payload)
	if err != nil {
		return h.handleError(c, err, outcome)
	}

	return utils.SendSuccess(c, outcome.Message, outcome)
}

func (h *GradingHandler) run(c *fiber.Ctx) error {
	var payload dto.RunRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Run(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err, result)
	}

	return utils.SendSuccess(c, "run completed", result)
}

// handleError maps execution failures to gateway statuses and keeps the
// partial outcome in data so clients can show progress and retry hints.
func (h *GradingHandler) handleError(c *fiber.Ctx, err error, outcome interface{}) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", err.Error())
	case errors.Is(err, service.ErrUnsupportedLanguage):
		return utils.SendError(c, fiber.StatusBadRequest, "language not supported")
	case errors.Is(err, service.ErrProblemNotFound), errors.Is(err, service.ErrUserNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, execution.ErrTimeout):
		return utils.FailWithData(c, fiber.StatusGatewayTimeout, "execution timed out", outcome)
	case errors.Is(err, execution.ErrUnavailable):
		return utils.FailWithData(c, fiber.StatusServiceUnavailable, "execution service unavailable", outcome)
	case errors.Is(err, execution.ErrMalformedResponse):
		return utils.FailWithData(c, fiber.StatusBadGateway, "execution service returned an invalid response", outcome)
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("grading request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
