package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campuscode-api/internal/dto"
	"github.com/noah-isme/campuscode-api/internal/handler"
	"github.com/noah-isme/campuscode-api/internal/service"
	"github.com/noah-isme/campuscode-api/pkg/execution"
)

type stubGradingService struct {
	outcome   dto.GradeOutcome
	run       dto.RunResult
	err       error
	userID    uint
	problemID uint
	payload   dto.GradeRequest
}

func (s *stubGradingService) Grade(_ context.Context, userID, problemID uint, payload dto.GradeRequest) (dto.GradeOutcome, error) {
	s.userID = userID
	s.problemID = problemID
	s.payload = payload
	return s.outcome, s.err
}

func (s *stubGradingService) Run(_ context.Context, _ dto.RunRequest) (dto.RunResult, error) {
	return s.run, s.err
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details interface{}     `json:"details"`
}

func newGradingApp(svc service.GradingService, userID uint) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v2", func(c *fiber.Ctx) error {
		if userID != 0 {
			c.Locals("user_id", userID)
			c.Locals("user_role", "student")
		}
		return c.Next()
	})
	handler.NewGradingHandler(svc, zerolog.Nop()).Register(group)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	return resp, payload
}

func TestGradingHandlerSubmitSuccess(t *testing.T) {
	svc := &stubGradingService{outcome: dto.GradeOutcome{
		Status:     dto.GradeStatusSuccess,
		Message:    "Correct Answer! You earned +50 XP.",
		XPAwarded:  50,
		FirstSolve: true,
		Results:    []dto.CaseResult{{Position: 1, Status: dto.CaseStatusPassed}},
	}}
	app := newGradingApp(svc, 7)

	resp, payload := postJSON(t, app, "/api/v2/problems/3/submit", dto.GradeRequest{Language: "python", Source: "print(4)"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, payload.Success)
	require.Equal(t, "Correct Answer! You earned +50 XP.", payload.Message)
	require.Equal(t, uint(7), svc.userID)
	require.Equal(t, uint(3), svc.problemID)
	require.Equal(t, "python", svc.payload.Language)

	var outcome dto.GradeOutcome
	require.NoError(t, json.Unmarshal(payload.Data, &outcome))
	require.Equal(t, int64(50), outcome.XPAwarded)
}

func TestGradingHandlerRuntimeErrorIsOK(t *testing.T) {
	svc := &stubGradingService{outcome: dto.GradeOutcome{
		Status:  dto.GradeStatusError,
		Kind:    dto.ErrorKindRuntime,
		Message: "Runtime Error",
		Details: "Traceback",
	}}
	app := newGradingApp(svc, 7)

	resp, payload := postJSON(t, app, "/api/v2/problems/3/submit", dto.GradeRequest{Language: "python", Source: "x"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var outcome dto.GradeOutcome
	require.NoError(t, json.Unmarshal(payload.Data, &outcome))
	require.Equal(t, dto.ErrorKindRuntime, outcome.Kind)
}

func TestGradingHandlerMapsExecutionErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w after 5s", execution.ErrTimeout), fiber.StatusGatewayTimeout},
		{execution.ErrUnavailable, fiber.StatusServiceUnavailable},
		{execution.ErrMalformedResponse, fiber.StatusBadGateway},
		{service.ErrProblemNotFound, fiber.StatusNotFound},
		{service.ErrUnsupportedLanguage, fiber.StatusBadRequest},
		{fmt.Errorf("database is locked"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		svc := &stubGradingService{
			err:     tc.err,
			outcome: dto.GradeOutcome{Status: dto.GradeStatusError, Kind: dto.ErrorKindTimeout, Retryable: true},
		}
		app := newGradingApp(svc, 7)

		resp, payload := postJSON(t, app, "/api/v2/problems/3/submit", dto.GradeRequest{Language: "python", Source: "x"})
		require.Equal(t, tc.status, resp.StatusCode, tc.err.Error())
		require.False(t, payload.Success)
		if tc.status == fiber.StatusGatewayTimeout {
			var outcome dto.GradeOutcome
			require.NoError(t, json.Unmarshal(payload.Data, &outcome))
			require.True(t, outcome.Retryable)
		}
	}
}

func TestGradingHandlerRejectsBadIdentifierAndAnonymous(t *testing.T) {
	svc := &stubGradingService{}

	resp, _ := postJSON(t, newGradingApp(svc, 7), "/api/v2/problems/abc/submit", dto.GradeRequest{Language: "python", Source: "x"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, newGradingApp(svc, 0), "/api/v2/problems/1/submit", dto.GradeRequest{Language: "python", Source: "x"})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestGradingHandlerRun(t *testing.T) {
	svc := &stubGradingService{run: dto.RunResult{Status: dto.GradeStatusSuccess, Stdout: "42\n"}}
	app := newGradingApp(svc, 7)

	resp, payload := postJSON(t, app, "/api/v2/run", dto.RunRequest{Language: "python", Source: "print(42)"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result dto.RunResult
	require.NoError(t, json.Unmarshal(payload.Data, &result))
	require.Equal(t, "42\n", result.Stdout)
}
