package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/campuscode-api/internal/dto"
	"github.com/noah-isme/campuscode-api/internal/handler"
	"github.com/noah-isme/campuscode-api/internal/models"
	"github.com/noah-isme/campuscode-api/internal/repository"
	"github.com/noah-isme/campuscode-api/internal/service"
)

type campusFixture struct {
	db       *gorm.DB
	problems service.ProblemService
	ranks    service.RankService
	stats    service.StatsService
}

func newCampusFixture(t *testing.T) campusFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Problem{}, &models.TestCase{}, &models.Submission{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	users := repository.NewUserRepository(db)
	problems := repository.NewProblemRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	validate := validator.New()

	return campusFixture{
		db:       db,
		problems: service.NewProblemService(problems, submissions, validate, zerolog.Nop()),
		ranks:    service.NewRankService(users, nil, 0, nil, zerolog.Nop()),
		stats:    service.NewStatsService(submissions, problems, users, nil, 0, zerolog.Nop()),
	}
}

func (f campusFixture) adminApp(role string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v2/admin", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(1))
		c.Locals("user_role", role)
		return c.Next()
	})
	handler.NewAdminHandler(f.problems, f.ranks, f.stats, validator.New(), zerolog.Nop()).Register(group)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	return resp, payload
}

func TestAdminHandlerCreateProblem(t *testing.T) {
	f := newCampusFixture(t)
	app := f.adminApp("Admin")

	resp, payload := doJSON(t, app, http.MethodPost, "/api/v2/admin/problems", dto.ProblemCreateRequest{
		Title:        "Reverse",
		Difficulty:   models.DifficultyEasy,
		Points:       10,
		Statement:    "Reverse the string.",
		SampleInput:  "abc\n",
		SampleOutput: "cba\n",
		TestCases: []dto.TestCaseInput{
			{Input: "xy\n", ExpectedOutput: "yx\n"},
			{Input: "secret\n", ExpectedOutput: "terces\n", Hidden: true},
		},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var detail dto.ProblemDetailResponse
	require.NoError(t, json.Unmarshal(payload.Data, &detail))
	require.Equal(t, "Reverse", detail.Title)
	require.Len(t, detail.VisibleCases, 1)
	require.Equal(t, 1, detail.HiddenCases)
	require.NotContains(t, string(payload.Data), "terces")
}

func TestAdminHandlerRejectsStudents(t *testing.T) {
	f := newCampusFixture(t)
	app := f.adminApp("student")

	resp, payload := doJSON(t, app, http.MethodPost, "/api/v2/admin/ranks/recompute", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.False(t, payload.Success)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v2/admin/overview", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAdminHandlerAdjustXPAndRecompute(t *testing.T) {
	f := newCampusFixture(t)
	user := models.User{Username: "ari", Email: "ari@campus.test", Role: models.RoleStudent, College: "ITB"}
	require.NoError(t, f.db.Create(&user).Error)
	app := f.adminApp("admin")

	resp, payload := doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/v2/admin/users/%d/xp", user.ID), dto.XPAdjustmentRequest{Amount: 25, Reason: "hackathon winner"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var standing dto.StandingResponse
	require.NoError(t, json.Unmarshal(payload.Data, &standing))
	require.Equal(t, int64(25), standing.XP)
	require.Equal(t, 1, standing.GlobalRank)

	resp, payload = doJSON(t, app, http.MethodPost, "/api/v2/admin/ranks/recompute", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result dto.RecomputeResponse
	require.NoError(t, json.Unmarshal(payload.Data, &result))
	require.Equal(t, 1, result.Evaluated)
	require.Equal(t, 0, result.Updated)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v2/admin/users/999/xp", dto.XPAdjustmentRequest{Amount: 5, Reason: "typo"})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/v2/admin/users/%d/xp", user.ID), dto.XPAdjustmentRequest{Amount: 0, Reason: "noop"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAdminHandlerOverview(t *testing.T) {
	f := newCampusFixture(t)
	require.NoError(t, f.db.Create(&models.User{Username: "ari", Email: "ari@campus.test", Role: models.RoleStudent}).Error)
	require.NoError(t, f.db.Create(&models.User{Username: "root", Email: "root@campus.test", Role: models.RoleAdmin}).Error)
	app := f.adminApp("admin")

	resp, payload := doJSON(t, app, http.MethodGet, "/api/v2/admin/overview", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var overview dto.AdminOverviewResponse
	require.NoError(t, json.Unmarshal(payload.Data, &overview))
	require.Equal(t, int64(1), overview.Students)
}
