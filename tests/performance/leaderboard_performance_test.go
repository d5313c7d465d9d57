package performance_test

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/campuscode-api/internal/handler"
	"github.com/noah-isme/campuscode-api/internal/models"
	"github.com/noah-isme/campuscode-api/internal/repository"
	"github.com/noah-isme/campuscode-api/internal/service"
)

func setupLeaderboardPerformanceApp(t *testing.T, cache *redis.Client) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	colleges := []string{"ITB", "UI", "UGM", ""}
	users := make([]models.User, 0, 400)
	for i := 0; i < 400; i++ {
		users = append(users, models.User{
			Username: fmt.Sprintf("student%03d", i),
			Email:    fmt.Sprintf("student%03d@campus.test", i),
			Role:     models.RoleStudent,
			College:  colleges[i%len(colleges)],
			XP:       int64((i * 37) % 500),
		})
	}
	require.NoError(t, db.CreateInBatches(users, 100).Error)

	rankService := service.NewRankService(repository.NewUserRepository(db), cache, time.Minute, nil, zerolog.Nop())
	_, err = rankService.Recompute(context.Background())
	require.NoError(t, err)

	app := fiber.New()
	handler.NewLeaderboardHandler(rankService, zerolog.Nop()).Register(app.Group("/api/v2/leaderboard"))
	return app
}

func measureP95(t *testing.T, app *fiber.App, path string, runs int) time.Duration {
	t.Helper()
	durations := make([]time.Duration, 0, runs)

	for i := 0; i < runs; i++ {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		start := time.Now()
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	index := int(math.Ceil(0.95*float64(len(durations)))) - 1
	if index < 0 {
		index = 0
	}
	return durations[index]
}

func TestLeaderboardP95LatencyBelow250ms(t *testing.T) {
	app := setupLeaderboardPerformanceApp(t, nil)

	require.LessOrEqual(t, measureP95(t, app, "/api/v2/leaderboard?limit=200", 40), 250*time.Millisecond)
	require.LessOrEqual(t, measureP95(t, app, "/api/v2/leaderboard?college=ITB", 40), 250*time.Millisecond)
}

func TestCachedLeaderboardP95LatencyBelow250ms(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	app := setupLeaderboardPerformanceApp(t, cache)

	require.LessOrEqual(t, measureP95(t, app, "/api/v2/leaderboard", 40), 250*time.Millisecond)
	require.NotEmpty(t, mr.Keys())
}
