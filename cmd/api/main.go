package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campuscode-api/internal/config"
	"github.com/noah-isme/campuscode-api/internal/database"
	"github.com/noah-isme/campuscode-api/internal/handler"
	"github.com/noah-isme/campuscode-api/internal/middleware"
	"github.com/noah-isme/campuscode-api/internal/repository"
	"github.com/noah-isme/campuscode-api/internal/router"
	"github.com/noah-isme/campuscode-api/internal/service"
	"github.com/noah-isme/campuscode-api/pkg/execution"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(database.PostgresConfig{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient == nil {
		logger.Warn().Msg("redis url not set, leaderboard and stats caching disabled")
	} else {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("leaderboard events disabled")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	executor, closeExecutor, err := buildExecutor(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create executor: %v", err)
	}
	defer closeExecutor()

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	problemRepo := repository.NewProblemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	rankService := service.NewRankService(userRepo, redisClient, cfg.LeaderboardCacheTTL, service.NewNATSLeaderboardPublisher(natsConn, cfg.LeaderboardSubject), logger)
	statsService := service.NewStatsService(submissionRepo, problemRepo, userRepo, redisClient, cfg.StatsCacheTTL, logger)
	problemService := service.NewProblemService(problemRepo, submissionRepo, validate, logger)
	gradingService := service.NewGradingService(problemRepo, submissionRepo, executor, rankService, statsService, validate, logger, service.GradingConfig{
		ExecutionTimeout:    cfg.ExecutionTimeout,
		RecordRuntimeErrors: cfg.RecordRuntimeErrors,
		Languages:           cfg.Languages,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		ProblemHandler:     handler.NewProblemHandler(problemService, logger),
		GradingHandler:     handler.NewGradingHandler(gradingService, logger),
		MeHandler:          handler.NewMeHandler(statsService, rankService, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(rankService, logger),
		AdminHandler:       handler.NewAdminHandler(problemService, rankService, statsService, validate, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		SubmitLimiter:      middleware.RateLimit("grading", cfg.SubmitRateLimit, cfg.SubmitRateWindow),
		HealthProbes:       healthProbes(db, redisClient),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func healthProbes(db *gorm.DB, cache *redis.Client) []handler.HealthProbe {
	probes := []handler.HealthProbe{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if cache != nil {
		probes = append(probes, handler.HealthProbe{
			Name: "cache",
			Check: func(ctx context.Context) error {
				return cache.Ping(ctx).Err()
			},
		})
	}
	return probes
}

func buildExecutor(cfg config.Config, logger zerolog.Logger) (execution.Executor, func(), error) {
	if cfg.ExecutionBackend == config.BackendDocker {
		docker, err := execution.NewDockerExecutor(execution.DockerConfig{
			Host:          cfg.DockerHost,
			Timeout:       cfg.ExecutionTimeout,
			MemoryLimitMB: int64(cfg.CodeRunMemoryMB),
			CPUShares:     int64(cfg.CodeRunCPUShares),
			Logger:        logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return docker, func() { _ = docker.Close() }, nil
	}

	piston, err := execution.NewPistonClient(execution.PistonConfig{
		BaseURL: cfg.PistonURL,
		Timeout: cfg.ExecutionTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return piston, func() {}, nil
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
