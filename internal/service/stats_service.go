package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campuscode-api/internal/dto"
	"github.com/noah-isme/campuscode-api/internal/models"
	"github.com/noah-isme/campuscode-api/internal/repository"
)

const (
	defaultSubmissionLimit = 20
	maxSubmissionLimit     = 100
)

// StatsService aggregates the submission ledger.
type StatsService interface {
	GetStats(ctx context.Context, userID uint) (dto.UserStatsResponse, error)
	ListSubmissions(ctx context.Context, userID uint, limit int) ([]dto.SubmissionResponse, error)
	Invalidate(ctx context.Context, userID uint)
	Overview(ctx context.Context) (dto.AdminOverviewResponse, error)
}

type statsService struct {
	submissions repository.SubmissionRepository
	problems    repository.ProblemRepository
	users       repository.UserRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewStatsService builds the statistics aggregator. cache may be nil.
func NewStatsService(submissions repository.SubmissionRepository, problems repository.ProblemRepository, users repository.UserRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StatsService {
	return &statsService{
		submissions: submissions,
		problems:    problems,
		users:       users,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "stats_service").Logger(),
		now:         time.Now,
	}
}

func statsCacheKey(userID uint) string {
	return fmt.Sprintf("stats:user:%d", userID)
}

func (s *statsService) GetStats(ctx context.Context, userID uint) (dto.UserStatsResponse, error) {
	cacheKey := statsCacheKey(userID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.UserStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("user_id", userID).Msg("stats cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read stats cache")
		}
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{UserID: &userID})
	if err != nil {
		return dto.UserStatsResponse{}, err
	}

	response := BuildUserStats(submissions)
	response.GeneratedAt = s.now().UTC()

	if s.cache != nil && s.cacheTTL > 0 {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store stats cache")
			}
		}
	}

	return response, nil
}

// BuildUserStats computes ledger statistics. Days are UTC calendar days in
// ascending order.
func BuildUserStats(submissions []models.Submission) dto.UserStatsResponse {
	byDifficulty := make(map[string]int64, len(models.Difficulties))
	for _, difficulty := range models.Difficulties {
		byDifficulty[difficulty] = 0
	}

	solved := make(map[uint]struct{})
	perDay := make(map[string]int64)

	for _, submission := range submissions {
		day := submission.CreatedAt.UTC().Format("2006-01-02")
		perDay[day]++

		if !submission.Passed {
			continue
		}
		if _, seen := solved[submission.ProblemID]; seen {
			continue
		}
		solved[submission.ProblemID] = struct{}{}
		if submission.Problem.Difficulty != "" {
			byDifficulty[submission.Problem.Difficulty]++
		}
	}

	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	sort.Strings(days)

	series := make([]dto.DailySubmissionCount, 0, len(days))
	for _, day := range days {
		series = append(series, dto.DailySubmissionCount{Date: day, Count: perDay[day]})
	}

	total := int64(len(submissions))
	solvedCount := int64(len(solved))

	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(solvedCount)/float64(total)*1000) / 10
	}

	return dto.UserStatsResponse{
		TotalSubmissions:   total,
		SolvedProblems:     solvedCount,
		SuccessRate:        rate,
		SolvedByDifficulty: byDifficulty,
		SubmissionsPerDay:  series,
	}
}

func (s *statsService) ListSubmissions(ctx context.Context, userID uint, limit int) ([]dto.SubmissionResponse, error) {
	if limit <= 0 {
		limit = defaultSubmissionLimit
	}
	if limit > maxSubmissionLimit {
		limit = maxSubmissionLimit
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{UserID: &userID, Limit: limit})
	if err != nil {
		return nil, err
	}

	items := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		items = append(items, dto.NewSubmissionResponse(submission))
	}
	return items, nil
}

func (s *statsService) Invalidate(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey(userID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to invalidate stats cache")
	}
}

func (s *statsService) Overview(ctx context.Context) (dto.AdminOverviewResponse, error) {
	students, err := s.users.CountStudents(ctx)
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}
	problems, err := s.problems.Count(ctx)
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}
	submissions, err := s.submissions.Count(ctx)
	if err != nil {
		return dto.AdminOverviewResponse{}, err
	}

	return dto.AdminOverviewResponse{
		Students:    students,
		Problems:    problems,
		Submissions: submissions,
	}, nil
}
