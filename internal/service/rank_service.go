package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/campuscode-api/internal/dto"
	"github.com/noah-isme/campuscode-api/internal/observability"
	"github.com/noah-isme/campuscode-api/internal/repository"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 200
	leaderboardKeyPattern   = "leaderboard:*"
)

// LeaderboardEvent is published after a recomputation rewrote at least one row.
type LeaderboardEvent struct {
	Evaluated int       `json:"evaluated"`
	Updated   int       `json:"updated"`
	At        time.Time `json:"at"`
}

// LeaderboardPublisher broadcasts leaderboard changes to other processes.
type LeaderboardPublisher interface {
	PublishLeaderboardUpdate(ctx context.Context, event LeaderboardEvent) error
}

type natsLeaderboardPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSLeaderboardPublisher publishes leaderboard events on the given subject.
// A nil connection yields a nil publisher.
func NewNATSLeaderboardPublisher(conn *nats.Conn, subject string) LeaderboardPublisher {
	if conn == nil {
		return nil
	}
	if subject == "" {
		subject = "leaderboard.updated"
	}
	return &natsLeaderboardPublisher{conn: conn, subject: subject}
}

func (p *natsLeaderboardPublisher) PublishLeaderboardUpdate(_ context.Context, event LeaderboardEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, payload)
}

// RankService maintains the dense leaderboard derived from user xp.
type RankService interface {
	Recompute(ctx context.Context) (dto.RecomputeResponse, error)
	AwardExperience(ctx context.Context, userID uint, amount int64, reason string) (dto.StandingResponse, error)
	Leaderboard(ctx context.Context, college string, limit int) (dto.LeaderboardResponse, error)
	Standing(ctx context.Context, userID uint) (dto.StandingResponse, error)
}

type rankService struct {
	users     repository.UserRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	publisher LeaderboardPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time

	mu sync.Mutex
}

// NewRankService constructs the rank engine. cache and publisher are optional.
func NewRankService(users repository.UserRepository, cache *redis.Client, ttl time.Duration, publisher LeaderboardPublisher, logger zerolog.Logger) RankService {
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &rankService{
		users:     users,
		cache:     cache,
		cacheTTL:  ttl,
		publisher: publisher,
		logger:    logger.With().Str("component", "rank_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/campuscode-api/internal/service/rank"),
		now:       time.Now,
	}
}

func (s *rankService) Recompute(ctx context.Context) (dto.RecomputeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "rank.recompute")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		observability.RankRecomputeDuration().Observe(time.Since(start).Seconds())
	}()

	users, err := s.users.ListRankable(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list users")
		return dto.RecomputeResponse{}, fmt.Errorf("list rankable users: %w", err)
	}

	changed := ChangedRanks(users, AssignDenseRanks(users))
	if err := s.users.UpdateRanks(ctx, changed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update ranks")
		return dto.RecomputeResponse{}, fmt.Errorf("update ranks: %w", err)
	}

	result := dto.RecomputeResponse{
		Evaluated: len(users),
		Updated:   len(changed),
		At:        s.now().UTC(),
	}
	span.SetAttributes(
		attribute.Int("rank.evaluated", result.Evaluated),
		attribute.Int("rank.updated", result.Updated),
	)

	// Cached entries carry xp, so the board goes stale even when no rank moves.
	s.invalidateLeaderboard(ctx)
	if result.Updated > 0 {
		observability.RankUpdates().Add(float64(result.Updated))
		s.publish(ctx, result)
	}

	s.logger.Debug().
		Int("evaluated", result.Evaluated).
		Int("updated", result.Updated).
		Msg("ranks recomputed")

	return result, nil
}

func (s *rankService) AwardExperience(ctx context.Context, userID uint, amount int64, reason string) (dto.StandingResponse, error) {
	if err := s.users.AddXP(ctx, userID, amount); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StandingResponse{}, ErrUserNotFound
		}
		return dto.StandingResponse{}, fmt.Errorf("add xp: %w", err)
	}

	s.logger.Info().
		Uint("user_id", userID).
		Int64("amount", amount).
		Str("reason", reason).
		Msg("experience adjusted")

	if _, err := s.Recompute(ctx); err != nil {
		s.logger.Error().Err(err).Uint("user_id", userID).Msg("rank recompute after xp award failed")
	}

	return s.Standing(ctx, userID)
}

func (s *rankService) Leaderboard(ctx context.Context, college string, limit int) (dto.LeaderboardResponse, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	cacheKey := fmt.Sprintf("leaderboard:global:%d", limit)
	if college != "" {
		cacheKey = fmt.Sprintf("leaderboard:college:%s:%d", college, limit)
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.LeaderboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
	}

	users, err := s.users.ListLeaderboard(ctx, repository.LeaderboardQuery{College: college, Limit: limit})
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	response := dto.NewLeaderboardResponse(users, college)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
			}
		}
	}

	return response, nil
}

func (s *rankService) Standing(ctx context.Context, userID uint) (dto.StandingResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StandingResponse{}, ErrUserNotFound
		}
		return dto.StandingResponse{}, err
	}
	return dto.NewStandingResponse(user), nil
}

func (s *rankService) invalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, leaderboardKeyPattern, 100).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to scan leaderboard cache")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}
}

func (s *rankService) publish(ctx context.Context, result dto.RecomputeResponse) {
	if s.publisher == nil {
		return
	}
	event := LeaderboardEvent{Evaluated: result.Evaluated, Updated: result.Updated, At: result.At}
	if err := s.publisher.PublishLeaderboardUpdate(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish leaderboard update")
	}
}
