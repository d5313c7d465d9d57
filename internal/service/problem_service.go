package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campuscode-api/internal/dto"
	"github.com/noah-isme/campuscode-api/internal/models"
	"github.com/noah-isme/campuscode-api/internal/repository"
)

// ProblemService exposes the problem catalogue.
type ProblemService interface {
	List(ctx context.Context, userID uint, filter dto.ProblemFilter) (dto.ProblemListResponse, error)
	Get(ctx context.Context, userID, id uint) (dto.ProblemDetailResponse, error)
	Create(ctx context.Context, payload dto.ProblemCreateRequest) (dto.ProblemDetailResponse, error)
}

type problemService struct {
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	strict      *bluemonday.Policy
	rich        *bluemonday.Policy
	logger      zerolog.Logger
}

// NewProblemService builds the catalogue service.
func NewProblemService(problems repository.ProblemRepository, submissions repository.SubmissionRepository, validate *validator.Validate, logger zerolog.Logger) ProblemService {
	return &problemService{
		problems:    problems,
		submissions: submissions,
		validator:   validate,
		strict:      bluemonday.StrictPolicy(),
		rich:        bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "problem_service").Logger(),
	}
}

func (s *problemService) List(ctx context.Context, userID uint, filter dto.ProblemFilter) (dto.ProblemListResponse, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := repository.ProblemQuery{
		Difficulty: strings.TrimSpace(filter.Difficulty),
		Tags:       normaliseTags(filter.Tags),
		Search:     strings.TrimSpace(filter.Search),
		Offset:     (page - 1) * pageSize,
		Limit:      pageSize,
	}

	problems, total, err := s.problems.List(ctx, query)
	if err != nil {
		return dto.ProblemListResponse{}, err
	}

	solved, err := s.solvedSet(ctx, userID)
	if err != nil {
		return dto.ProblemListResponse{}, err
	}

	pagination := dto.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: int(total),
	}

	return dto.NewProblemListResponse(problems, solved, pagination), nil
}

func (s *problemService) Get(ctx context.Context, userID, id uint) (dto.ProblemDetailResponse, error) {
	problem, err := s.problems.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProblemDetailResponse{}, ErrProblemNotFound
		}
		return dto.ProblemDetailResponse{}, err
	}

	cases, err := s.problems.ListTestCases(ctx, id)
	if err != nil {
		return dto.ProblemDetailResponse{}, err
	}

	solved := false
	if userID != 0 {
		solved, err = s.submissions.HasPassed(ctx, userID, id)
		if err != nil {
			return dto.ProblemDetailResponse{}, err
		}
	}

	return dto.NewProblemDetail(problem, cases, solved), nil
}

// Create stores a problem. Without explicit cases the sample becomes the single
// visible case.
func (s *problemService) Create(ctx context.Context, payload dto.ProblemCreateRequest) (dto.ProblemDetailResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProblemDetailResponse{}, err
	}

	problem := models.Problem{
		Title:        strings.TrimSpace(s.strict.Sanitize(payload.Title)),
		Difficulty:   payload.Difficulty,
		Points:       payload.Points,
		Tags:         strings.Join(normaliseTags(payload.Tags), ","),
		Statement:    s.rich.Sanitize(payload.Statement),
		InputFormat:  s.rich.Sanitize(payload.InputFormat),
		OutputFormat: s.rich.Sanitize(payload.OutputFormat),
		Constraints:  s.rich.Sanitize(payload.Constraints),
		SampleInput:  payload.SampleInput,
		SampleOutput: payload.SampleOutput,
	}

	cases := make([]models.TestCase, 0, len(payload.TestCases)+1)
	for _, tc := range payload.TestCases {
		cases = append(cases, models.TestCase{
			InputData:      tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			IsHidden:       tc.Hidden,
		})
	}
	if len(cases) == 0 {
		cases = append(cases, models.TestCase{
			InputData:      problem.SampleInput,
			ExpectedOutput: problem.SampleOutput,
		})
	}

	if err := s.problems.Create(ctx, &problem, cases); err != nil {
		return dto.ProblemDetailResponse{}, err
	}

	s.logger.Info().
		Uint("problem_id", problem.ID).
		Str("difficulty", problem.Difficulty).
		Int("test_cases", len(cases)).
		Msg("problem created")

	return dto.NewProblemDetail(problem, problem.TestCases, false), nil
}

func (s *problemService) solvedSet(ctx context.Context, userID uint) (map[uint]struct{}, error) {
	solved := make(map[uint]struct{})
	if userID == 0 {
		return solved, nil
	}

	ids, err := s.submissions.SolvedProblemIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		solved[id] = struct{}{}
	}
	return solved, nil
}

func normaliseTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.ToLower(strings.TrimSpace(tag))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
