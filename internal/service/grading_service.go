package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/campuscode-api/internal/dto"
	"github.com/noah-isme/campuscode-api/internal/models"
	"github.com/noah-isme/campuscode-api/internal/observability"
	"github.com/noah-isme/campuscode-api/internal/repository"
	"github.com/noah-isme/campuscode-api/pkg/execution"
)

const (
	unknownErrorDetails = "Unknown Error"
	maxStoredStderr     = 2000
)

// GradingConfig holds the grading knobs read from configuration.
type GradingConfig struct {
	ExecutionTimeout    time.Duration
	RecordRuntimeErrors bool
	Languages           []string
}

// RankRecomputer is notified after a first solve changed a user's xp.
type RankRecomputer interface {
	Recompute(ctx context.Context) (dto.RecomputeResponse, error)
}

// StatsInvalidator drops cached statistics after a ledger write.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userID uint)
}

// GradingService grades submissions against problem test cases.
type GradingService interface {
	Grade(ctx context.Context, userID, problemID uint, payload dto.GradeRequest) (dto.GradeOutcome, error)
	Run(ctx context.Context, payload dto.RunRequest) (dto.RunResult, error)
}

type gradingService struct {
	problems    repository.ProblemRepository
	submissions repository.SubmissionRepository
	executor    execution.Executor
	ranks       RankRecomputer
	stats       StatsInvalidator
	validator   *validator.Validate
	config      GradingConfig
	languages   map[string]struct{}
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewGradingService wires the grading engine. ranks and stats may be nil.
func NewGradingService(problems repository.ProblemRepository, submissions repository.SubmissionRepository, executor execution.Executor, ranks RankRecomputer, stats StatsInvalidator, validate *validator.Validate, logger zerolog.Logger, cfg GradingConfig) GradingService {
	languages := make(map[string]struct{}, len(cfg.Languages))
	for _, language := range cfg.Languages {
		if normalized := execution.NormalizeLanguage(language); normalized != "" {
			languages[normalized] = struct{}{}
		}
	}

	return &gradingService{
		problems:    problems,
		submissions: submissions,
		executor:    executor,
		ranks:       ranks,
		stats:       stats,
		validator:   validate,
		config:      cfg,
		languages:   languages,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/campuscode-api/internal/service/grading"),
	}
}

func (s *gradingService) Grade(ctx context.Context, userID, problemID uint, payload dto.GradeRequest) (dto.GradeOutcome, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeOutcome{}, err
	}

	language, err := s.resolveLanguage(payload.Language)
	if err != nil {
		return dto.GradeOutcome{}, err
	}

	ctx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.Int("grading.problem_id", int(problemID)),
		attribute.Int("grading.user_id", int(userID)),
		attribute.String("grading.language", language),
	))
	defer span.End()

	problem, err := s.problems.GetByID(ctx, problemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeOutcome{}, ErrProblemNotFound
		}
		return dto.GradeOutcome{}, err
	}

	cases, err := s.problems.ListTestCases(ctx, problemID)
	if err != nil {
		return dto.GradeOutcome{}, fmt.Errorf("load test cases: %w", err)
	}
	if len(cases) == 0 {
		cases = []models.TestCase{models.FallbackTestCase(problem)}
	}

	submission := models.Submission{
		UserID:    userID,
		ProblemID: problem.ID,
		Language:  language,
		Code:      payload.Source,
	}

	outcome := dto.GradeOutcome{Results: make([]dto.CaseResult, 0, len(cases))}

	for idx, tc := range cases {
		position := idx + 1

		result, execErr := s.executor.Execute(ctx, execution.Request{
			Language: language,
			Source:   payload.Source,
			Stdin:    tc.InputData,
			Timeout:  s.config.ExecutionTimeout,
		})
		if execErr != nil {
			outcome = infrastructureOutcome(outcome, execErr)
			s.finish(span, outcome)
			s.logger.Warn().Err(execErr).
				Uint("problem_id", problem.ID).
				Int("position", position).
				Msg("execution failed during grading")
			return outcome, execErr
		}

		if !result.Succeeded() {
			outcome = codeErrorOutcome(outcome, result)
			if s.config.RecordRuntimeErrors {
				submission.Verdict = verdictForKind(outcome.Kind)
				submission.Details = datatypes.JSONMap{
					"failed_position": position,
					"total_cases":     len(cases),
					"passed_cases":    position - 1,
					"exit_code":       result.ExitCode,
					"stderr":          truncate(result.Stderr, maxStoredStderr),
				}
				if err := s.record(ctx, &submission); err != nil {
					return dto.GradeOutcome{}, err
				}
				outcome.SubmissionID = submission.ID
			}
			s.finish(span, outcome)
			return outcome, nil
		}

		if strings.TrimSpace(result.Stdout) != strings.TrimSpace(tc.ExpectedOutput) {
			outcome.Results = append(outcome.Results, failedCase(position, tc, result.Stdout))
			outcome.Status = dto.GradeStatusFailed
			outcome.Message = fmt.Sprintf("Wrong Answer on test case %d.", position)

			submission.Verdict = models.VerdictWrongAnswer
			submission.Details = datatypes.JSONMap{
				"failed_position": position,
				"total_cases":     len(cases),
				"passed_cases":    position - 1,
			}
			if err := s.record(ctx, &submission); err != nil {
				return dto.GradeOutcome{}, err
			}
			outcome.SubmissionID = submission.ID
			s.finish(span, outcome)
			return outcome, nil
		}

		outcome.Results = append(outcome.Results, passedCase(position, tc, result.Stdout))
	}

	submission.Verdict = models.VerdictAccepted
	submission.Details = datatypes.JSONMap{
		"total_cases":  len(cases),
		"passed_cases": len(cases),
	}

	firstSolve, err := s.submissions.RecordAccepted(ctx, &submission, problem.Points)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeOutcome{}, ErrUserNotFound
		}
		span.RecordError(err)
		return dto.GradeOutcome{}, fmt.Errorf("record accepted submission: %w", err)
	}
	s.invalidateStats(ctx, userID)

	outcome.Status = dto.GradeStatusSuccess
	outcome.SubmissionID = submission.ID
	outcome.FirstSolve = firstSolve
	if firstSolve {
		outcome.XPAwarded = problem.Points
		outcome.Message = fmt.Sprintf("Correct Answer! You earned +%d XP.", problem.Points)
		s.recomputeRanks(ctx, userID)
	} else {
		outcome.Message = "Correct Answer! Already solved, no additional XP."
	}

	s.logger.Info().
		Uint("user_id", userID).
		Uint("problem_id", problem.ID).
		Bool("first_solve", firstSolve).
		Msg("submission accepted")

	s.finish(span, outcome)
	return outcome, nil
}

func (s *gradingService) Run(ctx context.Context, payload dto.RunRequest) (dto.RunResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RunResult{}, err
	}

	language, err := s.resolveLanguage(payload.Language)
	if err != nil {
		return dto.RunResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "grading.run", trace.WithAttributes(
		attribute.String("grading.language", language),
	))
	defer span.End()

	result, err := s.executor.Execute(ctx, execution.Request{
		Language: language,
		Source:   payload.Source,
		Stdin:    payload.Stdin,
		Timeout:  s.config.ExecutionTimeout,
	})
	if err != nil {
		outcome := infrastructureOutcome(dto.GradeOutcome{}, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome.Kind)
		return dto.RunResult{
			Status:    dto.GradeStatusError,
			Kind:      outcome.Kind,
			Message:   outcome.Message,
			Retryable: outcome.Retryable,
		}, err
	}

	response := dto.RunResult{
		Status:   dto.GradeStatusSuccess,
		Stage:    string(result.Stage),
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	}
	if !result.Succeeded() {
		outcome := codeErrorOutcome(dto.GradeOutcome{}, result)
		response.Status = dto.GradeStatusError
		response.Kind = outcome.Kind
		response.Message = outcome.Message
	}
	return response, nil
}

func (s *gradingService) resolveLanguage(raw string) (string, error) {
	language := execution.NormalizeLanguage(raw)
	if language == "" {
		return "", ErrUnsupportedLanguage
	}
	if len(s.languages) > 0 {
		if _, ok := s.languages[language]; !ok {
			return "", ErrUnsupportedLanguage
		}
	}
	return language, nil
}

func (s *gradingService) record(ctx context.Context, submission *models.Submission) error {
	if err := s.submissions.Create(ctx, submission); err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	s.invalidateStats(ctx, submission.UserID)
	return nil
}

func (s *gradingService) invalidateStats(ctx context.Context, userID uint) {
	if s.stats != nil {
		s.stats.Invalidate(ctx, userID)
	}
}

// recomputeRanks runs after the award has committed; a failure here does not
// undo the accepted submission.
func (s *gradingService) recomputeRanks(ctx context.Context, userID uint) {
	if s.ranks == nil {
		return
	}
	if _, err := s.ranks.Recompute(ctx); err != nil {
		s.logger.Error().Err(err).Uint("user_id", userID).Msg("rank recompute after first solve failed")
	}
}

func (s *gradingService) finish(span trace.Span, outcome dto.GradeOutcome) {
	kind := outcome.Kind
	if kind == "" {
		kind = "none"
	}
	observability.GradingOutcomes().WithLabelValues(outcome.Status, kind).Inc()

	span.SetAttributes(attribute.String("grading.status", outcome.Status))
	if outcome.Status == dto.GradeStatusError {
		span.SetStatus(codes.Error, kind)
	}
}

func infrastructureOutcome(outcome dto.GradeOutcome, err error) dto.GradeOutcome {
	outcome.Status = dto.GradeStatusError
	outcome.Details = err.Error()

	switch {
	case errors.Is(err, execution.ErrTimeout):
		outcome.Kind = dto.ErrorKindTimeout
		outcome.Message = "Execution timed out."
		outcome.Retryable = true
	case errors.Is(err, execution.ErrUnavailable):
		outcome.Kind = dto.ErrorKindServiceUnavailable
		outcome.Message = "Execution service is unavailable."
		outcome.Retryable = true
	default:
		outcome.Kind = dto.ErrorKindServiceError
		outcome.Message = "Execution service returned an invalid response."
	}
	return outcome
}

func codeErrorOutcome(outcome dto.GradeOutcome, result execution.Result) dto.GradeOutcome {
	outcome.Status = dto.GradeStatusError
	outcome.Kind = dto.ErrorKindRuntime
	outcome.Message = "Runtime Error"
	if result.Stage == execution.StageCompile {
		outcome.Kind = dto.ErrorKindCompilation
		outcome.Message = "Compilation Error"
	}

	outcome.Details = result.Stderr
	if strings.TrimSpace(outcome.Details) == "" {
		outcome.Details = unknownErrorDetails
	}
	return outcome
}

func verdictForKind(kind string) string {
	if kind == dto.ErrorKindCompilation {
		return models.VerdictCompilationError
	}
	return models.VerdictRuntimeError
}

func passedCase(position int, tc models.TestCase, actual string) dto.CaseResult {
	entry := dto.CaseResult{Position: position, Status: dto.CaseStatusPassed}
	if !tc.IsHidden {
		entry.Input = tc.InputData
		entry.Expected = tc.ExpectedOutput
		entry.Actual = actual
	}
	return entry
}

// failedCase never echoes a hidden case's input or expected text, including
// through an actual output that contains either of them.
func failedCase(position int, tc models.TestCase, actual string) dto.CaseResult {
	entry := dto.CaseResult{
		Position: position,
		Status:   dto.CaseStatusFailed,
		Input:    tc.InputData,
		Expected: tc.ExpectedOutput,
		Actual:   actual,
	}
	if !tc.IsHidden {
		return entry
	}

	entry.Input = dto.HiddenInputPlaceholder
	entry.Expected = dto.HiddenExpectedPlaceholder
	if leaks(actual, tc.InputData) || leaks(actual, tc.ExpectedOutput) {
		entry.Actual = ""
	}
	return entry
}

func leaks(actual, secret string) bool {
	secret = strings.TrimSpace(secret)
	return secret != "" && strings.Contains(actual, secret)
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	for limit > 0 && !utf8.RuneStart(value[limit]) {
		limit--
	}
	return value[:limit]
}
