package dto

import (
	"time"

	"github.com/noah-isme/campuscode-api/internal/models"
)

// DailySubmissionCount is one bucket of the submissions-per-day series.
type DailySubmissionCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// UserStatsResponse aggregates a user's ledger.
type UserStatsResponse struct {
	TotalSubmissions   int64                  `json:"total_submissions"`
	SolvedProblems     int64                  `json:"solved_problems"`
	SuccessRate        float64                `json:"success_rate"`
	SolvedByDifficulty map[string]int64       `json:"solved_by_difficulty"`
	SubmissionsPerDay  []DailySubmissionCount `json:"submissions_per_day"`
	GeneratedAt        time.Time              `json:"generated_at"`
}

// SubmissionResponse is a ledger entry returned to its owner.
type SubmissionResponse struct {
	ID           uint                   `json:"id"`
	ProblemID    uint                   `json:"problem_id"`
	ProblemTitle string                 `json:"problem_title"`
	Language     string                 `json:"language"`
	Code         string                 `json:"code"`
	Passed       bool                   `json:"passed"`
	Verdict      string                 `json:"verdict"`
	Details      map[string]interface{} `json:"details,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// AdminOverviewResponse summarises platform totals for administrators.
type AdminOverviewResponse struct {
	Students    int64 `json:"students"`
	Problems    int64 `json:"problems"`
	Submissions int64 `json:"submissions"`
}

// NewSubmissionResponse converts a ledger entry into a DTO.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	details := map[string]interface{}(nil)
	if submission.Details != nil {
		details = map[string]interface{}(submission.Details)
	}

	return SubmissionResponse{
		ID:           submission.ID,
		ProblemID:    submission.ProblemID,
		ProblemTitle: submission.Problem.Title,
		Language:     submission.Language,
		Code:         submission.Code,
		Passed:       submission.Passed,
		Verdict:      submission.Verdict,
		Details:      details,
		CreatedAt:    submission.CreatedAt,
	}
}
