package dto

import (
	"time"

	"github.com/noah-isme/campuscode-api/internal/models"
)

// ProblemFilter defines query parameters for listing problems.
type ProblemFilter struct {
	Difficulty string   `query:"difficulty"`
	Tags       []string `query:"tags"`
	Search     string   `query:"search"`
	Page       int      `query:"page"`
	PageSize   int      `query:"page_size"`
}

// Pagination describes pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
}

// ProblemResponse is a catalogue entry.
type ProblemResponse struct {
	ID         uint     `json:"id"`
	Title      string   `json:"title"`
	Difficulty string   `json:"difficulty"`
	Points     int64    `json:"points"`
	Tags       []string `json:"tags"`
	Solved     bool     `json:"solved"`
}

// SampleCaseResponse exposes a visible test case.
type SampleCaseResponse struct {
	Position       int    `json:"position"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// ProblemDetailResponse extends ProblemResponse with the statement fields.
type ProblemDetailResponse struct {
	ProblemResponse
	Statement    string               `json:"statement"`
	InputFormat  string               `json:"input_format"`
	OutputFormat string               `json:"output_format"`
	Constraints  string               `json:"constraints"`
	SampleInput  string               `json:"sample_input"`
	SampleOutput string               `json:"sample_output"`
	VisibleCases []SampleCaseResponse `json:"visible_cases"`
	HiddenCases  int                  `json:"hidden_cases"`
	CreatedAt    time.Time            `json:"created_at"`
}

// ProblemListResponse wraps problems and pagination metadata.
type ProblemListResponse struct {
	Items      []ProblemResponse `json:"items"`
	Pagination Pagination        `json:"pagination"`
}

// TestCaseInput is an admin-supplied test case.
type TestCaseInput struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output" validate:"required"`
	Hidden         bool   `json:"hidden"`
}

// ProblemCreateRequest is the admin payload for adding a problem.
type ProblemCreateRequest struct {
	Title        string          `json:"title" validate:"required,max=255"`
	Difficulty   string          `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
	Points       int64           `json:"points" validate:"gte=0,lte=10000"`
	Tags         []string        `json:"tags" validate:"dive,max=64"`
	Statement    string          `json:"statement" validate:"required"`
	InputFormat  string          `json:"input_format"`
	OutputFormat string          `json:"output_format"`
	Constraints  string          `json:"constraints"`
	SampleInput  string          `json:"sample_input"`
	SampleOutput string          `json:"sample_output" validate:"required"`
	TestCases    []TestCaseInput `json:"test_cases" validate:"dive"`
}

// NewProblemResponse builds a catalogue DTO from the model.
func NewProblemResponse(problem models.Problem, solved bool) ProblemResponse {
	return ProblemResponse{
		ID:         problem.ID,
		Title:      problem.Title,
		Difficulty: problem.Difficulty,
		Points:     problem.Points,
		Tags:       problem.TagsSlice(),
		Solved:     solved,
	}
}

// NewProblemDetail builds a detail DTO. Hidden cases are only counted.
func NewProblemDetail(problem models.Problem, cases []models.TestCase, solved bool) ProblemDetailResponse {
	visible := make([]SampleCaseResponse, 0, len(cases))
	hidden := 0
	for i, tc := range cases {
		if tc.IsHidden {
			hidden++
			continue
		}
		visible = append(visible, SampleCaseResponse{
			Position:       i + 1,
			Input:          tc.InputData,
			ExpectedOutput: tc.ExpectedOutput,
		})
	}

	return ProblemDetailResponse{
		ProblemResponse: NewProblemResponse(problem, solved),
		Statement:       problem.Statement,
		InputFormat:     problem.InputFormat,
		OutputFormat:    problem.OutputFormat,
		Constraints:     problem.Constraints,
		SampleInput:     problem.SampleInput,
		SampleOutput:    problem.SampleOutput,
		VisibleCases:    visible,
		HiddenCases:     hidden,
		CreatedAt:       problem.CreatedAt,
	}
}

// NewProblemListResponse builds a list response from models and pagination meta.
func NewProblemListResponse(problems []models.Problem, solved map[uint]struct{}, pagination Pagination) ProblemListResponse {
	items := make([]ProblemResponse, 0, len(problems))
	for _, problem := range problems {
		_, ok := solved[problem.ID]
		items = append(items, NewProblemResponse(problem, ok))
	}

	return ProblemListResponse{
		Items:      items,
		Pagination: pagination,
	}
}
