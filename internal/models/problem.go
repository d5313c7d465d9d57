package models

import (
	"strings"
	"time"
)

// Problem difficulty levels.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// Difficulties lists the difficulty levels in ascending order.
var Difficulties = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Problem is a programming exercise graded against its test cases.
type Problem struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	Difficulty   string     `gorm:"size:16;not null;index" json:"difficulty"`
	Points       int64      `gorm:"not null;default:0" json:"points"`
	Tags         string     `gorm:"type:text" json:"tags"`
	Statement    string     `gorm:"type:text" json:"statement"`
	InputFormat  string     `gorm:"type:text" json:"input_format"`
	OutputFormat string     `gorm:"type:text" json:"output_format"`
	Constraints  string     `gorm:"type:text" json:"constraints"`
	SampleInput  string     `gorm:"type:text" json:"sample_input"`
	SampleOutput string     `gorm:"type:text" json:"sample_output"`
	TestCases    []TestCase `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TagsSlice returns the tags as a slice of strings.
func (p Problem) TagsSlice() []string {
	if p.Tags == "" {
		return nil
	}

	parts := strings.Split(p.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// TestCase is one input/expected-output pair of a problem.
type TestCase struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProblemID      uint      `gorm:"not null;index" json:"problem_id"`
	Position       int       `gorm:"not null;default:0" json:"position"`
	InputData      string    `gorm:"type:text" json:"input_data"`
	ExpectedOutput string    `gorm:"type:text" json:"expected_output"`
	IsHidden       bool      `gorm:"not null;default:false" json:"is_hidden"`
	CreatedAt      time.Time `json:"created_at"`
}

// FallbackTestCase builds the visible case used when a problem has no stored
// test cases. The value is never persisted.
func FallbackTestCase(problem Problem) TestCase {
	return TestCase{
		ProblemID:      problem.ID,
		InputData:      problem.SampleInput,
		ExpectedOutput: problem.SampleOutput,
		IsHidden:       false,
	}
}
