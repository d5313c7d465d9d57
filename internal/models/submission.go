package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission verdicts recorded in the ledger.
const (
	VerdictAccepted         = "accepted"
	VerdictWrongAnswer      = "wrong_answer"
	VerdictRuntimeError     = "runtime_error"
	VerdictCompilationError = "compilation_error"
)

// Submission is an append-only ledger entry describing one grading attempt.
type Submission struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"not null;index:idx_submissions_user_problem" json:"user_id"`
	ProblemID uint              `gorm:"not null;index:idx_submissions_user_problem" json:"problem_id"`
	Language  string            `gorm:"size:32;not null" json:"language"`
	Code      string            `gorm:"type:text" json:"code"`
	Passed    bool              `gorm:"not null;default:false" json:"passed"`
	Verdict   string            `gorm:"size:32;not null" json:"verdict"`
	Details   datatypes.JSONMap `json:"details"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
	Problem   Problem           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"problem"`
	User      User              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
