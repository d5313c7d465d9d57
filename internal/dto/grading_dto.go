package dto

// Grade outcome statuses.
const (
	GradeStatusSuccess = "success"
	GradeStatusFailed  = "failed"
	GradeStatusError   = "error"
)

// Error kinds reported with GradeStatusError.
const (
	ErrorKindRuntime            = "runtime_error"
	ErrorKindCompilation        = "compilation_error"
	ErrorKindTimeout            = "timeout"
	ErrorKindServiceUnavailable = "service_unavailable"
	ErrorKindServiceError       = "service_error"
)

// Per-case result statuses.
const (
	CaseStatusPassed = "Passed"
	CaseStatusFailed = "Failed"
)

// Placeholders shown instead of hidden test case data.
const (
	HiddenInputPlaceholder    = "Hidden Test Case"
	HiddenExpectedPlaceholder = "Hidden"
)

// GradeRequest is the payload for grading a solution against a problem.
type GradeRequest struct {
	Language string `json:"language" validate:"required,max=32"`
	Source   string `json:"source" validate:"required,min=1"`
}

// RunRequest is the payload for a sample-only dry run.
type RunRequest struct {
	Language string `json:"language" validate:"required,max=32"`
	Source   string `json:"source" validate:"required,min=1"`
	Stdin    string `json:"stdin"`
}

// CaseResult describes the outcome of one test case.
type CaseResult struct {
	Position int    `json:"position"`
	Status   string `json:"status"`
	Input    string `json:"input,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// GradeOutcome is the structured result of a grading attempt.
type GradeOutcome struct {
	Status       string       `json:"status"`
	Message      string       `json:"message"`
	Kind         string       `json:"kind,omitempty"`
	Details      string       `json:"details,omitempty"`
	Retryable    bool         `json:"retryable,omitempty"`
	XPAwarded    int64        `json:"xp_awarded"`
	FirstSolve   bool         `json:"first_solve"`
	Results      []CaseResult `json:"results"`
	SubmissionID uint         `json:"submission_id,omitempty"`
}

// RunResult is the raw execution outcome of a dry run.
type RunResult struct {
	Status    string `json:"status"`
	Stage     string `json:"stage,omitempty"`
	ExitCode  int    `json:"exit_code"`
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
