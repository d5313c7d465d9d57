package execution

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	execDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "campuscode",
		Subsystem: "executor",
		Name:      "execution_duration_seconds",
		Help:      "Duration of code executions against the sandbox",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "language"})

	execTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campuscode",
		Subsystem: "executor",
		Name:      "execution_timeouts_total",
		Help:      "Number of executions that hit the timeout",
	}, []string{"backend", "language"})

	execFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campuscode",
		Subsystem: "executor",
		Name:      "execution_failures_total",
		Help:      "Number of executions that could not produce a result",
	}, []string{"backend", "language"})
)

var (
	// ErrUnavailable indicates the execution service could not be reached.
	ErrUnavailable = errors.New("execution service unavailable")
	// ErrTimeout indicates the execution did not finish before the deadline.
	ErrTimeout = errors.New("execution timed out")
	// ErrMalformedResponse indicates the service answered without an execution result.
	ErrMalformedResponse = errors.New("malformed execution response")
	// ErrUnsupportedLanguage indicates the backend has no runtime for the language.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Stage names the step of the run that produced a result.
type Stage string

const (
	StageCompile Stage = "compile"
	StageRun     Stage = "run"
)

// Executor runs a single program against a single stdin.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Request describes one execution.
type Request struct {
	Language string
	Source   string
	Stdin    string
	Timeout  time.Duration
}

// Result is the raw outcome of an execution. Output is never trimmed or rewritten.
type Result struct {
	Stage    Stage
	ExitCode int
	Stdout   string
	Stderr   string
	Signal   string
	Duration time.Duration
}

// Succeeded reports whether the program ran to completion with exit status 0.
func (r Result) Succeeded() bool {
	return r.Stage != StageCompile && r.ExitCode == 0
}

// NormalizeLanguage lower-cases and trims a language identifier.
func NormalizeLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}
