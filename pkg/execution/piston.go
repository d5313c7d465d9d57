package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	pistonBackend      = "piston"
	maxPistonBodyBytes = 8 << 20
)

// PistonConfig configures the Piston HTTP client.
type PistonConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// PistonClient executes code through a Piston compatible HTTP API.
type PistonClient struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
	tracer   trace.Tracer
	logger   zerolog.Logger
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
	Stdin    string       `json:"stdin"`
}

type pistonStage struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
	Code   *int   `json:"code"`
	Signal string `json:"signal"`
}

type pistonResponse struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Run      *pistonStage `json:"run"`
	Compile  *pistonStage `json:"compile"`
	Message  string       `json:"message"`
}

// NewPistonClient builds a client for the given base URL, e.g. https://emkc.org/api/v2/piston.
func NewPistonClient(cfg PistonConfig) (*PistonClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("piston base url is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &PistonClient{
		endpoint: base + "/execute",
		timeout:  cfg.Timeout,
		http:     httpClient,
		tracer:   otel.Tracer("github.com/noah-isme/campuscode-api/pkg/execution"),
		logger:   cfg.Logger.With().Str("component", "piston_client").Logger(),
	}, nil
}

// Execute sends one program and stdin to the service. It never retries.
func (c *PistonClient) Execute(parent context.Context, req Request) (Result, error) {
	language := NormalizeLanguage(req.Language)
	if language == "" {
		return Result{}, ErrUnsupportedLanguage
	}

	ctx, span := c.tracer.Start(parent, "execution.piston.execute", trace.WithAttributes(
		attribute.String("execution.language", language),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(pistonRequest{
		Language: language,
		Version:  "*",
		Files:    []pistonFile{{Content: req.Source}},
		Stdin:    req.Stdin,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode piston request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build piston request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, c.transportError(ctx, span, language, timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPistonBodyBytes))
	if err != nil {
		return Result{}, c.transportError(ctx, span, language, timeout, err)
	}

	duration := time.Since(start)
	execDuration.WithLabelValues(pistonBackend, language).Observe(duration.Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	var decoded pistonResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		execFailures.WithLabelValues(pistonBackend, language).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode response")
		if resp.StatusCode >= http.StatusInternalServerError {
			return Result{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if decoded.Run == nil {
		execFailures.WithLabelValues(pistonBackend, language).Inc()
		message := strings.TrimSpace(decoded.Message)
		if message == "" {
			message = fmt.Sprintf("status %d without run result", resp.StatusCode)
		}
		span.SetStatus(codes.Error, message)
		if resp.StatusCode >= http.StatusInternalServerError {
			return Result{}, fmt.Errorf("%w: %s", ErrUnavailable, message)
		}
		return Result{}, fmt.Errorf("%w: %s", ErrMalformedResponse, message)
	}

	if compile := decoded.Compile; compile != nil && stageExitCode(compile) != 0 {
		return Result{
			Stage:    StageCompile,
			ExitCode: stageExitCode(compile),
			Stdout:   compile.Stdout,
			Stderr:   compile.Stderr,
			Signal:   compile.Signal,
			Duration: duration,
		}, nil
	}

	result := Result{
		Stage:    StageRun,
		ExitCode: stageExitCode(decoded.Run),
		Stdout:   decoded.Run.Stdout,
		Stderr:   decoded.Run.Stderr,
		Signal:   decoded.Run.Signal,
		Duration: duration,
	}

	c.logger.Debug().
		Str("language", language).
		Int("exit_code", result.ExitCode).
		Dur("duration", duration).
		Msg("piston execution finished")

	return result, nil
}

func (c *PistonClient) transportError(ctx context.Context, span trace.Span, language string, timeout time.Duration, err error) error {
	span.RecordError(err)
	if isTimeout(ctx, err) {
		execTimeouts.WithLabelValues(pistonBackend, language).Inc()
		span.SetStatus(codes.Error, "execution timed out")
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}

	execFailures.WithLabelValues(pistonBackend, language).Inc()
	span.SetStatus(codes.Error, err.Error())
	c.logger.Warn().Err(err).Str("language", language).Msg("piston request failed")
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// stageExitCode maps a missing exit code (process killed by a signal) to -1.
func stageExitCode(stage *pistonStage) int {
	if stage.Code == nil {
		return -1
	}
	return *stage.Code
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
