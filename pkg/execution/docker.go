package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	dockerBackend    = "docker"
	stdinFileName    = "stdin.txt"
	containerWorkDir = "/workspace"
)

// DockerRuntime describes how one language is run inside a container.
type DockerRuntime struct {
	Image    string
	FileName string
	Run      string
}

// DefaultDockerRuntimes covers the languages offered by the platform.
func DefaultDockerRuntimes() map[string]DockerRuntime {
	return map[string]DockerRuntime{
		"python": {
			Image:    "python:3.11-alpine",
			FileName: "main.py",
			Run:      "python main.py",
		},
		"javascript": {
			Image:    "node:20-alpine",
			FileName: "main.js",
			Run:      "node main.js",
		},
		"go": {
			Image:    "golang:1.22-alpine",
			FileName: "main.go",
			Run:      "go run main.go",
		},
		"c++": {
			Image:    "gcc:13",
			FileName: "main.cpp",
			Run:      "g++ -O2 -o /tmp/main main.cpp && /tmp/main",
		},
	}
}

// DockerConfig groups docker backend configuration values.
type DockerConfig struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	WorkspaceRoot string
	Runtimes      map[string]DockerRuntime
	Logger        zerolog.Logger
}

// DockerExecutor runs submissions in throwaway containers on a local Docker engine.
type DockerExecutor struct {
	client *client.Client
	cfg    DockerConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerExecutor constructs a Docker backed executor.
func NewDockerExecutor(cfg DockerConfig) (*DockerExecutor, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if len(cfg.Runtimes) == 0 {
		cfg.Runtimes = DefaultDockerRuntimes()
	}

	return &DockerExecutor{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/campuscode-api/pkg/execution"),
		logger: cfg.Logger.With().Str("component", "docker_executor").Logger(),
	}, nil
}

// Execute runs the source with stdin redirected from a file in the mounted workspace.
func (e *DockerExecutor) Execute(parent context.Context, req Request) (Result, error) {
	language := NormalizeLanguage(req.Language)
	runtime, ok := e.cfg.Runtimes[language]
	if !ok {
		return Result{}, ErrUnsupportedLanguage
	}

	ctx, span := e.tracer.Start(parent, "execution.docker.execute", trace.WithAttributes(
		attribute.String("docker.image", runtime.Image),
		attribute.String("execution.language", language),
	))
	defer span.End()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workspace, err := os.MkdirTemp(e.cfg.WorkspaceRoot, "execution-")
	if err != nil {
		return Result{}, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, runtime.FileName), []byte(req.Source), 0o644); err != nil {
		return Result{}, fmt.Errorf("write source: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, stdinFileName), []byte(req.Stdin), 0o644); err != nil {
		return Result{}, fmt.Errorf("write stdin: %w", err)
	}

	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    e.cfg.MemoryLimitMB * 1024 * 1024,
			CPUShares: e.cfg.CPUShares,
		},
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: workspace,
			Target: containerWorkDir,
		}},
	}

	containerCfg := &container.Config{
		Image:        runtime.Image,
		Cmd:          []string{"sh", "-c", fmt.Sprintf("%s < %s/%s", runtime.Run, containerWorkDir, stdinFileName)},
		WorkingDir:   containerWorkDir,
		AttachStdout: true,
		AttachStderr: true,
	}

	start := time.Now()
	result := Result{Stage: StageRun}

	resp, err := e.client.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return result, e.engineError(span, language, fmt.Errorf("container create: %w", err))
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	// The wait must be registered before start or a fast exit is missed.
	statusCh, errCh := e.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)

	if err := e.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return result, e.engineError(span, language, fmt.Errorf("container start: %w", err))
	}

	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	result.Duration = time.Since(start)
	execDuration.WithLabelValues(dockerBackend, language).Observe(result.Duration.Seconds())

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			execTimeouts.WithLabelValues(dockerBackend, language).Inc()
			killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := e.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
				e.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
			}
			span.RecordError(waitErr)
			span.SetStatus(codes.Error, "execution timed out")
			return result, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return result, e.engineError(span, language, fmt.Errorf("container wait: %w", waitErr))
	}

	logReader, err := e.client.ContainerLogs(parent, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return result, e.engineError(span, language, fmt.Errorf("container logs: %w", err))
	}
	defer logReader.Close()

	stdout, stderr, err := splitDockerLogs(logReader)
	if err != nil {
		return result, e.engineError(span, language, fmt.Errorf("read container logs: %w", err))
	}
	result.Stdout = stdout
	result.Stderr = stderr

	return result, nil
}

func (e *DockerExecutor) engineError(span trace.Span, language string, err error) error {
	execFailures.WithLabelValues(dockerBackend, language).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func splitDockerLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the executor's underlying client.
func (e *DockerExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
