package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CAMPUSCODE_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendPiston, cfg.ExecutionBackend)
	require.Equal(t, "https://emkc.org/api/v2/piston", cfg.PistonURL)
	require.Equal(t, 5*time.Second, cfg.ExecutionTimeout)
	require.True(t, cfg.RecordRuntimeErrors)
	require.Contains(t, cfg.Languages, "python")
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, []string{"*"}, cfg.CORSOrigins)
	require.Equal(t, 30*time.Minute, cfg.DBConnMaxLifetime)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CAMPUSCODE_JWT_SECRET", "secret")
	t.Setenv("CAMPUSCODE_EXECUTION_TIMEOUT", "2500ms")
	t.Setenv("CAMPUSCODE_EXECUTION_LANGUAGES", " Python , GO ")
	t.Setenv("CAMPUSCODE_GRADING_RECORD_RUNTIME_ERRORS", "false")
	t.Setenv("CAMPUSCODE_EXECUTION_BACKEND", "Docker")
	t.Setenv("CAMPUSCODE_HTTP_CORS_ORIGINS", "https://campus.test, https://Admin.campus.test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2500*time.Millisecond, cfg.ExecutionTimeout)
	require.Equal(t, []string{"python", "go"}, cfg.Languages)
	require.False(t, cfg.RecordRuntimeErrors)
	require.Equal(t, BackendDocker, cfg.ExecutionBackend)
	require.Equal(t, []string{"https://campus.test", "https://Admin.campus.test"}, cfg.CORSOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("CAMPUSCODE_JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("CAMPUSCODE_JWT_SECRET", "secret")
	t.Setenv("CAMPUSCODE_STATS_CACHE_TTL", "forever")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("CAMPUSCODE_STATS_CACHE_TTL", "1m")
	t.Setenv("CAMPUSCODE_EXECUTION_BACKEND", "lambda")
	_, err = Load()
	require.Error(t, err)
}
