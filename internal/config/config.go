package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Execution backends.
const (
	BackendPiston = "piston"
	BackendDocker = "docker"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	DBMaxOpenConns      int
	DBMaxIdleConns      int
	DBConnMaxLifetime   time.Duration
	CORSOrigins         []string
	RedisURL            string
	NATSURL             string
	LeaderboardSubject  string
	JWTSecret           string
	ExecutionBackend    string
	PistonURL           string
	ExecutionTimeout    time.Duration
	Languages           []string
	RecordRuntimeErrors bool
	LeaderboardCacheTTL time.Duration
	StatsCacheTTL       time.Duration
	SubmitRateLimit     int
	SubmitRateWindow    time.Duration
	DockerHost          string
	CodeRunMemoryMB     int
	CodeRunCPUShares    int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CAMPUSCODE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "CampusCode API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("http.cors_origins", "*")
	v.SetDefault("nats.subject", "leaderboard.updated")
	v.SetDefault("execution.backend", BackendPiston)
	v.SetDefault("execution.piston_url", "https://emkc.org/api/v2/piston")
	v.SetDefault("execution.timeout", "5s")
	v.SetDefault("execution.languages", "python,javascript,java,c,c++,go")
	v.SetDefault("grading.record_runtime_errors", true)
	v.SetDefault("leaderboard.cache_ttl", "1m")
	v.SetDefault("stats.cache_ttl", "5m")
	v.SetDefault("submit.rate_limit", 10)
	v.SetDefault("submit.rate_window", "1m")
	v.SetDefault("code_run_memory_mb", 256)
	v.SetDefault("code_run_cpu_shares", 512)

	durations := map[string]time.Duration{}
	for _, key := range []string{"database.conn_max_lifetime", "execution.timeout", "leaderboard.cache_ttl", "stats.cache_ttl", "submit.rate_window"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		DBMaxOpenConns:      v.GetInt("database.max_open_conns"),
		DBMaxIdleConns:      v.GetInt("database.max_idle_conns"),
		DBConnMaxLifetime:   durations["database.conn_max_lifetime"],
		CORSOrigins:         splitOrigins(v.GetString("http.cors_origins")),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		LeaderboardSubject:  v.GetString("nats.subject"),
		JWTSecret:           v.GetString("jwt.secret"),
		ExecutionBackend:    strings.ToLower(strings.TrimSpace(v.GetString("execution.backend"))),
		PistonURL:           v.GetString("execution.piston_url"),
		ExecutionTimeout:    durations["execution.timeout"],
		Languages:           splitList(v.GetString("execution.languages")),
		RecordRuntimeErrors: v.GetBool("grading.record_runtime_errors"),
		LeaderboardCacheTTL: durations["leaderboard.cache_ttl"],
		StatsCacheTTL:       durations["stats.cache_ttl"],
		SubmitRateLimit:     v.GetInt("submit.rate_limit"),
		SubmitRateWindow:    durations["submit.rate_window"],
		DockerHost:          v.GetString("docker_host"),
		CodeRunMemoryMB:     v.GetInt("code_run_memory_mb"),
		CodeRunCPUShares:    v.GetInt("code_run_cpu_shares"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.ExecutionBackend {
	case BackendPiston, BackendDocker:
	default:
		return Config{}, fmt.Errorf("unknown execution backend %q", cfg.ExecutionBackend)
	}

	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 5 * time.Second
	}

	if cfg.CodeRunMemoryMB <= 0 {
		cfg.CodeRunMemoryMB = 256
	}

	if cfg.CodeRunCPUShares <= 0 {
		cfg.CodeRunCPUShares = 512
	}

	return cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func splitOrigins(value string) []string {
	parts := strings.Split(value, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
