package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "sprintsync.yaml"

// CLIFlags holds command-line flag values. Nil pointers indicate unset flags
// that should not override the config. Use ParseFlags to populate this struct.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	DSN        *string
}

// ParseFlags parses command-line arguments into CLIFlags.
// Call this before Load/LoadWithCLI. Passing nil args parses os.Args[1:].
func ParseFlags(args []string) (CLIFlags, error) {
	var flags CLIFlags

	fs := flag.NewFlagSet("sprintsync", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	fs.StringVar(configPath, "c", "", "path to YAML config file (shorthand)")
	port := fs.String("port", "", "HTTP server port")
	fs.StringVar(port, "p", "", "HTTP server port (shorthand)")
	logLevel := fs.String("log-level", "", "logging level (debug, info, warn, error)")
	dsn := fs.String("dsn", "", "PostgreSQL connection string")

	if err := fs.Parse(args); err != nil {
		return flags, fmt.Errorf("parse flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = configPath
		case "port", "p":
			flags.Port = port
		case "log-level":
			flags.LogLevel = logLevel
		case "dsn":
			flags.DSN = dsn
		}
	})

	return flags, nil
}

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadWithCLI returns a Config using the full hierarchy:
// defaults < YAML < ENV < CLI flags. The YAML path can be overridden
// via CLIFlags.ConfigPath.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	yamlPath := DefaultConfigFile
	if flags.ConfigPath != nil {
		yamlPath = *flags.ConfigPath
	}

	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, "", fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, "", fmt.Errorf("config validate: %w", err)
	}

	return &cfg, yamlPath, nil
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// applyCLI overlays CLI flag values onto cfg. Only non-nil flags override.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SPRINTSYNC_PORT")
	setString(&cfg.Server.CORSOrigin, "SPRINTSYNC_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SPRINTSYNC_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SPRINTSYNC_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SPRINTSYNC_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SPRINTSYNC_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SPRINTSYNC_PG_HEALTH_CHECK")

	setString(&cfg.Logging.Level, "SPRINTSYNC_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SPRINTSYNC_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SPRINTSYNC_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "SPRINTSYNC_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SPRINTSYNC_BREAKER_TIMEOUT")

	setInt(&cfg.Rate.MaxRequestsPerWindow, "SPRINTSYNC_RATE_MAX_REQUESTS")
	setInt(&cfg.Rate.WindowSeconds, "SPRINTSYNC_RATE_WINDOW_SECONDS")
	setInt(&cfg.Rate.Reserve, "SPRINTSYNC_RATE_RESERVE")

	setString(&cfg.Forge.BaseURL, "SPRINTSYNC_FORGE_BASE_URL")
	setString(&cfg.Forge.Token, "SPRINTSYNC_FORGE_TOKEN")
	setString(&cfg.Forge.APIVersion, "SPRINTSYNC_FORGE_API_VERSION")
	setDuration(&cfg.Forge.ProbeTimeout, "SPRINTSYNC_FORGE_PROBE_TIMEOUT")
	setDuration(&cfg.Forge.CallTimeout, "SPRINTSYNC_FORGE_CALL_TIMEOUT")
	setInt(&cfg.Forge.RetryAttempts, "SPRINTSYNC_FORGE_RETRY_ATTEMPTS")
	setDuration(&cfg.Forge.RetryBackoff, "SPRINTSYNC_FORGE_RETRY_BACKOFF")

	setInt(&cfg.Sync.MaxWorkers, "SPRINTSYNC_MAX_WORKERS")
	setInt(&cfg.Sync.MaxConcurrentPerTeam, "SPRINTSYNC_MAX_CONCURRENT_PER_TEAM")
	setString(&cfg.Sync.IgnorePatternsFile, "SPRINTSYNC_IGNORE_PATTERNS_FILE")
	setDuration(&cfg.Sync.ProgressPollInterval, "SPRINTSYNC_PROGRESS_POLL_INTERVAL")
	setDuration(&cfg.Sync.ProgressHeartbeat, "SPRINTSYNC_PROGRESS_HEARTBEAT")
	setDuration(&cfg.Sync.ProgressTimeout, "SPRINTSYNC_PROGRESS_TIMEOUT")
	setDuration(&cfg.Sync.UpdateProbeCacheTTL, "SPRINTSYNC_UPDATE_PROBE_CACHE_TTL")

	setInt(&cfg.Sprint.DurationDays, "SPRINTSYNC_SPRINT_DURATION_DAYS")
	setInt(&cfg.Sprint.SignificantCommitMinLines, "SPRINTSYNC_SPRINT_SIGNIFICANT_MIN_LINES")
	setInt(&cfg.Sprint.AllModeCommitLimit, "SPRINTSYNC_SPRINT_ALL_MODE_LIMIT")
	setInt(&cfg.Sprint.AllModeMaxDays, "SPRINTSYNC_SPRINT_ALL_MODE_MAX_DAYS")

	setBool(&cfg.OTEL.Enabled, "SPRINTSYNC_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "SPRINTSYNC_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "SPRINTSYNC_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "SPRINTSYNC_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "SPRINTSYNC_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set and internally consistent.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.MaxRequestsPerWindow <= cfg.Rate.Reserve {
		return errors.New("rate.max_requests_per_window must exceed rate.reserve")
	}
	if cfg.Rate.WindowSeconds < 1 {
		return errors.New("rate.window_seconds must be >= 1")
	}
	if cfg.Sync.MaxWorkers < 1 {
		return errors.New("sync.max_workers must be >= 1")
	}
	if cfg.Sync.MaxConcurrentPerTeam < 1 {
		return errors.New("sync.max_concurrent_per_team must be >= 1")
	}
	if cfg.Sprint.DurationDays < 1 {
		return errors.New("sprint.duration_days must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
