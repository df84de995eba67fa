// Package config loads the chatgate configuration: built-in defaults, then an
// optional YAML file, then CHATGATE_* environment overrides. The result is
// validated, including a trial build of the gate chain.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"chatgate/internal/gate"
	"chatgate/internal/models"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHATGATE_"

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := gate.Validate(config.Gates); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// movedConfig mirrors keys that older config files may still carry.
type movedConfig struct {
	Security struct {
		JWTSecret string `yaml:"jwt_secret"`
		RateLimit any    `yaml:"rate_limit"`
		APIKeys   any    `yaml:"api_keys"`
	} `yaml:"security"`
}

// warnMovedKeys logs a warning for each obsolete key in data. The keys are
// otherwise ignored.
func warnMovedKeys(data []byte) {
	var moved movedConfig
	if err := yaml.Unmarshal(data, &moved); err != nil {
		return
	}
	if moved.Security.JWTSecret != "" {
		slog.Warn("Config key is not used; chatgate does not issue tokens.", "config_key", "security.jwt_secret")
	}
	if moved.Security.RateLimit != nil {
		slog.Warn("Config key has moved; use gates.rate_limit and gates.throttle.", "config_key", "security.rate_limit")
	}
	if moved.Security.APIKeys != nil {
		slog.Warn("Config key has moved; declare callers under security.users.", "config_key", "security.api_keys")
	}
}

func loadFromFile(config *models.Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", filePath)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	warnMovedKeys(data)
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func loadFromEnvironment(config *models.Config) {
	// Server
	envInt("PORT", &config.Server.Port)
	envString("HOST", &config.Server.Host)
	envDuration("READ_TIMEOUT", &config.Server.ReadTimeout)
	envDuration("WRITE_TIMEOUT", &config.Server.WriteTimeout)
	envDuration("IDLE_TIMEOUT", &config.Server.IdleTimeout)
	envBool("TLS_ENABLED", &config.Server.TLSEnabled)
	envString("TLS_CERT_FILE", &config.Server.TLSCertFile)
	envString("TLS_KEY_FILE", &config.Server.TLSKeyFile)
	envBool("CORS_ENABLED", &config.Server.CORS.Enabled)
	envList("CORS_ALLOWED_ORIGINS", &config.Server.CORS.AllowedOrigins)

	// Storage
	envString("STORAGE_TYPE", &config.Storage.Type)
	envString("DATABASE_DSN", &config.Storage.Database.DSN)
	envInt("DATABASE_MAX_OPEN_CONNS", &config.Storage.Database.MaxOpenConns)
	envInt("DATABASE_MAX_IDLE_CONNS", &config.Storage.Database.MaxIdleConns)
	envDuration("DATABASE_CONN_MAX_LIFETIME", &config.Storage.Database.ConnMaxLifetime)

	// Security
	envBool("ENABLE_AUTH", &config.Security.EnableAuth)

	// Gates
	envList("GATES_ORDER", &config.Gates.Order)
	envBool("ROLE_GATE_ENABLED", &config.Gates.Role.Enabled)
	envBool("TIME_OF_DAY_ENABLED", &config.Gates.TimeOfDay.Enabled)
	envString("TIME_OF_DAY_START", &config.Gates.TimeOfDay.Start)
	envString("TIME_OF_DAY_END", &config.Gates.TimeOfDay.End)
	envString("TIME_OF_DAY_LOCATION", &config.Gates.TimeOfDay.Location)
	envList("TIME_OF_DAY_PREFIXES", &config.Gates.TimeOfDay.Prefixes)
	envBool("THROTTLE_ENABLED", &config.Gates.Throttle.Enabled)
	envInt("THROTTLE_REQUESTS_PER_MINUTE", &config.Gates.Throttle.RequestsPerMinute)
	envInt("THROTTLE_BURST_SIZE", &config.Gates.Throttle.BurstSize)
	envInt("THROTTLE_AUTH_REQUESTS_PER_MINUTE", &config.Gates.Throttle.AuthenticatedRequestsPerMinute)
	envInt("THROTTLE_AUTH_BURST_SIZE", &config.Gates.Throttle.AuthenticatedBurstSize)
	envBool("RATE_LIMIT_ENABLED", &config.Gates.RateLimit.Enabled)
	envInt("RATE_LIMIT", &config.Gates.RateLimit.Limit)
	envDuration("RATE_LIMIT_WINDOW", &config.Gates.RateLimit.Window)
	envList("RATE_LIMIT_METHODS", &config.Gates.RateLimit.Methods)
	envList("RATE_LIMIT_PREFIXES", &config.Gates.RateLimit.Prefixes)

	// Logging
	envString("LOG_LEVEL", &config.Logging.Level)
	envString("LOG_FORMAT", &config.Logging.Format)
	envString("LOG_OUTPUT", &config.Logging.Output)
	envString("LOG_FILE_PATH", &config.Logging.FilePath)
	envBool("ACCESS_LOG", &config.Logging.AccessLog)

	// Metrics and tracing
	envBool("METRICS_ENABLED", &config.Metrics.Enabled)
	envString("METRICS_PATH", &config.Metrics.Path)
	envInt("METRICS_PORT", &config.Metrics.Port)
	envString("SERVICE_NAME", &config.Observability.ServiceName)
	envBool("TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	envString("TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	envString("OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)

	// Stats
	envBool("STATS_ENABLED", &config.Stats.Enabled)
	envString("STATS_TYPE", &config.Stats.Type)
	envBool("STATS_TRACK_KEYS", &config.Stats.TrackKeys)
	envInt("STATS_BUFFER_SIZE", &config.Stats.BufferSize)
	envString("REDIS_ADDR", &config.Stats.Redis.Addr)
	envString("REDIS_PASSWORD", &config.Stats.Redis.Password)
	envInt("REDIS_DB", &config.Stats.Redis.DB)
	envString("REDIS_PREFIX", &config.Stats.Redis.Prefix)
	envDuration("REDIS_TTL", &config.Stats.Redis.TTL)
}

func lookup(name string) (string, bool) {
	v := os.Getenv(EnvPrefix + name)
	return v, v != ""
}

func envString(name string, dst *string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v, ok := lookup(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			slog.Warn("Ignoring invalid integer override", "env", EnvPrefix+name, "value", v)
		}
	}
}

func envBool(name string, dst *bool) {
	if v, ok := lookup(name); ok {
		*dst = strings.EqualFold(v, "true")
	}
}

func envDuration(name string, dst *time.Duration) {
	if v, ok := lookup(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		} else {
			slog.Warn("Ignoring invalid duration override", "env", EnvPrefix+name, "value", v)
		}
	}
}

// envList reads a comma-separated list.
func envList(name string, dst *[]string) {
	v, ok := lookup(name)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

// SaveExample writes the default configuration, with example users, to filePath.
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.Security.Users = []models.UserSeed{
		{Username: "admin", Email: "admin@example.com", Role: string(models.RoleAdmin), Token: "cg_replace-with-admin-token"},
		{Username: "moderator", Email: "mod@example.com", Role: string(models.RoleModerator), Token: "cg_replace-with-moderator-token"},
		{Username: "guest", Role: string(models.RoleGuest), Token: "cg_replace-with-guest-token"},
	}
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
