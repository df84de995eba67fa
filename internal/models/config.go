// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all service components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, storage, gates, etc.)
// - Defaults that work out of the box for local development
// - Validation at load time so misconfiguration fails the process at startup
package models

import (
	"errors"
	"fmt"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Stats store type constants
const (
	StatsTypeMemory = "memory"
	StatsTypeRedis  = "redis"
)

// Gate names accepted in GatesConfig.Order.
const (
	GateRole      = "role"
	GateTimeOfDay = "time_of_day"
	GateThrottle  = "throttle"
	GateRateLimit = "rate_limit"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Storage       StorageConfig       `yaml:"storage" json:"storage"`             // Data persistence settings
	Security      SecurityConfig      `yaml:"security" json:"security"`           // Authentication and seeded users
	Gates         GatesConfig         `yaml:"gates" json:"gates"`                 // Request gating pipeline
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Prometheus metrics endpoint
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing
	Stats         StatsConfig         `yaml:"stats" json:"stats"`                 // Gate decision statistics
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

type SecurityConfig struct {
	// EnableAuth turns on bearer-token authentication. When false every
	// request is treated as the built-in admin user.
	EnableAuth bool       `yaml:"enable_auth" json:"enable_auth"`
	Users      []UserSeed `yaml:"users" json:"users"`
}

// UserSeed is a user created at startup if it does not exist yet.
type UserSeed struct {
	Username string `yaml:"username" json:"username"`
	Email    string `yaml:"email" json:"email"`
	Role     string `yaml:"role" json:"role"`
	Token    string `yaml:"token" json:"-"`
}

// GatesConfig configures the request gating pipeline. Order lists the gates
// to run, first to last; disabled gates are skipped. Every enabled gate must
// appear in Order.
type GatesConfig struct {
	Order     []string        `yaml:"order" json:"order"`
	Role      RoleGateConfig  `yaml:"role" json:"role"`
	TimeOfDay TimeOfDayConfig `yaml:"time_of_day" json:"time_of_day"`
	Throttle  ThrottleConfig  `yaml:"throttle" json:"throttle"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// EnabledGates returns the names of the enabled gates.
func (gc *GatesConfig) EnabledGates() []string {
	var names []string
	for _, g := range []struct {
		name    string
		enabled bool
	}{
		{GateRole, gc.Role.Enabled},
		{GateTimeOfDay, gc.TimeOfDay.Enabled},
		{GateThrottle, gc.Throttle.Enabled},
		{GateRateLimit, gc.RateLimit.Enabled},
	} {
		if g.enabled {
			names = append(names, g.name)
		}
	}
	return names
}

type RoleGateConfig struct {
	Enabled bool             `yaml:"enabled" json:"enabled"`
	Rules   []RoleRuleConfig `yaml:"rules" json:"rules"`
}

type RoleRuleConfig struct {
	Prefix string   `yaml:"prefix" json:"prefix"`
	Roles  []string `yaml:"roles" json:"roles"`
}

type TimeOfDayConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Start    string   `yaml:"start" json:"start"`
	End      string   `yaml:"end" json:"end"`
	Location string   `yaml:"location" json:"location"`
	Prefixes []string `yaml:"prefixes" json:"prefixes"`
}

type ThrottleConfig struct {
	Enabled                        bool          `yaml:"enabled" json:"enabled"`
	RequestsPerMinute              int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize                      int           `yaml:"burst_size" json:"burst_size"`
	AuthenticatedRequestsPerMinute int           `yaml:"authenticated_requests_per_minute" json:"authenticated_requests_per_minute"`
	AuthenticatedBurstSize         int           `yaml:"authenticated_burst_size" json:"authenticated_burst_size"`
	CleanupInterval                time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	Prefixes                       []string      `yaml:"prefixes" json:"prefixes"`
}

type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	Limit         int           `yaml:"limit" json:"limit"`
	Window        time.Duration `yaml:"window" json:"window"`
	Methods       []string      `yaml:"methods" json:"methods"`
	Prefixes      []string      `yaml:"prefixes" json:"prefixes"`
	Shards        int           `yaml:"shards" json:"shards"`
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
	// AccessLog enables one log line per request with user and path.
	AccessLog bool `yaml:"access_log" json:"access_log"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

type StatsConfig struct {
	Enabled   bool        `yaml:"enabled" json:"enabled"`
	Type      string      `yaml:"type" json:"type"`
	TrackKeys bool        `yaml:"track_keys" json:"track_keys"`
	Redis     RedisConfig `yaml:"redis" json:"redis"`

	// BufferSize is the number of decisions queued for the background
	// recorder. Decisions beyond it are dropped.
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"-"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
}

// NewDefaultConfig creates a configuration with development-friendly defaults.
//
// The gate defaults reproduce the messaging app's policy: five message posts
// per minute per caller, messaging endpoints limited to moderators and admins,
// and a coarse throttle on the whole API. The time-of-day gate ships disabled
// with the 18:00-21:00 window pre-filled.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type"},
				MaxAge:         86400,
			},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{
			EnableAuth: true,
			Users:      []UserSeed{},
		},
		Gates: GatesConfig{
			Order: []string{GateRole, GateTimeOfDay, GateThrottle, GateRateLimit},
			Role: RoleGateConfig{
				Enabled: true,
				Rules: []RoleRuleConfig{
					{Prefix: "/api/admin/", Roles: []string{"admin"}},
					{Prefix: "/api/messages/", Roles: []string{"moderator", "admin"}},
					{Prefix: "/api/conversations/", Roles: []string{"moderator", "admin"}},
				},
			},
			TimeOfDay: TimeOfDayConfig{
				Enabled:  false,
				Start:    "18:00",
				End:      "21:00",
				Location: "Local",
				Prefixes: []string{"/api/messages/", "/api/conversations/"},
			},
			Throttle: ThrottleConfig{
				Enabled:                        true,
				RequestsPerMinute:              120,
				BurstSize:                      20,
				AuthenticatedRequestsPerMinute: 240,
				AuthenticatedBurstSize:         40,
				CleanupInterval:                5 * time.Minute,
				Prefixes:                       []string{"/api/"},
			},
			RateLimit: RateLimitConfig{
				Enabled:       true,
				Limit:         5,
				Window:        time.Minute,
				Methods:       []string{"POST"},
				Prefixes:      []string{"/api/messages/"},
				Shards:        64,
				SweepInterval: time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Output:    "stdout",
			AccessLog: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "chatgate",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
		Stats: StatsConfig{
			Enabled:    true,
			Type:       StatsTypeMemory,
			BufferSize: 1024,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "chatgate:stats",
				TTL:    24 * time.Hour,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if err := c.Gates.Validate(); err != nil {
		return fmt.Errorf("invalid gates config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	if err := c.Stats.Validate(); err != nil {
		return fmt.Errorf("invalid stats config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return errors.New("database DSN is required for database storage")
		}
		return nil
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
}

func (sec *SecurityConfig) Validate() error {
	seen := make(map[string]bool, len(sec.Users))
	for _, u := range sec.Users {
		if u.Username == "" {
			return errors.New("user name cannot be empty")
		}
		if seen[u.Username] {
			return fmt.Errorf("duplicate user: %s", u.Username)
		}
		seen[u.Username] = true
		if !Role(u.Role).Valid() {
			return fmt.Errorf("user %s: invalid role %q", u.Username, u.Role)
		}
		if u.Token == "" {
			return fmt.Errorf("user %s: token cannot be empty", u.Username)
		}
	}
	return nil
}

// Validate checks the structural parts of the gate configuration. Value
// parsing (times, locations, roles) is repeated by the gate builder.
func (gc *GatesConfig) Validate() error {
	seen := make(map[string]bool, len(gc.Order))
	for _, name := range gc.Order {
		switch name {
		case GateRole, GateTimeOfDay, GateThrottle, GateRateLimit:
		default:
			return fmt.Errorf("unknown gate in order: %q", name)
		}
		if seen[name] {
			return fmt.Errorf("gate listed twice in order: %q", name)
		}
		seen[name] = true
	}
	for _, name := range gc.EnabledGates() {
		if !seen[name] {
			return fmt.Errorf("gate %q is enabled but not listed in order", name)
		}
	}

	if gc.RateLimit.Enabled {
		if gc.RateLimit.Limit <= 0 {
			return errors.New("rate limit must be positive")
		}
		if gc.RateLimit.Window <= 0 {
			return errors.New("rate limit window must be positive")
		}
	}

	if gc.Throttle.Enabled {
		if gc.Throttle.RequestsPerMinute <= 0 || gc.Throttle.BurstSize <= 0 {
			return errors.New("throttle requests per minute and burst size must be positive")
		}
		if gc.Throttle.AuthenticatedRequestsPerMinute < 0 || gc.Throttle.AuthenticatedBurstSize < 0 {
			return errors.New("authenticated throttle values cannot be negative")
		}
	}

	if gc.Role.Enabled {
		if len(gc.Role.Rules) == 0 {
			return errors.New("role gate requires at least one rule")
		}
		for _, r := range gc.Role.Rules {
			if len(r.Roles) == 0 {
				return fmt.Errorf("role rule %q has no allowed roles", r.Prefix)
			}
		}
	}

	if gc.TimeOfDay.Enabled && len(gc.TimeOfDay.Prefixes) == 0 {
		return errors.New("time of day gate requires at least one prefix")
	}

	return nil
}

func (lc *LoggingConfig) Validate() error {
	if !oneOf(lc.Level, "debug", "info", "warn", "error") {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	if !oneOf(lc.Format, "json", "text") {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	if !oneOf(lc.Output, "stdout", "stderr", "file") {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}
	if !oc.Tracing.Enabled {
		return nil
	}
	if !oneOf(oc.Tracing.Exporter, "stdout", "otlp") {
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}
	if oc.Tracing.Exporter == "otlp" && oc.Tracing.OTLPEndpoint == "" {
		return errors.New("OTLP endpoint is required for the otlp exporter")
	}
	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}
	return nil
}

func (sc *StatsConfig) Validate() error {
	if !sc.Enabled {
		return nil
	}
	if sc.BufferSize <= 0 {
		return errors.New("stats buffer size must be positive")
	}
	switch sc.Type {
	case StatsTypeMemory:
		return nil
	case StatsTypeRedis:
		if sc.Redis.Addr == "" {
			return errors.New("Redis address is required when stats type is redis")
		}
		if sc.Redis.TTL < 0 {
			return errors.New("Redis TTL cannot be negative")
		}
		return nil
	default:
		return fmt.Errorf("invalid stats type: %s", sc.Type)
	}
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
