package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	// Test server defaults
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.False(t, config.Server.TLSEnabled)

	// Test storage defaults
	assert.Equal(t, StorageTypeMemory, config.Storage.Type)
	assert.Equal(t, 25, config.Storage.Database.MaxOpenConns)

	// Test security defaults
	assert.True(t, config.Security.EnableAuth)
	assert.Empty(t, config.Security.Users)

	// Test gate defaults
	assert.Equal(t, []string{GateRole, GateTimeOfDay, GateThrottle, GateRateLimit}, config.Gates.Order)
	assert.True(t, config.Gates.RateLimit.Enabled)
	assert.Equal(t, 5, config.Gates.RateLimit.Limit)
	assert.Equal(t, time.Minute, config.Gates.RateLimit.Window)
	assert.Equal(t, []string{"POST"}, config.Gates.RateLimit.Methods)
	assert.Equal(t, []string{"/api/messages/"}, config.Gates.RateLimit.Prefixes)
	assert.False(t, config.Gates.TimeOfDay.Enabled)
	assert.Equal(t, "18:00", config.Gates.TimeOfDay.Start)
	assert.Equal(t, "21:00", config.Gates.TimeOfDay.End)
	assert.True(t, config.Gates.Role.Enabled)
	assert.Len(t, config.Gates.Role.Rules, 3)

	// Test logging defaults
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.True(t, config.Logging.AccessLog)

	// Test stats defaults
	assert.Equal(t, StatsTypeMemory, config.Stats.Type)

	require.NoError(t, config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{
			name:     "invalid port",
			mutate:   func(c *Config) { c.Server.Port = 0 },
			errorMsg: "port must be between 1 and 65535",
		},
		{
			name: "tls without cert",
			mutate: func(c *Config) {
				c.Server.TLSEnabled = true
			},
			errorMsg: "TLS cert file is required",
		},
		{
			name:     "unknown storage",
			mutate:   func(c *Config) { c.Storage.Type = "json" },
			errorMsg: "invalid storage type: json",
		},
		{
			name:     "postgres without dsn",
			mutate:   func(c *Config) { c.Storage.Type = StorageTypePostgres },
			errorMsg: "database DSN is required",
		},
		{
			name: "seed user with bad role",
			mutate: func(c *Config) {
				c.Security.Users = []UserSeed{{Username: "alice", Role: "owner", Token: "t"}}
			},
			errorMsg: `invalid role "owner"`,
		},
		{
			name: "duplicate seed user",
			mutate: func(c *Config) {
				c.Security.Users = []UserSeed{
					{Username: "alice", Role: "admin", Token: "a"},
					{Username: "alice", Role: "guest", Token: "b"},
				}
			},
			errorMsg: "duplicate user: alice",
		},
		{
			name:     "unknown gate",
			mutate:   func(c *Config) { c.Gates.Order = append(c.Gates.Order, "geo") },
			errorMsg: `unknown gate in order: "geo"`,
		},
		{
			name:     "enabled gate missing from order",
			mutate:   func(c *Config) { c.Gates.Order = []string{GateRole} },
			errorMsg: `gate "throttle" is enabled but not listed in order`,
		},
		{
			name:     "gate listed twice",
			mutate:   func(c *Config) { c.Gates.Order = []string{GateRole, GateRole} },
			errorMsg: "gate listed twice",
		},
		{
			name:     "zero rate limit",
			mutate:   func(c *Config) { c.Gates.RateLimit.Limit = 0 },
			errorMsg: "rate limit must be positive",
		},
		{
			name:     "zero rate window",
			mutate:   func(c *Config) { c.Gates.RateLimit.Window = 0 },
			errorMsg: "rate limit window must be positive",
		},
		{
			name:     "role gate without rules",
			mutate:   func(c *Config) { c.Gates.Role.Rules = nil },
			errorMsg: "at least one rule",
		},
		{
			name: "time of day without prefixes",
			mutate: func(c *Config) {
				c.Gates.TimeOfDay.Enabled = true
				c.Gates.TimeOfDay.Prefixes = nil
			},
			errorMsg: "requires at least one prefix",
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Logging.Level = "trace" },
			errorMsg: "invalid log level: trace",
		},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Observability.Tracing.Enabled = true
				c.Observability.Tracing.Exporter = "otlp"
			},
			errorMsg: "OTLP endpoint is required",
		},
		{
			name: "redis stats without addr",
			mutate: func(c *Config) {
				c.Stats.Type = StatsTypeRedis
				c.Stats.Redis.Addr = ""
			},
			errorMsg: "Redis address is required",
		},
		{
			name:     "zero stats buffer",
			mutate:   func(c *Config) { c.Stats.BufferSize = 0 },
			errorMsg: "stats buffer size must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestConfig_ValidateSkipsDisabledGates(t *testing.T) {
	config := NewDefaultConfig()
	config.Gates.RateLimit.Enabled = false
	config.Gates.RateLimit.Limit = 0
	config.Gates.Throttle.Enabled = false
	config.Gates.Throttle.BurstSize = 0

	assert.NoError(t, config.Validate())
}
