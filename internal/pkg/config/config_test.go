package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/pkg/config"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Fraud.IsolateAnalyzerFailures)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("FRAUD_SERVER_PORT", "9090")
	t.Setenv("FRAUD_FRAUD_RULE_CACHE_TTL", "30s")
	t.Setenv("FRAUD_FRAUD_ISOLATE_ANALYZER_FAILURES", "false")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Fraud.RuleCacheTTL)
	assert.False(t, cfg.Fraud.IsolateAnalyzerFailures)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  port: 7070\nrate_limit:\n  rate: 50-M\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "50-M", cfg.RateLimit.Rate)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"bad port", func(c *config.Config) { c.Server.Port = 70000 }},
		{"bad rate", func(c *config.Config) { c.RateLimit.Rate = "lots" }},
		{"kafka without brokers", func(c *config.Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}},
		{"zero lock wait", func(c *config.Config) { c.Fraud.LockWait = 0 }},
		{"two event backends", func(c *config.Config) {
			c.Kafka.Enabled = true
			c.NATS.Enabled = true
		}},
		{"amqp without exchange", func(c *config.Config) {
			c.AMQP.Enabled = true
			c.AMQP.Exchange = ""
		}},
		{"sample ratio above one", func(c *config.Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRatio = 1.5
		}},
		{"reputation without timeout", func(c *config.Config) {
			c.IPReputation.URL = "http://rep.local"
			c.IPReputation.Timeout = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_NATSFromEnv(t *testing.T) {
	t.Setenv("FRAUD_NATS_ENABLED", "true")
	t.Setenv("FRAUD_NATS_SUBJECT_PREFIX", "risk")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "risk", cfg.NATS.SubjectPrefix)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	assert.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
