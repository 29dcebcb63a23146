package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FRAUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.name", cfg.Database.Name)
	v.SetDefault("database.ssl_mode", cfg.Database.SSLMode)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime)
	v.SetDefault("database.auto_migrate", cfg.Database.AutoMigrate)

	v.SetDefault("redis.enabled", cfg.Redis.Enabled)
	v.SetDefault("redis.host", cfg.Redis.Host)
	v.SetDefault("redis.port", cfg.Redis.Port)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.pool_size", cfg.Redis.PoolSize)
	v.SetDefault("redis.read_timeout", cfg.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", cfg.Redis.WriteTimeout)

	v.SetDefault("kafka.enabled", cfg.Kafka.Enabled)
	v.SetDefault("kafka.brokers", cfg.Kafka.Brokers)
	v.SetDefault("kafka.fraud_alerts_topic", cfg.Kafka.FraudAlertsTopic)
	v.SetDefault("kafka.write_timeout", cfg.Kafka.WriteTimeout)

	v.SetDefault("nats.enabled", cfg.NATS.Enabled)
	v.SetDefault("nats.url", cfg.NATS.URL)
	v.SetDefault("nats.subject_prefix", cfg.NATS.SubjectPrefix)
	v.SetDefault("nats.client_name", cfg.NATS.ClientName)
	v.SetDefault("nats.connect_timeout", cfg.NATS.ConnectTimeout)

	v.SetDefault("amqp.enabled", cfg.AMQP.Enabled)
	v.SetDefault("amqp.url", cfg.AMQP.URL)
	v.SetDefault("amqp.exchange", cfg.AMQP.Exchange)

	v.SetDefault("fraud.rule_cache_ttl", cfg.Fraud.RuleCacheTTL)
	v.SetDefault("fraud.isolate_analyzer_failures", cfg.Fraud.IsolateAnalyzerFailures)
	v.SetDefault("fraud.lock_ttl", cfg.Fraud.LockTTL)
	v.SetDefault("fraud.lock_wait", cfg.Fraud.LockWait)
	v.SetDefault("fraud.ip_cache_ttl", cfg.Fraud.IPCacheTTL)
	v.SetDefault("fraud.ip_refresh_queue", cfg.Fraud.IPRefreshQueue)
	v.SetDefault("fraud.ip_refresh_workers", cfg.Fraud.IPRefreshWorker)

	v.SetDefault("geoip.country_db_path", cfg.GeoIP.CountryDBPath)
	v.SetDefault("geoip.anonymous_ip_db_path", cfg.GeoIP.AnonymousIPDBPath)

	v.SetDefault("ip_reputation.url", cfg.IPReputation.URL)
	v.SetDefault("ip_reputation.api_key", cfg.IPReputation.APIKey)
	v.SetDefault("ip_reputation.timeout", cfg.IPReputation.Timeout)

	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.rate", cfg.RateLimit.Rate)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.jaeger_endpoint", cfg.Tracing.JaegerEndpoint)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
