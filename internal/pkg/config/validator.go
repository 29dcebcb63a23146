package config

import (
	"errors"

	"github.com/ulule/limiter/v3"
)

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	if c.Database.Host == "" || c.Database.Name == "" {
		return errors.New("database host and name are required")
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return errors.New("redis host is required when redis is enabled")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.FraudAlertsTopic == "" {
			return errors.New("kafka fraud_alerts_topic is required when kafka is enabled")
		}
	}

	if c.NATS.Enabled && (c.NATS.URL == "" || c.NATS.SubjectPrefix == "") {
		return errors.New("nats url and subject_prefix are required when nats is enabled")
	}

	if c.AMQP.Enabled && (c.AMQP.URL == "" || c.AMQP.Exchange == "") {
		return errors.New("amqp url and exchange are required when amqp is enabled")
	}

	backends := 0
	for _, enabled := range []bool{c.Kafka.Enabled, c.NATS.Enabled, c.AMQP.Enabled} {
		if enabled {
			backends++
		}
	}
	if backends > 1 {
		return errors.New("at most one of kafka, nats and amqp can be enabled")
	}

	if c.Fraud.RuleCacheTTL < 0 {
		return errors.New("rule_cache_ttl cannot be negative")
	}

	if c.Fraud.LockTTL <= 0 || c.Fraud.LockWait <= 0 {
		return errors.New("lock_ttl and lock_wait must be positive")
	}

	if c.Fraud.IPCacheTTL <= 0 {
		return errors.New("ip_cache_ttl must be positive")
	}

	if c.RateLimit.Enabled {
		if _, err := limiter.NewRateFromFormatted(c.RateLimit.Rate); err != nil {
			return errors.New("rate_limit.rate must look like 100-S, 1000-M or 5000-H")
		}
	}

	if c.IPReputation.URL != "" && c.IPReputation.Timeout <= 0 {
		return errors.New("ip_reputation.timeout must be positive")
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerEndpoint == "" {
			return errors.New("tracing.jaeger_endpoint is required when tracing is enabled")
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return errors.New("tracing.sample_ratio must be between 0 and 1")
		}
	}

	return nil
}
