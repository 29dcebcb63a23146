package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fraud-risk-engine/internal/pkg/config"
)

// New creates a structured logger from the log configuration.
// Format "console" selects the development encoder; anything else is JSON.
func New(serviceName string, cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	return zc.Build()
}

// Must is New that panics on error, for use in main
func Must(serviceName string, cfg config.LogConfig) *zap.Logger {
	l, err := New(serviceName, cfg)
	if err != nil {
		panic(err)
	}
	return l
}
