package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fraud-risk-engine/internal/pkg/config"
)

// Client wraps the gorm connection shared by every repository
type Client struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewClient connects to PostgreSQL and applies pool settings
func NewClient(cfg config.DatabaseConfig, logger *zap.Logger) (*Client, error) {
	client, err := Open(postgres.Open(cfg.DSN()), logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := client.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return client, nil
}

// Open creates a client over any gorm dialector. Timestamps are always UTC.
func Open(dialector gorm.Dialector, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Client{db: db, logger: logger}, nil
}

// DB returns the underlying gorm handle
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Ping verifies the connection is alive
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate creates or updates the tables owned by this service
func (c *Client) AutoMigrate() error {
	if err := c.db.AutoMigrate(fraudModels()...); err != nil {
		return fmt.Errorf("failed to migrate fraud tables: %w", err)
	}
	c.logger.Info("fraud tables migrated")
	return nil
}

// AutoMigrateActivity creates the user, order and payment tables the
// engine reads. Production schemas are owned elsewhere.
func (c *Client) AutoMigrateActivity() error {
	if err := c.db.AutoMigrate(activityModels()...); err != nil {
		return fmt.Errorf("failed to migrate activity tables: %w", err)
	}
	return nil
}
