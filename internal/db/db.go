package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"github.com/smartkids/tutoring-api/config"
)

const (
	defaultDBDriver     = "postgres"
	defaultPingTimeout  = 5 * time.Second
	defaultConnMaxIdle  = 2 * time.Minute
	defaultConnMaxLife  = 30 * time.Minute
	defaultMaxIdleConns = 5
	defaultMaxOpenConns = 25
)

type poolSettings struct {
	maxOpen int
	maxIdle int
}

// DSN builds the PostgreSQL connection URL for cfg.
func DSN(cfg config.DatabaseConfig) string {
	sslmode := "disable"
	if cfg.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:   url.UserPassword(cfg.User, cfg.Password),
		Path:   cfg.DBName,
	}

	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()

	return u.String()
}

// Open creates the process-wide connection pool. The database is pinged up
// to cfg.Database.ConnectRetries times before giving up.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	pool := poolSettings{
		maxOpen: cfg.Database.MaxOpenConns,
		maxIdle: cfg.Database.MaxIdleConns,
	}
	return connect(
		ctx,
		defaultDBDriver,
		DSN(cfg.Database),
		pool,
		cfg.Database.ConnectRetries,
		cfg.Database.ConnectRetryDelay,
		logger,
	)
}

func connect(
	ctx context.Context,
	driver, dsn string,
	pool poolSettings,
	retries int,
	delay time.Duration,
	logger *slog.Logger,
) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	maxOpen := pool.maxOpen
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := pool.maxIdle
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}

	db.SetConnMaxIdleTime(defaultConnMaxIdle)
	db.SetConnMaxLifetime(defaultConnMaxLife)
	db.SetMaxIdleConns(maxIdle)
	db.SetMaxOpenConns(maxOpen)

	attempts := retries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		pingErr := ping(ctx, db)
		if pingErr == nil {
			return db, nil
		}
		if attempt >= attempts {
			_ = db.Close()
			return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempt, pingErr)
		}

		logger.Warn("database ping failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", delay),
			slog.Any("error", pingErr),
		)

		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}
