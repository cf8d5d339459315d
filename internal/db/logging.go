package db

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"
)

// LoggingQuerier logs failed and slow statements issued through Querier.
type LoggingQuerier struct {
	q         Querier
	logger    *slog.Logger
	slowAfter time.Duration
}

// WithLogging wraps q. A zero slowAfter disables slow statement logging.
func WithLogging(q Querier, logger *slog.Logger, slowAfter time.Duration) *LoggingQuerier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingQuerier{q: q, logger: logger, slowAfter: slowAfter}
}

func (l *LoggingQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := l.q.ExecContext(ctx, query, args...)
	l.observe(ctx, query, time.Since(start), err)
	return res, err
}

func (l *LoggingQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := l.q.QueryContext(ctx, query, args...)
	l.observe(ctx, query, time.Since(start), err)
	return rows, err
}

// QueryRowContext cannot observe errors; they surface on Scan.
func (l *LoggingQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := l.q.QueryRowContext(ctx, query, args...)
	l.observe(ctx, query, time.Since(start), nil)
	return row
}

func (l *LoggingQuerier) observe(ctx context.Context, query string, took time.Duration, err error) {
	if err != nil {
		l.logger.ErrorContext(ctx, "query failed",
			slog.String("query", compactQuery(query)),
			slog.Duration("duration", took),
			slog.Any("error", err),
		)
		return
	}
	if l.slowAfter > 0 && took > l.slowAfter {
		l.logger.WarnContext(ctx, "slow query",
			slog.String("query", compactQuery(query)),
			slog.Duration("duration", took),
		)
	}
}

func compactQuery(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if len(query) > 300 {
		return query[:300] + "..."
	}
	return query
}
