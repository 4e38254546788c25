// Package dbconn is the database connection abstraction (spec §6 "Database"):
// a *sql.DB pool wrapper exposing parameterized exec/query with positional
// `?` placeholders (named placeholders are not supported), a health ping,
// exponential-backoff retry on transient
// errors, and OpenTelemetry spans/metrics per call — grounded on the same
// pattern a Dolt/MySQL server-mode storage backend uses.
package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	_ "github.com/go-sql-driver/mysql"
)

// retryMaxElapsed bounds how long transient-error retries may keep trying
// before giving up and surfacing the error.
const retryMaxElapsed = 30 * time.Second

// Pool wraps a *sql.DB with retry, tracing, and health checking. A second
// Pool instance (role="secondary") backs the auto-warmer so warming traffic
// never contends with user queries (spec §5).
type Pool struct {
	db   *sql.DB
	role string
}

// Open connects to dsn and configures the pool's connection limits.
func Open(dsn string, maxOpenConns, maxIdleConns int, role string) (*Pool, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Pool{db: db, role: role}, nil
}

// Wrap adapts an already-open *sql.DB (e.g. from a test harness).
func Wrap(db *sql.DB, role string) *Pool {
	return &Pool{db: db, role: role}
}

// DB exposes the underlying *sql.DB for callers that need raw access
// (schema discovery, sqlmock-backed tests).
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close releases the pool's connections.
func (p *Pool) Close() error {
	return p.db.Close()
}

var tracer = otel.Tracer("github.com/erbhushanpawar/sqldb-go/dbconn")

var metrics struct {
	retryCount metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/erbhushanpawar/sqldb-go/dbconn")
	metrics.retryCount, _ = m.Int64Counter("sqldb.db.retry_count",
		metric.WithDescription("database operations retried due to transient errors"),
		metric.WithUnit("{retry}"),
	)
}

func newRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return bo
}

// isRetryableError reports whether err looks like a transient connection
// problem worth retrying (stale pool connection, brief network blip, server
// restart) rather than a query or constraint error.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, marker := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"lost connection",
		"gone away",
		"i/o timeout",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func (p *Pool) withRetry(ctx context.Context, op func() error) error {
	attempts := 0
	bo := newRetryBackoff()
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil && isRetryableError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if attempts > 1 {
		metrics.retryCount.Add(ctx, int64(attempts-1))
	}
	return err
}

func (p *Pool) spanAttrs(op, query string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", "mysql"),
		attribute.String("db.pool", p.role),
		attribute.String("db.operation", op),
		attribute.String("db.statement", truncate(query, 300)),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Exec runs a parameterized write statement with retry and tracing.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := tracer.Start(ctx, "dbconn.exec", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(p.spanAttrs("exec", query)...))
	var result sql.Result
	err := p.withRetry(ctx, func() error {
		var execErr error
		result, execErr = p.db.ExecContext(ctx, query, args...)
		return execErr
	})
	endSpan(span, err)
	return result, err
}

// Query runs a parameterized read statement with retry and tracing. Callers
// own the returned *sql.Rows and must Close it.
func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := tracer.Start(ctx, "dbconn.query", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(p.spanAttrs("query", query)...))
	var rows *sql.Rows
	err := p.withRetry(ctx, func() error {
		var queryErr error
		rows, queryErr = p.db.QueryContext(ctx, query, args...)
		return queryErr
	})
	endSpan(span, err)
	return rows, err
}

// QueryRow runs a parameterized single-row read. scan is invoked with the
// resulting *sql.Row to extract columns.
func (p *Pool) QueryRow(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	ctx, span := tracer.Start(ctx, "dbconn.query_row", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(p.spanAttrs("query_row", query)...))
	err := p.withRetry(ctx, func() error {
		return scan(p.db.QueryRowContext(ctx, query, args...))
	})
	endSpan(span, err)
	return err
}

// Ping reports whether the pool currently reaches the database, retrying
// transient failures within the same elapsed budget as other operations.
func (p *Pool) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "dbconn.ping", trace.WithSpanKind(trace.SpanKindClient))
	err := p.withRetry(ctx, func() error {
		return p.db.PingContext(ctx)
	})
	endSpan(span, err)
	return err
}
