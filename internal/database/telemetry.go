package database

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/irfndi/funding-monitor-go/internal/database"

// TracedDB wraps a DatabasePool and records one client span per statement.
// Statements issued on a transaction returned by Begin are not traced individually.
type TracedDB struct {
	pool   DatabasePool
	tracer trace.Tracer
}

func NewTracedDB(pool DatabasePool) *TracedDB {
	return &TracedDB{pool: pool, tracer: otel.Tracer(tracerName)}
}

func (db *TracedDB) start(ctx context.Context, op, sql string) (context.Context, trace.Span) {
	return db.tracer.Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", statementVerb(sql)),
		),
	)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (db *TracedDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := db.start(ctx, "query", sql)
	rows, err := db.pool.Query(ctx, sql, args...)
	finish(span, err)
	return rows, err
}

func (db *TracedDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := db.start(ctx, "query_row", sql)
	defer span.End()
	return db.pool.QueryRow(ctx, sql, args...)
}

func (db *TracedDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := db.start(ctx, "exec", sql)
	tag, err := db.pool.Exec(ctx, sql, args...)
	if err == nil {
		span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	}
	finish(span, err)
	return tag, err
}

func (db *TracedDB) Begin(ctx context.Context) (pgx.Tx, error) {
	ctx, span := db.start(ctx, "begin", "BEGIN")
	tx, err := db.pool.Begin(ctx)
	finish(span, err)
	return tx, err
}

// statementVerb returns the leading SQL keyword, e.g. SELECT or INSERT.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
