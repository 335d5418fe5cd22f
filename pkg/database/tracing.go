package database

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/coursereviews/pkg/database"

var slowQueriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "db_slow_queries_total",
		Help: "Queries that exceeded the slow query threshold.",
	},
	[]string{"table", "operation"},
)

type slowQueryLog struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQueries atomic.Pointer[slowQueryLog]

// SetSlowQueryLogging logs queries slower than threshold as warnings and
// counts them in db_slow_queries_total. A zero threshold or nil logger
// disables it.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowQueries.Store(nil)
		return
	}
	slowQueries.Store(&slowQueryLog{threshold: threshold, logger: logger})
}

func getSlowQueryConfig() (time.Duration, *slog.Logger) {
	cfg := slowQueries.Load()
	if cfg == nil {
		return 0, nil
	}
	return cfg.threshold, cfg.logger
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	tableRef   = regexp.MustCompile(`(?i)\b(?:FROM|INTO|UPDATE)\s+([a-z_][a-z0-9_]*)`)
)

// compactSQL collapses the indentation of multi-line statements.
func compactSQL(statement string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(statement, " "))
}

// queryTable returns the first table a statement reads or writes, or "".
func queryTable(statement string) string {
	m := tableRef.FindStringSubmatch(statement)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// TraceQuery starts a client span for one repository query. The returned
// function ends it and must be called exactly once:
//
//	ctx, end := database.TraceQuery(ctx, "ListReviews", query)
//	rows, err := pool.Query(ctx, query, args...)
//	...
//	end(err)
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	statement = compactSQL(statement)
	table := queryTable(statement)

	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", operation),
		attribute.String("db.statement", statement),
	}
	if table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", table))
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.Bool("db.transient", IsConnectionError(err)))
		}
		span.End()

		threshold, logger := getSlowQueryConfig()
		if threshold <= 0 || logger == nil {
			return
		}
		elapsed := time.Since(start)
		if elapsed < threshold {
			return
		}
		slowQueriesTotal.WithLabelValues(table, operation).Inc()
		fields := []any{
			slog.String("operation", operation),
			slog.String("table", table),
			slog.String("statement", statement),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
		}
		logger.WarnContext(ctx, "slow query detected", fields...)
	}
}
