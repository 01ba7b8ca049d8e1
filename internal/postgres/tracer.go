package postgres

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

// QueryObserver receives the outcome of every query. Wired by main to a
// Prometheus histogram.
type QueryObserver func(ctx context.Context, caller, route, outcome string, dur time.Duration)

type queryStartKey struct{}

type queryStart struct {
	sql    string
	caller string
	at     time.Time
}

// queryTracer wraps another pgx.QueryTracer (otelpgx in production) with a
// structured log line and an optional observer per query.
type queryTracer struct {
	inner   pgx.QueryTracer
	observe QueryObserver
	now     func() time.Time
}

func newQueryTracer(inner pgx.QueryTracer, observe QueryObserver) *queryTracer {
	return &queryTracer{inner: inner, observe: observe, now: time.Now}
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	caller := findDBCaller()

	// inner tracer starts the span first so the caller lands on it
	if t.inner != nil {
		ctx = t.inner.TraceQueryStart(ctx, conn, data)
	}
	if caller != "" {
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(attribute.String("db.caller", caller))
		}
	}

	return context.WithValue(ctx, queryStartKey{}, queryStart{
		sql:    data.SQL,
		caller: caller,
		at:     t.now(),
	})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	if t.inner != nil {
		t.inner.TraceQueryEnd(ctx, conn, data)
	}

	qs, _ := ctx.Value(queryStartKey{}).(queryStart)
	var dur time.Duration
	if !qs.at.IsZero() {
		dur = t.now().Sub(qs.at)
	}

	outcome := "ok"
	if data.Err != nil {
		outcome = "error"
	}

	if t.observe != nil {
		caller := qs.caller
		if caller == "" {
			caller = "unknown"
		}
		route := "none"
		if rc := chi.RouteContext(ctx); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		t.observe(ctx, caller, route, outcome, dur)
	}

	fields := []any{
		"db.statement", qs.sql,
		"db.duration", dur.Seconds(),
	}
	if qs.caller != "" {
		fields = append(fields, "db.caller", qs.caller)
	}
	if tag := data.CommandTag.String(); tag != "" {
		fields = append(fields, "pg.command_tag", tag, "db.rows", data.CommandTag.RowsAffected())
	}

	L := log.FromContext(ctx)
	if data.Err != nil {
		var pgErr *pgconn.PgError
		if errors.As(data.Err, &pgErr) {
			fields = append(fields, "db.error_code", pgErr.Code)
		}
		L.Error(ctx, data.Err, "db query failed", fields...)
		return
	}
	L.Info(ctx, "db query", fields...)
}

// findDBCaller returns the first application frame that issued the query.
func findDBCaller() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		fr, more := frames.Next()
		fn := fr.Function
		skip := strings.HasPrefix(fn, "runtime.") ||
			strings.Contains(fn, "github.com/jackc/pgx/v5") ||
			strings.Contains(fn, "github.com/exaring/otelpgx") ||
			strings.Contains(fn, "(*queryTracer).")
		if fn != "" && !skip {
			return shortenFuncName(fn)
		}
		if !more {
			return ""
		}
	}
}

// shortenFuncName trims the import path and package from a runtime function name.
func shortenFuncName(fn string) string {
	if i := strings.LastIndex(fn, "/"); i >= 0 && i+1 < len(fn) {
		fn = fn[i+1:]
	}
	if dot := strings.Index(fn, "."); dot >= 0 && dot+1 < len(fn) {
		fn = fn[dot+1:]
	}
	return fn
}
