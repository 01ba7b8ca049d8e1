package postgres

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/apex/internal/assistant/pgsource.(*Source).Snapshot", "(*Source).Snapshot"},
		{"already short", "(*Source).Snapshot", "Snapshot"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"no slashes", "pgsource.(*Source).Snapshot", "(*Source).Snapshot"},
		{"single segment", "foo.Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shortenFuncName(tt.in); got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

type observed struct {
	caller, route, outcome string
	dur                    time.Duration
}

// recordingInner counts calls to the wrapped tracer.
type recordingInner struct {
	starts, ends int
}

func (r *recordingInner) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	r.starts++
	return ctx
}

func (r *recordingInner) TraceQueryEnd(context.Context, *pgx.Conn, pgx.TraceQueryEndData) {
	r.ends++
}

func newTestTracer(inner pgx.QueryTracer, got *[]observed) *queryTracer {
	tr := newQueryTracer(inner, func(_ context.Context, caller, route, outcome string, dur time.Duration) {
		*got = append(*got, observed{caller, route, outcome, dur})
	})
	clock := time.Unix(0, 0)
	tr.now = func() time.Time {
		clock = clock.Add(25 * time.Millisecond)
		return clock
	}
	return tr
}

func TestQueryTracer_ObservesOutcome(t *testing.T) {
	t.Parallel()

	var got []observed
	inner := &recordingInner{}
	tr := newTestTracer(inner, &got)

	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

	ctx = tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT broken"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("syntax error")})

	if inner.starts != 2 || inner.ends != 2 {
		t.Errorf("inner calls = %d/%d, want 2/2", inner.starts, inner.ends)
	}
	if len(got) != 2 {
		t.Fatalf("observed %d queries, want 2", len(got))
	}
	if got[0].outcome != "ok" || got[1].outcome != "error" {
		t.Errorf("outcomes = %q, %q", got[0].outcome, got[1].outcome)
	}
	if got[0].dur != 25*time.Millisecond {
		t.Errorf("duration = %v, want 25ms", got[0].dur)
	}
	if got[0].route != "none" {
		t.Errorf("route = %q, want none outside a request", got[0].route)
	}
	if got[0].caller == "" || got[0].caller == "unknown" {
		t.Errorf("caller = %q, want the test function", got[0].caller)
	}
}

func TestQueryTracer_RoutePattern(t *testing.T) {
	t.Parallel()

	var got []observed
	tr := newTestTracer(nil, &got)

	r := chi.NewRouter()
	r.Get("/api/v1/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		ctx := tr.TraceQueryStart(req.Context(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/items/7", nil))

	if len(got) != 1 || got[0].route != "/api/v1/items/{id}" {
		t.Errorf("observed = %+v", got)
	}
}

func TestQueryTracer_MissingStart(t *testing.T) {
	t.Parallel()

	var got []observed
	tr := newTestTracer(nil, &got)
	tr.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})

	if len(got) != 1 || got[0].dur != 0 || got[0].caller != "unknown" {
		t.Errorf("observed = %+v", got)
	}
}

func TestNewPool_BadDSN(t *testing.T) {
	t.Parallel()

	if _, err := NewPool(context.Background(), "postgres://%zz", nil); err == nil {
		t.Fatal("expected error for malformed dsn")
	}
}

func TestNewPool_Integration(t *testing.T) {
	dsn := os.Getenv("APEX_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("APEX_TEST_DATABASE_URL not set")
	}

	var got []observed
	pool, err := NewPool(context.Background(), dsn, func(_ context.Context, caller, route, outcome string, dur time.Duration) {
		got = append(got, observed{caller, route, outcome, dur})
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	var one int
	if err := pool.QueryRow(context.Background(), "SELECT 1").Scan(&one); err != nil {
		t.Fatalf("query: %v", err)
	}
	if one != 1 || len(got) == 0 {
		t.Errorf("one = %d, observed = %d", one, len(got))
	}
}
