// Package pgsource reads the assistant's dashboard metrics from the scan
// event tables in PostgreSQL.
package pgsource

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/apex/internal/assistant"
)

var tracer = otel.Tracer("github.com/linnemanlabs/apex/internal/assistant/pgsource")

//go:embed schema.sql
var schema string

const (
	// Window is how far back the snapshot looks.
	Window = 30 * 24 * time.Hour

	topThreats   = 10
	topCampaigns = 20
)

// DB is the subset of *pgxpool.Pool the source uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Source implements assistant.Source over PostgreSQL.
type Source struct {
	db  DB
	now func() time.Time
}

// New applies the schema and returns a ready Source.
func New(ctx context.Context, db DB) (*Source, error) {
	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Source{db: db, now: time.Now}, nil
}

// totals are the raw counters behind the headline metrics.
type totals struct {
	scanned       int
	threats       int
	quarantined   int
	falsePositive int
	avgResponse   float64 // seconds
}

// Snapshot loads the current dashboard metrics.
func (s *Source) Snapshot(ctx context.Context) (*assistant.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "pgsource.Snapshot", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	snap, err := s.snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("apex.snapshot.scanned", snap.TotalScanned))
	return snap, nil
}

func (s *Source) snapshot(ctx context.Context) (*assistant.Snapshot, error) {
	now := s.now()
	since := now.Add(-Window)
	mid := now.Add(-Window / 2)

	t, err := s.totals(ctx, since)
	if err != nil {
		return nil, err
	}
	aiThreats, err := s.aiThreats(ctx, since)
	if err != nil {
		return nil, err
	}
	families, err := s.threatFamilies(ctx, since, mid)
	if err != nil {
		return nil, err
	}
	campaigns, err := s.campaigns(ctx)
	if err != nil {
		return nil, err
	}

	protection := protectionRate(t)
	fp := falsePositiveRate(t)
	response := time.Duration(t.avgResponse * float64(time.Second))

	return &assistant.Snapshot{
		SecurityScore:     securityScore(protection, fp, response),
		ProtectionRate:    protection,
		ResponseTime:      response,
		FalsePositiveRate: fp,
		TotalScanned:      t.scanned,
		Quarantined:       t.quarantined,
		AIThreats:         aiThreats,
		ThreatFamilies:    families,
		Campaigns:         campaigns,
	}, nil
}

func (s *Source) totals(ctx context.Context, since time.Time) (totals, error) {
	const query = `SELECT
		count(*),
		count(*) FILTER (WHERE verdict <> 'clean'),
		count(*) FILTER (WHERE quarantined),
		count(*) FILTER (WHERE false_positive),
		COALESCE(avg(response_seconds), 0)
	FROM scan_events WHERE scanned_at >= $1`

	var t totals
	err := s.db.QueryRow(ctx, query, since).Scan(&t.scanned, &t.threats, &t.quarantined, &t.falsePositive, &t.avgResponse)
	if err != nil {
		return totals{}, fmt.Errorf("query totals: %w", err)
	}
	return t, nil
}

func (s *Source) aiThreats(ctx context.Context, since time.Time) ([]assistant.ThreatCount, error) {
	const query = `SELECT threat_type, count(*) FROM scan_events
	WHERE scanned_at >= $1 AND ai_generated AND threat_type IS NOT NULL
	GROUP BY threat_type ORDER BY 2 DESC, 1 LIMIT $2`

	rows, err := s.db.Query(ctx, query, since, topThreats)
	if err != nil {
		return nil, fmt.Errorf("query ai threats: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (assistant.ThreatCount, error) {
		var tc assistant.ThreatCount
		err := row.Scan(&tc.Type, &tc.Count)
		return tc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan ai threats: %w", err)
	}
	return out, nil
}

func (s *Source) threatFamilies(ctx context.Context, since, mid time.Time) ([]assistant.ThreatFamily, error) {
	const query = `SELECT threat_family,
		count(*) FILTER (WHERE scanned_at >= $2),
		count(*) FILTER (WHERE scanned_at < $2)
	FROM scan_events
	WHERE scanned_at >= $1 AND threat_family IS NOT NULL
	GROUP BY threat_family ORDER BY count(*) DESC, 1 LIMIT $3`

	rows, err := s.db.Query(ctx, query, since, mid, topThreats)
	if err != nil {
		return nil, fmt.Errorf("query threat families: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (assistant.ThreatFamily, error) {
		var (
			f             assistant.ThreatFamily
			recent, prior int
		)
		if err := row.Scan(&f.Name, &recent, &prior); err != nil {
			return f, err
		}
		f.Count = recent + prior
		f.Trend = trend(recent, prior)
		return f, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan threat families: %w", err)
	}
	return out, nil
}

func (s *Source) campaigns(ctx context.Context) ([]assistant.Campaign, error) {
	const query = `SELECT name, status, threat_count, first_seen FROM campaigns
	ORDER BY threat_count DESC, name LIMIT $1`

	rows, err := s.db.Query(ctx, query, topCampaigns)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (assistant.Campaign, error) {
		var c assistant.Campaign
		err := row.Scan(&c.Name, &c.Status, &c.ThreatCount, &c.FirstSeen)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan campaigns: %w", err)
	}
	return out, nil
}

// trend compares the recent half of the window to the earlier half. Changes
// within 10% read as stable.
func trend(recent, prior int) string {
	switch {
	case prior == 0 && recent == 0:
		return "stable"
	case prior == 0:
		return "up"
	}
	change := float64(recent-prior) / float64(prior)
	switch {
	case change > 0.1:
		return "up"
	case change < -0.1:
		return "down"
	}
	return "stable"
}

// protectionRate is the share of detected threats that were quarantined, in percent.
func protectionRate(t totals) float64 {
	if t.threats == 0 {
		return 100
	}
	return round1(math.Min(100, float64(t.quarantined)/float64(t.threats)*100))
}

// falsePositiveRate is the share of quarantined messages later released as benign, in percent.
func falsePositiveRate(t totals) float64 {
	if t.quarantined == 0 {
		return 0
	}
	return round1(float64(t.falsePositive) / float64(t.quarantined) * 100)
}

// securityScore weighs protection 70%, false positives 20% and response time 10%.
// A false positive rate of 10% or more and a response of 30 minutes or more
// each contribute nothing.
func securityScore(protection, fpRate float64, response time.Duration) int {
	fpPart := math.Max(0, 100-fpRate*10)
	respPart := 100.0
	if m := response.Minutes(); m > 2 {
		respPart = math.Max(0, 100-(m-2)*100/28)
	}
	score := protection*0.7 + fpPart*0.2 + respPart*0.1
	return int(math.Round(math.Max(0, math.Min(100, score))))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
