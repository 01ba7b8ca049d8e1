// Package threatintel is a client for the APEX bridge threat analysis service,
// used as the optional enrichment source for message triage.
package threatintel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/apex/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/apex/internal/threatintel")

const (
	analyzePath    = "/api/analyze-email"
	maxResponseLen = 1 << 20
	httpTimeout    = 10 * time.Second
)

// ErrMalformedVerdict is returned when the bridge response does not carry a usable verdict.
var ErrMalformedVerdict = errors.New("malformed verdict")

// Client calls the bridge's email analysis endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// New creates a bridge client. The per-call deadline comes from the caller's
// context; httpTimeout is only a backstop.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

type analyzeRequest struct {
	MessageID   string   `json:"message_id"`
	Subject     string   `json:"subject"`
	Sender      string   `json:"sender"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments"`
}

// verdict is the bridge's analysis result. An absent risk_score reads as 0.
type verdict struct {
	RiskScore        float64  `json:"risk_score"`
	ThreatCategories []string `json:"threat_categories"`
	Indicators       []string `json:"indicators"`
	Action           string   `json:"action"`
	ThreatLevel      string   `json:"threat_level"`
}

// envelope accepts both the wrapped ({"verdict": {...}}) and bare verdict shapes.
type envelope struct {
	Verdict *verdict `json:"verdict"`
	verdict
}

// AnalyzeThreat submits a message for analysis and converts the verdict to a
// triage enrichment. Any transport failure, non-2xx status or shape mismatch is
// returned as an error.
func (c *Client) AnalyzeThreat(ctx context.Context, subject, sender, body string) (*triage.Enrichment, error) {
	ctx, span := tracer.Start(ctx, "threatintel.AnalyzeThreat", trace.WithAttributes(
		attribute.String("server.address", c.baseURL),
	))
	defer span.End()

	out, err := c.analyze(ctx, subject, sender, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Float64("apex.enrichment.threat_score", out.ThreatScore))
	return out, nil
}

func (c *Client) analyze(ctx context.Context, subject, sender, body string) (*triage.Enrichment, error) {
	payload, err := json.Marshal(analyzeRequest{
		MessageID:   "apex-" + strconv.FormatInt(c.now().UnixMilli(), 10),
		Subject:     subject,
		Sender:      sender,
		Body:        body,
		Attachments: []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: baseURL is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLen))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("bridge error %d: %s", resp.StatusCode, truncate(string(respBody), 256))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedVerdict, err)
	}

	v := &env.verdict
	if env.Verdict != nil {
		v = env.Verdict
	}
	return toEnrichment(v)
}

// toEnrichment maps a bridge verdict onto the enrichment contract.
func toEnrichment(v *verdict) (*triage.Enrichment, error) {
	threatType := "Safe"
	if len(v.ThreatCategories) > 0 && v.ThreatCategories[0] != "" {
		threatType = v.ThreatCategories[0]
	}

	severity := strings.ToLower(v.ThreatLevel)
	if severity == "" {
		severity = "medium"
	}

	e := &triage.Enrichment{
		ThreatScore:    v.RiskScore / 100,
		ThreatType:     threatType,
		Severity:       severity,
		Indicators:     v.Indicators,
		Recommendation: recommendation(v),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func recommendation(v *verdict) string {
	switch strings.ToUpper(v.Action) {
	case "QUARANTINE", "BLOCK":
		return "quarantine"
	}
	switch strings.ToUpper(v.ThreatLevel) {
	case "HIGH", "CRITICAL":
		return "review"
	}
	return "allow"
}

// truncate shortens s to at most limit runes, marking the cut with "...".
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
