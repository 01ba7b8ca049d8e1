// Package slack posts triage reports to Slack via incoming webhooks.
package slack

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/apex/internal/triage"
	"github.com/linnemanlabs/go-core/log"
)

const (
	maxDetailLen   = 3000
	maxIndicators  = 10
	httpTimeout    = 10 * time.Second
	noIndicatorMsg = "_No indicators fired._"
)

// Notifier sends triage reports to a Slack webhook. It satisfies
// triage.Notifier.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
	now        func() time.Time
}

// New creates a Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
		now:    time.Now,
	}
}

// Send posts a triage report to the configured webhook.
func (n *Notifier) Send(ctx context.Context, in triage.Input, r *triage.Report) error {
	if n.webhookURL == "" || r == nil {
		return nil
	}

	err := slackapi.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.client, buildMessage(in, r, n.now()))
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}

	n.logger.Info(ctx, "slack notification sent",
		"triage_id", r.ID,
		"severity", string(r.Structured.Severity),
	)
	return nil
}

// buildMessage lays out header, fields, indicators and context separated by
// dividers. Text carries the header for clients that do not render blocks.
func buildMessage(in triage.Input, r *triage.Report, ts time.Time) *slackapi.WebhookMessage {
	header := headerText(in, r)
	return &slackapi.WebhookMessage{
		Text: header,
		Blocks: &slackapi.Blocks{
			BlockSet: []slackapi.Block{
				slackapi.NewHeaderBlock(plain(header)),
				slackapi.NewDividerBlock(),
				fieldsBlock(in, r),
				slackapi.NewDividerBlock(),
				indicatorsBlock(r),
				slackapi.NewDividerBlock(),
				slackapi.NewContextBlock("", mrkdwn(
					fmt.Sprintf("apex • triage %s • %s", r.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
				)),
			},
		},
	}
}

func headerText(in triage.Input, r *triage.Report) string {
	subject := in.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	// Slack caps header text at 150 characters.
	return truncate(fmt.Sprintf("%s %s threat: %s", severityEmoji(r.Structured.Severity), r.Structured.Severity, subject), 150)
}

func fieldsBlock(in triage.Input, r *triage.Report) *slackapi.SectionBlock {
	s := r.Structured
	enriched := "no"
	if r.Enrichment != nil {
		enriched = "yes"
	}
	fields := []*slackapi.TextBlockObject{
		mrkdwn(fmt.Sprintf("*Severity:* %s", s.Severity)),
		mrkdwn(fmt.Sprintf("*Risk score:* %d/100", s.RiskScore)),
		mrkdwn(fmt.Sprintf("*Classification:* %s", s.Classification)),
		mrkdwn(fmt.Sprintf("*Sender:* %s", orDash(in.Sender))),
		mrkdwn(fmt.Sprintf("*Indicators:* %d", len(s.Indicators))),
		mrkdwn(fmt.Sprintf("*Enriched:* %s", enriched)),
	}
	return slackapi.NewSectionBlock(nil, fields, nil)
}

func indicatorsBlock(r *triage.Report) *slackapi.SectionBlock {
	var b strings.Builder
	for i, ind := range r.Structured.Indicators {
		if i == maxIndicators {
			fmt.Fprintf(&b, "_…and %d more_\n", len(r.Structured.Indicators)-maxIndicators)
			break
		}
		fmt.Fprintf(&b, "• *%s* (%s): %s\n", ind.Key, ind.Severity, ind.Description)
	}
	if first := firstAction(r.Structured.Recommendations); first != "" {
		fmt.Fprintf(&b, "\n*Next step:* %s", first)
	}

	text := truncate(strings.TrimRight(b.String(), "\n"), maxDetailLen)
	if len(r.Structured.Indicators) == 0 {
		text = noIndicatorMsg
	}
	return slackapi.NewSectionBlock(mrkdwn(fmt.Sprintf("*Indicators*\n\n%s", text)), nil, nil)
}

func plain(text string) *slackapi.TextBlockObject {
	return slackapi.NewTextBlockObject(slackapi.PlainTextType, text, false, false)
}

func mrkdwn(text string) *slackapi.TextBlockObject {
	return slackapi.NewTextBlockObject(slackapi.MarkdownType, text, false, false)
}

// firstAction picks the most urgent recommendation available.
func firstAction(rec triage.Recommendations) string {
	for _, list := range [][]string{rec.Critical, rec.ShortTerm, rec.General} {
		if len(list) > 0 {
			return list[0]
		}
	}
	return ""
}

func severityEmoji(sev triage.Severity) string {
	switch sev {
	case triage.SeverityCritical:
		return "\U0001f534" // red circle
	case triage.SeverityHigh:
		return "\U0001f7e0" // orange circle
	case triage.SeverityMedium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to at most limit runes, marking the cut with "...".
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
