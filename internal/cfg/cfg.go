package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
)

// Config holds the application settings and implements the common
// cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string

	EnrichmentEnabled        bool
	EnrichmentURL            string
	EnrichmentAPIKey         string
	EnrichmentTimeoutSeconds int

	ClaudeAPIKey           string
	ClaudeModel            string
	OpenAIAPIKey           string
	OpenAIModel            string
	OpenAIBaseURL          string
	ProviderTimeoutSeconds int

	DatabaseURL     string
	SlackWebhookURL string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on /api/v1 routes (empty = open)")

	fs.BoolVar(&c.EnrichmentEnabled, "enrichment-enabled", false, "call the threat-intel bridge during triage")
	fs.StringVar(&c.EnrichmentURL, "enrichment-url", "", "base URL of the threat-intel bridge")
	fs.StringVar(&c.EnrichmentAPIKey, "enrichment-api-key", "", "API key for the threat-intel bridge")
	fs.IntVar(&c.EnrichmentTimeoutSeconds, "enrichment-timeout-seconds", 10, "deadline for one enrichment call (1..120)")

	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude provider (empty = disabled)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI-compatible provider (empty = disabled)")
	fs.StringVar(&c.OpenAIModel, "openai-model", "gpt-4o-mini", "OpenAI-compatible model to use")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", "https://api.openai.com/v1", "base URL of the OpenAI-compatible API")
	fs.IntVar(&c.ProviderTimeoutSeconds, "provider-timeout-seconds", 30, "deadline for one assistant provider call (1..300)")

	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL for dashboard metrics (empty = no metrics)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for high-severity notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.EnrichmentEnabled {
		if err := checkURL("ENRICHMENT_URL", c.EnrichmentURL); err != nil {
			errs = append(errs, err)
		}
		if c.EnrichmentAPIKey == "" {
			errs = append(errs, errors.New("ENRICHMENT_API_KEY is required when ENRICHMENT_ENABLED"))
		}
	}
	if c.EnrichmentTimeoutSeconds <= 0 || c.EnrichmentTimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid ENRICHMENT_TIMEOUT_SECONDS %d (must be 1..120)", c.EnrichmentTimeoutSeconds))
	}

	// A configured provider needs a model to call
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}
	if c.OpenAIAPIKey != "" {
		if c.OpenAIModel == "" {
			errs = append(errs, errors.New("OPENAI_MODEL is required when OPENAI_API_KEY is set"))
		}
		if err := checkURL("OPENAI_BASE_URL", c.OpenAIBaseURL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ProviderTimeoutSeconds <= 0 || c.ProviderTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid PROVIDER_TIMEOUT_SECONDS %d (must be 1..300)", c.ProviderTimeoutSeconds))
	}

	if c.SlackWebhookURL != "" {
		if err := checkURL("SLACK_WEBHOOK_URL", c.SlackWebhookURL); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// checkURL requires an absolute http(s) URL.
func checkURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q (must be an absolute http(s) URL)", name, raw)
	}
	return nil
}
