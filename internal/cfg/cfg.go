package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Providers accepted by the -llm-provider flag.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Config holds all batch and server configuration, bound to flags and
// fillable from the environment.
type Config struct {
	// batch pipeline
	InputPath         string
	DatabaseURL       string
	PromptDir         string
	SchemaDir         string
	LLMProvider       string
	GatekeeperModel   string
	AnalystModel      string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	AnthropicAPIKey   string
	LLMTimeoutSeconds int
	DigestHours       int
	DigestOut         string
	SkipIngest        bool
	SkipClassify      bool
	SlackWebhookURL   string

	// reporting server
	APIPort               int
	DrainSeconds          int
	ShutdownBudgetSeconds int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.InputPath, "input", "", "path to the scraper JSONL file to ingest")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.PromptDir, "prompt-dir", "", "directory with prompt overrides (empty = embedded defaults)")
	fs.StringVar(&c.SchemaDir, "schema-dir", "", "directory with schema overrides (empty = embedded defaults)")
	fs.StringVar(&c.LLMProvider, "llm-provider", ProviderOpenAI, "LLM provider: openai or claude")
	fs.StringVar(&c.GatekeeperModel, "gatekeeper-model", "gpt-4o-mini", "model for the gatekeeper stage")
	fs.StringVar(&c.AnalystModel, "analyst-model", "gpt-4o", "model for the analyst stage")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI provider")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", "", "OpenAI-compatible base URL (empty = api.openai.com)")
	fs.StringVar(&c.AnthropicAPIKey, "anthropic-api-key", "", "API key for the Claude provider")
	fs.IntVar(&c.LLMTimeoutSeconds, "llm-timeout-seconds", 60, "per-call LLM timeout in seconds (1..600)")
	fs.IntVar(&c.DigestHours, "digest-hours", 24, "trailing digest window in hours (1..720)")
	fs.StringVar(&c.DigestOut, "digest-out", "-", "digest output path, or - for stdout")
	fs.BoolVar(&c.SkipIngest, "skip-ingest", false, "skip the ingest phase")
	fs.BoolVar(&c.SkipClassify, "skip-classify", false, "skip the classification phase")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for run notifications")

	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	switch c.LLMProvider {
	case ProviderOpenAI:
		if !c.SkipClassify && c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderClaude:
		if !c.SkipClassify && c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the claude provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be openai or claude)", c.LLMProvider))
	}

	if c.GatekeeperModel == "" {
		errs = append(errs, errors.New("GATEKEEPER_MODEL is required"))
	}
	if c.AnalystModel == "" {
		errs = append(errs, errors.New("ANALYST_MODEL is required"))
	}

	if c.LLMTimeoutSeconds <= 0 || c.LLMTimeoutSeconds > 600 {
		errs = append(errs, fmt.Errorf("invalid LLM_TIMEOUT_SECONDS %d (must be 1..600)", c.LLMTimeoutSeconds))
	}
	if c.DigestHours <= 0 || c.DigestHours > 720 {
		errs = append(errs, fmt.Errorf("invalid DIGEST_HOURS %d (must be 1..720)", c.DigestHours))
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
