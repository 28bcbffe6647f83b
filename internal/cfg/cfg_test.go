package cfg

import (
	"flag"
	"strings"
	"testing"
)

func validConfig() *Config {
	c := &Config{}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	c.OpenAIAPIKey = "sk-test"
	return c
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	c := &Config{}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if c.LLMProvider != ProviderOpenAI {
		t.Errorf("LLMProvider = %q, want openai", c.LLMProvider)
	}
	if c.LLMTimeoutSeconds != 60 {
		t.Errorf("LLMTimeoutSeconds = %d, want 60", c.LLMTimeoutSeconds)
	}
	if c.DigestHours != 24 {
		t.Errorf("DigestHours = %d, want 24", c.DigestHours)
	}
	if c.DigestOut != "-" {
		t.Errorf("DigestOut = %q, want -", c.DigestOut)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
}

func TestRegisterFlags_Parse(t *testing.T) {
	t.Parallel()

	c := &Config{}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	err := fs.Parse([]string{
		"-input", "posts.jsonl",
		"-llm-provider", "claude",
		"-anthropic-api-key", "key",
		"-digest-hours", "6",
		"-skip-ingest",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if c.InputPath != "posts.jsonl" {
		t.Errorf("InputPath = %q", c.InputPath)
	}
	if c.LLMProvider != ProviderClaude {
		t.Errorf("LLMProvider = %q", c.LLMProvider)
	}
	if c.DigestHours != 6 {
		t.Errorf("DigestHours = %d", c.DigestHours)
	}
	if !c.SkipIngest {
		t.Error("SkipIngest = false, want true")
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"missing openai key", func(c *Config) { c.OpenAIAPIKey = "" }, "OPENAI_API_KEY"},
		{"missing anthropic key", func(c *Config) { c.LLMProvider = ProviderClaude; c.AnthropicAPIKey = "" }, "ANTHROPIC_API_KEY"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "gemini" }, "LLM_PROVIDER"},
		{"empty gatekeeper model", func(c *Config) { c.GatekeeperModel = "" }, "GATEKEEPER_MODEL"},
		{"empty analyst model", func(c *Config) { c.AnalystModel = "" }, "ANALYST_MODEL"},
		{"timeout too small", func(c *Config) { c.LLMTimeoutSeconds = 0 }, "LLM_TIMEOUT_SECONDS"},
		{"timeout too large", func(c *Config) { c.LLMTimeoutSeconds = 601 }, "LLM_TIMEOUT_SECONDS"},
		{"digest hours zero", func(c *Config) { c.DigestHours = 0 }, "DIGEST_HOURS"},
		{"digest hours too large", func(c *Config) { c.DigestHours = 1000 }, "DIGEST_HOURS"},
		{"bad port", func(c *Config) { c.APIPort = 70000 }, "HTTP_PORT"},
		{"drain too large", func(c *Config) { c.DrainSeconds = 301 }, "DRAIN_SECONDS"},
		{"budget below drain", func(c *Config) { c.ShutdownBudgetSeconds = c.DrainSeconds }, "must be greater than"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("Validate returned nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_SkipClassifyNeedsNoKey(t *testing.T) {
	t.Parallel()

	c := validConfig()
	c.OpenAIAPIKey = ""
	c.SkipClassify = true
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate with skip-classify: %v", err)
	}
}
