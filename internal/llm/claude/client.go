// Package claude implements the pipeline extractor on the Anthropic
// Messages API. Claude has no native JSON-schema response mode, so the
// schema is inlined into the system prompt and the reply is stripped of
// markdown fencing before it is returned.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/prospect/internal/pipeline"
)

// Client calls the Anthropic Messages API and returns raw JSON payloads.
type Client struct {
	client anthropic.Client
}

// New creates a client authenticated with the given API key.
func New(apiKey string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Extract sends one extraction request and returns the model's JSON reply.
func (c *Client) Extract(ctx context.Context, req *pipeline.ExtractRequest) (json.RawMessage, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	system := fmt.Sprintf(
		"%s\n\nRespond with a single JSON object named %q that conforms to this JSON schema. Output only the JSON object, no prose.\n\n%s",
		req.System, req.SchemaName, string(req.Schema))

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserText)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("anthropic messages: empty response content")
	}

	text := cleanJSONResponse(resp.Content[0].Text)
	if text == "" {
		return nil, fmt.Errorf("anthropic messages: empty text response")
	}
	var probe any
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return nil, fmt.Errorf("anthropic messages: response is not JSON: %w", err)
	}
	return json.RawMessage(text), nil
}

// cleanJSONResponse strips markdown code fences that models sometimes wrap
// around JSON output.
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
