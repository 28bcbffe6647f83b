// Package slack sends pipeline run summaries to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxDigestLen = 3000
	httpTimeout  = 10 * time.Second
)

// Summary describes one completed pipeline run for notification purposes.
type Summary struct {
	RunID         string
	Ingested      int
	Duplicates    int
	Processed     int
	Analyzed      int
	Skipped       int
	Stage0Skipped int
	Failed        int
	Duration      time.Duration
	Digest        string
	CompletedAt   time.Time
}

// Notifier sends run summaries to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts a run summary to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, s *Summary) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(s)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(s *Summary) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(s),
			{"type": "divider"},
			fieldsBlock(s),
			{"type": "divider"},
			digestBlock(s),
			{"type": "divider"},
			contextBlock(s),
		},
	}
}

func headerBlock(s *Summary) map[string]any {
	emoji := runEmoji(s)
	title := "Pipeline Run Complete"
	if s.Failed > 0 && s.Analyzed == 0 {
		title = "Pipeline Run Failed"
	}
	text := fmt.Sprintf("%s %s: %d analyzed", emoji, title, s.Analyzed)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(s *Summary) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Ingested:* %d (%d dup)", s.Ingested, s.Duplicates),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Processed:* %d", s.Processed),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Analyzed:* %d", s.Analyzed),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Skipped:* %d (+%d prefilter)", s.Skipped, s.Stage0Skipped),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Failed:* %d", s.Failed),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", s.Duration.Seconds()),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func digestBlock(s *Summary) map[string]any {
	text := truncate(s.Digest, maxDigestLen)
	if text == "" {
		text = "_No digest available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Digest*\n\n%s", text),
		},
	}
}

func contextBlock(s *Summary) map[string]any {
	ts := s.CompletedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("prospect • run %s • %s", s.RunID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func runEmoji(s *Summary) string {
	switch {
	case s.Failed > 0 && s.Analyzed == 0:
		return "\U0001f534" // red circle
	case s.Failed > 0:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
