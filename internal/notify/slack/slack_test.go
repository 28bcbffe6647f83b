package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	summary := &Summary{
		RunID:         "01JN123",
		Ingested:      120,
		Duplicates:    14,
		Processed:     40,
		Analyzed:      9,
		Skipped:       25,
		Stage0Skipped: 6,
		Failed:        0,
		Duration:      83 * time.Second,
		Digest:        "# Digest (last 24h)\n\n## BTC — long:2",
		CompletedAt:   time.Date(2026, 8, 30, 14, 23, 0, 0, time.UTC),
	}

	if err := n.Send(context.Background(), summary); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, digest, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "9 analyzed") {
		t.Errorf("header text = %q, want to contain analyzed count", headerText)
	}
	if !strings.Contains(headerText, "\U0001f7e2") {
		t.Errorf("header should contain green circle for a clean run")
	}

	footer := blocks[6].(map[string]any)
	footerText := footer["elements"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(footerText, "run 01JN123") {
		t.Errorf("context text = %q, want to contain run id", footerText)
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.Send(context.Background(), &Summary{}); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_WebhookError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.Send(context.Background(), &Summary{}); err == nil {
		t.Fatal("expected error for non-2xx webhook response")
	}
}

func TestSend_TruncatesLongDigest(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	n := New(srv.URL)
	summary := &Summary{Digest: strings.Repeat("x", maxDigestLen*2)}
	if err := n.Send(context.Background(), summary); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	digestText := blocks[4].(map[string]any)["text"].(map[string]any)["text"].(string)
	if len(digestText) > maxDigestLen+len("*Digest*\n\n") {
		t.Errorf("digest block len = %d, want truncated", len(digestText))
	}
	if !strings.HasSuffix(digestText, "...") {
		t.Error("truncated digest should end with ellipsis")
	}
}

func TestRunEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    Summary
		want string
	}{
		{"clean run", Summary{Analyzed: 3}, "\U0001f7e2"},
		{"partial failures", Summary{Analyzed: 3, Failed: 1}, "\U0001f7e1"},
		{"all failed", Summary{Failed: 4}, "\U0001f534"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := runEmoji(&tt.s); got != tt.want {
				t.Errorf("runEmoji = %q, want %q", got, tt.want)
			}
		})
	}
}
