package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linnemanlabs/prospect/internal/pipeline"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &gotBody); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"{\"ok\":true}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := New("test-key", srv.URL)
	out, err := c.Extract(context.Background(), &pipeline.ExtractRequest{
		Model:      "gpt-4o-mini",
		System:     "classify",
		UserText:   "hello",
		Schema:     json.RawMessage(`{"type":"object"}`),
		SchemaName: "gatekeeper_result",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if string(out) != `{"ok":true}` {
		t.Errorf("out = %s", out)
	}

	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("request model = %q", gotBody.Model)
	}
	if gotBody.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", gotBody.Temperature)
	}
	if gotBody.ResponseFormat.Type != "json_schema" {
		t.Errorf("response_format type = %q", gotBody.ResponseFormat.Type)
	}
	if !gotBody.ResponseFormat.JSONSchema.Strict {
		t.Error("schema strict = false, want true")
	}
	if gotBody.ResponseFormat.JSONSchema.Name != "gatekeeper_result" {
		t.Errorf("schema name = %q", gotBody.ResponseFormat.JSONSchema.Name)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" || gotBody.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}
}

func TestExtractAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New("k", srv.URL)
	_, err := c.Extract(context.Background(), &pipeline.ExtractRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestExtractEmptyContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":""},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := New("k", srv.URL)
	if _, err := c.Extract(context.Background(), &pipeline.ExtractRequest{Model: "m"}); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestExtractRefusal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"","refusal":"no"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := New("k", srv.URL)
	if _, err := c.Extract(context.Background(), &pipeline.ExtractRequest{Model: "m"}); err == nil {
		t.Fatal("expected error for refusal")
	}
}
