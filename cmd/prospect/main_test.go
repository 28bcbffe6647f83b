package main

import (
	"os"
	"path/filepath"
	"testing"

	pc "github.com/linnemanlabs/prospect/internal/cfg"
)

func TestWriteDigest_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "digest.md")
	content := "# Digest (last 24h)\n\n_No posts in window._\n"

	if err := writeDigest(path, content); err != nil {
		t.Fatalf("writeDigest: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != content {
		t.Errorf("file content = %q, want %q", got, content)
	}
}

func TestNewExtractor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{"openai", pc.ProviderOpenAI, false},
		{"claude", pc.ProviderClaude, false},
		{"unknown", "gemini", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := &pc.Config{LLMProvider: tt.provider}
			ex, err := newExtractor(c)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown provider")
				}
				return
			}
			if err != nil {
				t.Fatalf("newExtractor: %v", err)
			}
			if ex == nil {
				t.Fatal("newExtractor returned nil extractor")
			}
		})
	}
}
