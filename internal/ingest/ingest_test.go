package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/linnemanlabs/prospect/internal/pipeline/memstore"
)

func TestRun_InsertsAndCounts(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"post_id":"1","username":"trader","text":"long $BTC entry 61000","created_at":"2026-08-30T10:00:00Z"}`,
		``,
		`{"id":2,"text":"short $ETH"}`,
		`not json`,
		`{"username":"noone","text":"no identifier here"}`,
	}, "\n")

	store := memstore.New()
	res, err := New(store, nil).Run(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2", res.Inserted)
	}
	if res.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", res.Malformed)
	}
	if res.MissingID != 1 {
		t.Errorf("MissingID = %d, want 1", res.MissingID)
	}
	if res.Duplicates != 0 {
		t.Errorf("Duplicates = %d, want 0", res.Duplicates)
	}

	// numeric id coerced to its decimal string
	p, ok, err := store.GetPost(context.Background(), "2")
	if err != nil || !ok {
		t.Fatalf("GetPost(2): ok=%v err=%v", ok, err)
	}
	if p.Text != "short $ETH" {
		t.Errorf("text = %q", p.Text)
	}
	if p.RawJSON == nil {
		t.Error("raw json should be preserved")
	}
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()

	input := `{"post_id":"1","text":"long $BTC"}` + "\n"
	store := memstore.New()
	ing := New(store, nil)

	if _, err := ing.Run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatal(err)
	}
	res, err := ing.Run(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 0 || res.Duplicates != 1 {
		t.Errorf("second pass inserted=%d duplicates=%d, want 0 and 1", res.Inserted, res.Duplicates)
	}
}

func TestRun_FingerprintDedupAcrossIDs(t *testing.T) {
	t.Parallel()

	// different post ids, same text after normalization
	input := strings.Join([]string{
		`{"post_id":"1","text":"Long   $BTC"}`,
		`{"post_id":"2","text":"long $btc"}`,
	}, "\n")

	store := memstore.New()
	res, err := New(store, nil).Run(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 || res.Duplicates != 1 {
		t.Errorf("inserted=%d duplicates=%d, want 1 and 1", res.Inserted, res.Duplicates)
	}
	if _, ok, _ := store.GetPost(context.Background(), "2"); ok {
		t.Error("post 2 should have been dropped as a content duplicate")
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := `{"post_id":"1","text":"x"}` + "\n"
	_, err := New(memstore.New(), nil).Run(ctx, strings.NewReader(input))
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRunFile_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := New(memstore.New(), nil).RunFile(context.Background(), "/nonexistent/posts.jsonl")
	if err == nil {
		t.Fatal("expected error for missing input file")
	}
}

func TestStringField(t *testing.T) {
	t.Parallel()

	fields := map[string]any{
		"s": "abc",
		"i": float64(42),
		"f": 1.5,
		"b": true,
	}
	if got := stringField(fields, "s"); got != "abc" {
		t.Errorf("string field = %q", got)
	}
	if got := stringField(fields, "i"); got != "42" {
		t.Errorf("integer field = %q", got)
	}
	if got := stringField(fields, "f"); got != "1.5" {
		t.Errorf("float field = %q", got)
	}
	if got := stringField(fields, "b"); got != "" {
		t.Errorf("bool field = %q, want empty", got)
	}
	if got := stringField(fields, "missing"); got != "" {
		t.Errorf("missing field = %q, want empty", got)
	}
}
