// Package ingest reads scraper-produced JSONL post records and writes the
// novel ones to the store, deduplicating by post id and by content
// fingerprint.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/prospect/internal/pipeline"
)

// Result counts what one ingestion pass did with the input records.
type Result struct {
	Inserted   int
	Duplicates int
	MissingID  int
	Malformed  int
}

// Ingester deduplicates and stores incoming post records.
type Ingester struct {
	store  pipeline.Store
	logger log.Logger
}

// New creates an ingester.
func New(store pipeline.Store, logger log.Logger) *Ingester {
	if logger == nil {
		logger = log.Nop()
	}
	return &Ingester{store: store, logger: logger}
}

// Run ingests one JSONL record per line. Blank lines are skipped; malformed
// lines and records without an identifier are counted and dropped without
// failing the run. Store errors are fatal.
func (g *Ingester) Run(ctx context.Context, r io.Reader) (*Result, error) {
	res := &Result{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var fields map[string]any
		if err := json.Unmarshal(line, &fields); err != nil {
			res.Malformed++
			g.logger.Warn(ctx, "malformed record skipped", "error", err.Error())
			continue
		}

		postID := stringField(fields, "post_id")
		if postID == "" {
			postID = stringField(fields, "id")
		}
		if postID == "" {
			// spec'd as a silent drop, not an error
			res.MissingID++
			continue
		}

		text := stringField(fields, "text")
		p := &pipeline.Post{
			PostID:    postID,
			URL:       stringField(fields, "url"),
			Username:  stringField(fields, "username"),
			Text:      text,
			CreatedAt: stringField(fields, "created_at"),
			ScrapedAt: stringField(fields, "scraped_at"),
			TextHash:  pipeline.TextHash(text),
			RawJSON:   append(json.RawMessage(nil), line...),
		}

		// cheap pre-check; the store enforces both axes atomically anyway
		seen, err := g.store.HasFingerprint(ctx, p.TextHash)
		if err != nil {
			return res, fmt.Errorf("fingerprint check: %w", err)
		}
		if seen {
			res.Duplicates++
			continue
		}

		inserted, err := g.store.InsertIfNew(ctx, p)
		if err != nil {
			return res, fmt.Errorf("insert post %s: %w", p.PostID, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Duplicates++
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read input: %w", err)
	}

	g.logger.Info(ctx, "ingestion complete",
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
		"missing_id", res.MissingID,
		"malformed", res.Malformed,
	)
	return res, nil
}

// RunFile ingests a JSONL file by path.
func (g *Ingester) RunFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()
	return g.Run(ctx, f)
}

// stringField pulls a field that may arrive as a string or a JSON number;
// scraper output is loosely typed.
func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
