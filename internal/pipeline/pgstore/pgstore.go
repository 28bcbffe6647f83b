// Package pgstore provides a PostgreSQL implementation of pipeline.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/prospect/internal/pipeline"
)

var tracer = otel.Tracer("github.com/linnemanlabs/prospect/internal/pipeline/pgstore")

//go:embed schema.sql
var schema string

// Store persists posts and alpha objects in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const postColumns = `post_id, url, username, text, created_at, scraped_at, text_hash,
	raw_json, gatekeeper_json, alpha_json, failure_count, last_error, processed_at`

// InsertIfNew inserts the post unless its id or text hash already exists.
// Both constraints live in the database, so the check-and-insert is atomic.
func (s *Store) InsertIfNew(ctx context.Context, p *pipeline.Post) (bool, error) {
	ctx, span := s.start(ctx, "pgstore.InsertIfNew", "INSERT")
	defer span.End()

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO raw_posts (post_id, url, username, text, created_at, scraped_at, text_hash, raw_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING`,
		p.PostID, p.URL, p.Username, p.Text, p.CreatedAt, p.ScrapedAt, p.TextHash, nullableJSON(p.RawJSON),
	)
	if err != nil {
		return false, s.fail(span, fmt.Errorf("insert post: %w", err))
	}
	return tag.RowsAffected() > 0, nil
}

// HasFingerprint reports whether any stored post carries the hash.
func (s *Store) HasFingerprint(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	ctx, span := s.start(ctx, "pgstore.HasFingerprint", "SELECT")
	defer span.End()

	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM raw_posts WHERE text_hash = $1 LIMIT 1`, hash,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(span, fmt.Errorf("query fingerprint: %w", err))
	}
	return true, nil
}

// WriteGatekeeperResult sets gatekeeper_json and bumps processed_at.
func (s *Store) WriteGatekeeperResult(ctx context.Context, postID string, decision json.RawMessage) error {
	ctx, span := s.start(ctx, "pgstore.WriteGatekeeperResult", "UPDATE")
	defer span.End()

	_, err := s.pool.Exec(ctx, `
		UPDATE raw_posts SET gatekeeper_json = $2, processed_at = now()
		WHERE post_id = $1`,
		postID, decision,
	)
	if err != nil {
		return s.fail(span, fmt.Errorf("update gatekeeper: %w", err))
	}
	return nil
}

// WriteAlphaObject sets alpha_json on the post and upserts the alpha row in
// one transaction, so a post never ends up half-written.
func (s *Store) WriteAlphaObject(ctx context.Context, postID string, alpha *pipeline.AlphaObject, createdAt string) error {
	ctx, span := s.start(ctx, "pgstore.WriteAlphaObject", "UPSERT")
	defer span.End()

	alphaJSON, err := json.Marshal(alpha)
	if err != nil {
		return s.fail(span, fmt.Errorf("marshal alpha: %w", err))
	}
	assetsJSON, err := json.Marshal(alpha.Assets)
	if err != nil {
		return s.fail(span, fmt.Errorf("marshal assets: %w", err))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return s.fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	if _, err := tx.Exec(ctx, `
		UPDATE raw_posts SET alpha_json = $2, processed_at = now()
		WHERE post_id = $1`,
		postID, alphaJSON,
	); err != nil {
		return s.fail(span, fmt.Errorf("update post alpha: %w", err))
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO alpha_objects (post_id, assets_json, stance, timeframe, extraction_confidence, alpha_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (post_id) DO UPDATE SET
			assets_json = EXCLUDED.assets_json,
			stance = EXCLUDED.stance,
			timeframe = EXCLUDED.timeframe,
			extraction_confidence = EXCLUDED.extraction_confidence,
			alpha_json = EXCLUDED.alpha_json,
			created_at = EXCLUDED.created_at`,
		postID, assetsJSON, alpha.Stance, alpha.Timeframe, alpha.ExtractionConfidence, alphaJSON, createdAt,
	); err != nil {
		return s.fail(span, fmt.Errorf("upsert alpha object: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return s.fail(span, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// RecordFailure marks a classifier failure without advancing post state.
func (s *Store) RecordFailure(ctx context.Context, postID, msg string) error {
	ctx, span := s.start(ctx, "pgstore.RecordFailure", "UPDATE")
	defer span.End()

	_, err := s.pool.Exec(ctx, `
		UPDATE raw_posts
		SET failure_count = failure_count + 1, last_error = $2, processed_at = now()
		WHERE post_id = $1`,
		postID, msg,
	)
	if err != nil {
		return s.fail(span, fmt.Errorf("record failure: %w", err))
	}
	return nil
}

// UnprocessedPosts returns posts with no gatekeeper result, most recent
// created_at first.
func (s *Store) UnprocessedPosts(ctx context.Context) ([]*pipeline.Post, error) {
	ctx, span := s.start(ctx, "pgstore.UnprocessedPosts", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT `+postColumns+`
		FROM raw_posts
		WHERE gatekeeper_json IS NULL
		ORDER BY created_at DESC, post_id DESC`)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("query unprocessed: %w", err))
	}
	defer rows.Close()

	var out []*pipeline.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, s.fail(span, fmt.Errorf("scan post: %w", err))
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(span, fmt.Errorf("iterate unprocessed: %w", err))
	}
	return out, nil
}

// ClassifiedSince returns classified posts whose effective timestamp is at or
// after the RFC 3339 cutoff, most recent first. The comparison is textual,
// which orders correctly for RFC 3339 values; rows with no timestamp fall
// outside every window.
func (s *Store) ClassifiedSince(ctx context.Context, cutoff string) ([]*pipeline.ClassifiedPost, error) {
	ctx, span := s.start(ctx, "pgstore.ClassifiedSince", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT p.post_id, p.url, p.username, p.text, p.created_at, p.scraped_at,
		       p.text_hash, p.raw_json, p.gatekeeper_json, p.alpha_json,
		       p.failure_count, p.last_error, p.processed_at,
		       a.alpha_json, a.created_at
		FROM raw_posts p
		JOIN alpha_objects a USING (post_id)
		WHERE p.alpha_json IS NOT NULL
		  AND COALESCE(NULLIF(p.created_at, ''), NULLIF(p.scraped_at, '')) >= $1
		ORDER BY p.created_at DESC, p.post_id DESC`,
		cutoff)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("query classified: %w", err))
	}
	defer rows.Close()

	var out []*pipeline.ClassifiedPost
	for rows.Next() {
		var alphaJSON []byte
		var createdAt string
		p := &pipeline.Post{}
		var processedAt *time.Time
		if err := rows.Scan(
			&p.PostID, &p.URL, &p.Username, &p.Text, &p.CreatedAt, &p.ScrapedAt,
			&p.TextHash, &p.RawJSON, &p.Gatekeeper, &p.Alpha,
			&p.FailureCnt, &p.LastError, &processedAt,
			&alphaJSON, &createdAt,
		); err != nil {
			return nil, s.fail(span, fmt.Errorf("scan classified: %w", err))
		}
		if processedAt != nil {
			p.ProcessedAt = *processedAt
		}
		alpha := &pipeline.AlphaObject{}
		if err := json.Unmarshal(alphaJSON, alpha); err != nil {
			return nil, s.fail(span, fmt.Errorf("decode alpha %s: %w", p.PostID, err))
		}
		out = append(out, &pipeline.ClassifiedPost{Post: p, Alpha: alpha, CreatedAt: createdAt})
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(span, fmt.Errorf("iterate classified: %w", err))
	}
	return out, nil
}

// GetPost retrieves a post by id.
func (s *Store) GetPost(ctx context.Context, postID string) (*pipeline.Post, bool, error) {
	ctx, span := s.start(ctx, "pgstore.GetPost", "SELECT")
	defer span.End()

	row := s.pool.QueryRow(ctx,
		`SELECT `+postColumns+` FROM raw_posts WHERE post_id = $1`, postID)
	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.fail(span, err)
	}
	return p, true, nil
}

// GetAlpha retrieves the alpha object for a post, if any.
func (s *Store) GetAlpha(ctx context.Context, postID string) (*pipeline.AlphaObject, bool, error) {
	ctx, span := s.start(ctx, "pgstore.GetAlpha", "SELECT")
	defer span.End()

	var alphaJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT alpha_json FROM alpha_objects WHERE post_id = $1`, postID,
	).Scan(&alphaJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.fail(span, fmt.Errorf("query alpha: %w", err))
	}
	alpha := &pipeline.AlphaObject{}
	if err := json.Unmarshal(alphaJSON, alpha); err != nil {
		return nil, false, s.fail(span, fmt.Errorf("decode alpha: %w", err))
	}
	return alpha, true, nil
}

func (s *Store) start(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func (s *Store) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*pipeline.Post, error) {
	p := &pipeline.Post{}
	var processedAt *time.Time
	if err := row.Scan(
		&p.PostID, &p.URL, &p.Username, &p.Text, &p.CreatedAt, &p.ScrapedAt,
		&p.TextHash, &p.RawJSON, &p.Gatekeeper, &p.Alpha,
		&p.FailureCnt, &p.LastError, &processedAt,
	); err != nil {
		// pgx.ErrNoRows passes through for callers that map it to not-found
		return nil, err
	}
	if processedAt != nil {
		p.ProcessedAt = *processedAt
	}
	return p, nil
}
