package pipeline

import (
	"context"
	"encoding/json"
)

// Store is the persistence interface for posts and alpha objects. Both
// uniqueness invariants (post_id, text_hash) are enforced here, not by
// callers, so racing ingesters stay idempotent.
type Store interface {
	// InsertIfNew stores the post and reports true iff it was newly
	// inserted. A post whose id or text hash already exists is a no-op.
	InsertIfNew(ctx context.Context, p *Post) (bool, error)

	// HasFingerprint reports whether any stored post carries the hash.
	// An empty hash is never considered present.
	HasFingerprint(ctx context.Context, hash string) (bool, error)

	// WriteGatekeeperResult sets gatekeeper_json exactly once per post and
	// bumps processed_at.
	WriteGatekeeperResult(ctx context.Context, postID string, decision json.RawMessage) error

	// WriteAlphaObject sets alpha_json on the post and upserts the alpha
	// row (replace-on-write), with the given effective created_at.
	WriteAlphaObject(ctx context.Context, postID string, alpha *AlphaObject, createdAt string) error

	// RecordFailure marks a classifier failure on the post without
	// advancing its state.
	RecordFailure(ctx context.Context, postID, msg string) error

	// UnprocessedPosts returns posts with null gatekeeper_json, most
	// recent created_at first.
	UnprocessedPosts(ctx context.Context) ([]*Post, error)

	// ClassifiedSince returns posts with a non-null alpha_json whose
	// effective timestamp (created_at falling back to scraped_at) is at
	// or after the RFC 3339 cutoff, most recent first.
	ClassifiedSince(ctx context.Context, cutoff string) ([]*ClassifiedPost, error)

	// GetPost retrieves a post by id.
	GetPost(ctx context.Context, postID string) (*Post, bool, error)

	// GetAlpha retrieves the alpha object for a post, if any.
	GetAlpha(ctx context.Context, postID string) (*AlphaObject, bool, error)
}
