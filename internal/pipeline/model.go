package pipeline

import (
	"encoding/json"
	"time"
)

// State tracks where a post is in the classification lifecycle. The state is
// implicit in the stored row (absence of gatekeeper_json means unprocessed);
// State makes it explicit for the engine and its callers.
type State string

const (
	// StateUnprocessed means ingested, not yet touched by the pipeline
	StateUnprocessed State = "unprocessed"

	// StateStage0Skipped means rejected by the local prefilter, no remote call made
	StateStage0Skipped State = "stage0_skipped"

	// StateSkipped means the gatekeeper judged the post not worth analyzing
	StateSkipped State = "skipped"

	// StateAnalyzed means the analyst produced an alpha object and guardrails ran
	StateAnalyzed State = "analyzed"

	// StateFailed means a remote call failed for this post; the batch continues
	StateFailed State = "failed"
)

// Post is one scraped social post. Timestamp fields travel as the strings the
// scraper emitted (RFC 3339 when present); the pipeline never re-parses
// RawJSON.
type Post struct {
	PostID      string          `json:"post_id"`
	URL         string          `json:"url,omitempty"`
	Username    string          `json:"username,omitempty"`
	Text        string          `json:"text,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
	ScrapedAt   string          `json:"scraped_at,omitempty"`
	TextHash    string          `json:"text_hash"`
	RawJSON     json.RawMessage `json:"raw_json,omitempty"`
	Gatekeeper  json.RawMessage `json:"gatekeeper_json,omitempty"`
	Alpha       json.RawMessage `json:"alpha_json,omitempty"`
	FailureCnt  int             `json:"failure_count,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	ProcessedAt time.Time       `json:"processed_at,omitempty"`
}

// GatekeeperDecision is the stage-1 output schema. A stage-0 skip persists a
// synthetic decision with Skipped set and Reason "stage0".
type GatekeeperDecision struct {
	Skipped                 bool   `json:"skipped,omitempty"`
	Reason                  string `json:"reason,omitempty"`
	IsFinanceRelevant       bool   `json:"is_finance_relevant"`
	IsActionableTradeIdea   bool   `json:"is_actionable_trade_idea"`
	HasMediaWorthProcessing bool   `json:"has_media_worth_processing"`
}

// Proceed reports whether the decision clears the post for the analyst stage.
func (d *GatekeeperDecision) Proceed() bool {
	return d.IsFinanceRelevant && (d.IsActionableTradeIdea || d.HasMediaWorthProcessing)
}

// KeyLevels are the numeric levels the analyst extracted, if the source text
// actually stated any.
type KeyLevels struct {
	Entry        *float64  `json:"entry"`
	Invalidation *float64  `json:"invalidation"`
	Targets      []float64 `json:"targets"`
}

// EvidenceLink is one supporting URL cited by the analyst.
type EvidenceLink struct {
	URL  string `json:"url"`
	Note string `json:"note,omitempty"`
}

// Evidence groups the analyst's supporting material.
type Evidence struct {
	Links []EvidenceLink `json:"links"`
}

// Origin identifies where the trade idea came from. The guardrails fill any
// field the model left empty from locally known values.
type Origin struct {
	AuthorID          *string  `json:"author_id"`
	Username          *string  `json:"username"`
	PostID            string   `json:"post_id"`
	PostURL           *string  `json:"post_url"`
	IsRetweetOrRepost bool     `json:"is_retweet_or_repost"`
	IsQuote           bool     `json:"is_quote"`
	ThreadPostIDs     []string `json:"thread_post_ids"`
}

// AlphaObject is the structured trade idea the analyst stage extracts from a
// post. At most one exists per post; writes replace.
type AlphaObject struct {
	Assets               []string  `json:"assets"`
	Stance               string    `json:"stance"`
	Timeframe            string    `json:"timeframe"`
	KeyLevels            KeyLevels `json:"key_levels"`
	RationaleBullets     []string  `json:"rationale_bullets"`
	Evidence             Evidence  `json:"evidence"`
	ExtractionConfidence float64   `json:"extraction_confidence"`
	Origin               Origin    `json:"origin"`
	Ambiguities          []string  `json:"ambiguities"`
}

// ClassifiedPost pairs a post with its extracted alpha object, as returned by
// Store.ClassifiedSince. CreatedAt is the alpha row's effective timestamp.
type ClassifiedPost struct {
	Post      *Post
	Alpha     *AlphaObject
	CreatedAt string
}

// EffectiveCreatedAt resolves the timestamp an alpha write should carry:
// post created_at, else scraped_at, else now in RFC 3339 UTC.
func EffectiveCreatedAt(p *Post, now func() time.Time) string {
	if p.CreatedAt != "" {
		return p.CreatedAt
	}
	if p.ScrapedAt != "" {
		return p.ScrapedAt
	}
	return now().UTC().Format(time.RFC3339)
}
