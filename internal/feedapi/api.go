// Package feedapi serves the read-only HTTP surface over classified posts:
// stored posts, extracted alpha objects, and the rendered digest.
package feedapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/prospect/internal/pipeline"
)

// DefaultDigestHours is the digest window used when no hours query
// parameter is supplied.
const DefaultDigestHours = 24

// PostReader defines the store operations the API needs.
type PostReader interface {
	GetPost(ctx context.Context, postID string) (*pipeline.Post, bool, error)
	GetAlpha(ctx context.Context, postID string) (*pipeline.AlphaObject, bool, error)
}

// DigestBuilder renders the per-asset digest for a trailing window.
type DigestBuilder interface {
	Build(ctx context.Context, hours int) (string, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	store  PostReader
	digest DigestBuilder
}

// New creates a new API handler.
func New(logger log.Logger, store PostReader, digest DigestBuilder) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if store == nil {
		panic(xerrors.New("post reader is required"))
	}
	if digest == nil {
		panic(xerrors.New("digest builder is required"))
	}
	return &API{
		logger: logger,
		store:  store,
		digest: digest,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/digest", a.handleDigest)
		r.Get("/posts/{id}", a.handleGetPost)
		r.Get("/alphas/{id}", a.handleGetAlpha)
	})
}

func (a *API) handleDigest(w http.ResponseWriter, r *http.Request) {
	hours := DefaultDigestHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, `{"error":"hours must be a positive integer"}`, http.StatusBadRequest)
			return
		}
		hours = n
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("prospect.digest.hours", hours))

	out, err := a.digest.Build(r.Context(), hours)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to build digest", "hours", hours)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

func (a *API) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("prospect.post.id", id))

	post, ok, err := a.store.GetPost(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get post", "post_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(post)
}

func (a *API) handleGetAlpha(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("prospect.post.id", id))

	alpha, ok, err := a.store.GetAlpha(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get alpha object", "post_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(alpha)
}
