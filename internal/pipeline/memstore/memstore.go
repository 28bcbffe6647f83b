// Package memstore provides an in-memory implementation of pipeline.Store.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/prospect/internal/pipeline"
)

type alphaRow struct {
	alpha     *pipeline.AlphaObject
	createdAt string
}

// Store holds posts and alpha objects in memory. Suitable for dev/testing and
// dry runs without a database.
type Store struct {
	mu     sync.RWMutex
	posts  map[string]*pipeline.Post // post ID -> post
	hashes map[string]string         // text hash -> post ID (dedup)
	alphas map[string]*alphaRow      // post ID -> alpha
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		posts:  make(map[string]*pipeline.Post),
		hashes: make(map[string]string),
		alphas: make(map[string]*alphaRow),
	}
}

// InsertIfNew stores a copy of the post unless its id or text hash exists.
func (s *Store) InsertIfNew(_ context.Context, p *pipeline.Post) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[p.PostID]; ok {
		return false, nil
	}
	if p.TextHash != "" {
		if _, ok := s.hashes[p.TextHash]; ok {
			return false, nil
		}
		s.hashes[p.TextHash] = p.PostID
	}
	cp := *p
	s.posts[p.PostID] = &cp
	return true, nil
}

// HasFingerprint reports whether any stored post carries the hash.
func (s *Store) HasFingerprint(_ context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hashes[hash]
	return ok, nil
}

// WriteGatekeeperResult sets gatekeeper_json and bumps processed_at.
func (s *Store) WriteGatekeeperResult(_ context.Context, postID string, decision json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil
	}
	p.Gatekeeper = append(json.RawMessage(nil), decision...)
	p.ProcessedAt = time.Now()
	return nil
}

// WriteAlphaObject sets alpha_json on the post and replaces the alpha row.
func (s *Store) WriteAlphaObject(_ context.Context, postID string, alpha *pipeline.AlphaObject, createdAt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(alpha)
	if err != nil {
		return err
	}
	cp := *alpha
	s.alphas[postID] = &alphaRow{alpha: &cp, createdAt: createdAt}
	if p, ok := s.posts[postID]; ok {
		p.Alpha = raw
		p.ProcessedAt = time.Now()
	}
	return nil
}

// RecordFailure marks a classifier failure without advancing post state.
func (s *Store) RecordFailure(_ context.Context, postID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil
	}
	p.FailureCnt++
	p.LastError = msg
	p.ProcessedAt = time.Now()
	return nil
}

// UnprocessedPosts returns copies of posts with no gatekeeper result, most
// recent created_at first.
func (s *Store) UnprocessedPosts(_ context.Context) ([]*pipeline.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*pipeline.Post
	for _, p := range s.posts {
		if p.Gatekeeper != nil {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].PostID > out[j].PostID
	})
	return out, nil
}

// ClassifiedSince returns classified posts whose effective timestamp is at or
// after the RFC 3339 cutoff, most recent first. Timestamps compare as
// strings, which orders correctly for RFC 3339 values.
func (s *Store) ClassifiedSince(_ context.Context, cutoff string) ([]*pipeline.ClassifiedPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*pipeline.ClassifiedPost
	for id, row := range s.alphas {
		p, ok := s.posts[id]
		if !ok || p.Alpha == nil {
			continue
		}
		ts := p.CreatedAt
		if ts == "" {
			ts = p.ScrapedAt
		}
		if ts < cutoff {
			continue
		}
		pc := *p
		ac := *row.alpha
		out = append(out, &pipeline.ClassifiedPost{Post: &pc, Alpha: &ac, CreatedAt: row.createdAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Post.CreatedAt != out[j].Post.CreatedAt {
			return out[i].Post.CreatedAt > out[j].Post.CreatedAt
		}
		return out[i].Post.PostID > out[j].Post.PostID
	})
	return out, nil
}

// GetPost retrieves a post by id. Returns a copy.
func (s *Store) GetPost(_ context.Context, postID string) (*pipeline.Post, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil, false, nil
	}
	cp := *p
	return &cp, true, nil
}

// GetAlpha retrieves the alpha object for a post. Returns a copy.
func (s *Store) GetAlpha(_ context.Context, postID string) (*pipeline.AlphaObject, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.alphas[postID]
	if !ok {
		return nil, false, nil
	}
	cp := *row.alpha
	return &cp, true, nil
}
