package pipeline

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// RunResult summarizes one batch classification run.
// Processed = Analyzed + Skipped + Stage0Skipped + Failed.
type RunResult struct {
	RunID         string
	Processed     int
	Analyzed      int
	Skipped       int
	Stage0Skipped int
	Failed        int
}

// Service is the batch driver: it selects unprocessed posts and runs each
// through the engine independently, so one post's classifier failure never
// halts the rest (store failures still abort the run).
type Service struct {
	store  Store
	engine *Engine
	logger log.Logger
}

// NewService creates a batch classification service.
func NewService(store Store, engine *Engine, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{store: store, engine: engine, logger: logger}
}

// ProcessAll classifies every unprocessed post, most recent first. Context
// cancellation stops cleanly between posts; completed work stays committed.
func (s *Service) ProcessAll(ctx context.Context) (*RunResult, error) {
	rr := &RunResult{RunID: ulid.Make().String()}
	L := s.logger.With("run_id", rr.RunID)

	posts, err := s.store.UnprocessedPosts(ctx)
	if err != nil {
		return rr, fmt.Errorf("query unprocessed: %w", err)
	}
	L.Info(ctx, "classification run started", "pending", len(posts))

	for _, p := range posts {
		if err := ctx.Err(); err != nil {
			L.Warn(ctx, "run interrupted", "processed", rr.Processed, "pending", len(posts)-rr.Processed)
			return rr, err
		}

		outcome, err := s.engine.Process(ctx, p)
		if err != nil {
			return rr, fmt.Errorf("post %s: %w", p.PostID, err)
		}

		rr.Processed++
		switch outcome.State {
		case StateAnalyzed:
			rr.Analyzed++
		case StateSkipped:
			rr.Skipped++
		case StateStage0Skipped:
			rr.Stage0Skipped++
		case StateFailed:
			rr.Failed++
		}
	}

	L.Info(ctx, "classification run complete",
		"processed", rr.Processed,
		"analyzed", rr.Analyzed,
		"skipped", rr.Skipped,
		"stage0_skipped", rr.Stage0Skipped,
		"failed", rr.Failed,
	)
	return rr, nil
}
