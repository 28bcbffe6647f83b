package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

var tracer = otel.Tracer("github.com/linnemanlabs/prospect/internal/pipeline")

const defaultCallTimeout = 60 * time.Second

// Outcome is the terminal result of running one post through the engine.
// Err is set only for classifier failures; store failures abort the batch
// and are returned separately.
type Outcome struct {
	PostID     string
	State      State
	Gatekeeper *GatekeeperDecision
	Alpha      *AlphaObject
	Err        error
}

// EngineHooks are optional callbacks for instrumentation. Nil fields are
// skipped.
type EngineHooks struct {
	OnLLMCall      func(stage string, duration float64, err error)
	OnPostComplete func(state State)
}

// Engine runs the per-post stage machine: local prefilter, remote gatekeeper,
// remote analyst, deterministic guardrails. Writes are interleaved so the
// gatekeeper decision is durable before the analyst call starts.
type Engine struct {
	store       Store
	extractor   Extractor
	gatekeeper  Stage
	analyst     Stage
	callTimeout time.Duration
	logger      log.Logger
	hooks       EngineHooks
	now         func() time.Time
}

// NewEngine creates an engine. A non-positive callTimeout falls back to 60s.
func NewEngine(store Store, extractor Extractor, gatekeeper, analyst Stage, callTimeout time.Duration, logger log.Logger, hooks EngineHooks) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Engine{
		store:       store,
		extractor:   extractor,
		gatekeeper:  gatekeeper,
		analyst:     analyst,
		callTimeout: callTimeout,
		logger:      logger,
		hooks:       hooks,
		now:         time.Now,
	}
}

// Process classifies one post. The returned error is a store failure and is
// fatal to the batch; classifier failures land in Outcome.Err with the
// failure recorded on the post so the batch can continue.
func (e *Engine) Process(ctx context.Context, p *Post) (*Outcome, error) {
	L := e.logger.With("post_id", p.PostID)

	// stage 0: no remote call for obvious noise
	if !Stage0Keep(p.Text) {
		decision := Stage0SkipDecision()
		raw, _ := json.Marshal(decision)
		if err := e.store.WriteGatekeeperResult(ctx, p.PostID, raw); err != nil {
			return nil, fmt.Errorf("write stage0 skip: %w", err)
		}
		L.Info(ctx, "stage0 skip")
		return e.complete(&Outcome{PostID: p.PostID, State: StateStage0Skipped, Gatekeeper: decision}), nil
	}

	// stage 1: gatekeeper
	rawGate, err := e.extract(ctx, "gatekeeper", e.gatekeeper, p.PostID, p.Text)
	if err != nil {
		return e.fail(ctx, p, fmt.Errorf("gatekeeper call: %w", err))
	}
	var decision GatekeeperDecision
	if err := json.Unmarshal(rawGate, &decision); err != nil {
		return e.fail(ctx, p, fmt.Errorf("gatekeeper decode: %w", err))
	}

	// the raw decision is the audit trail; persist it no matter the outcome
	if err := e.store.WriteGatekeeperResult(ctx, p.PostID, rawGate); err != nil {
		return nil, fmt.Errorf("write gatekeeper result: %w", err)
	}

	if !decision.Proceed() {
		L.Info(ctx, "gatekeeper skip",
			"finance_relevant", decision.IsFinanceRelevant,
			"actionable", decision.IsActionableTradeIdea,
			"has_media", decision.HasMediaWorthProcessing,
		)
		return e.complete(&Outcome{PostID: p.PostID, State: StateSkipped, Gatekeeper: &decision}), nil
	}

	// stage 2: analyst
	rawAlpha, err := e.extract(ctx, "analyst", e.analyst, p.PostID, analystInput(p))
	if err != nil {
		return e.fail(ctx, p, fmt.Errorf("analyst call: %w", err))
	}
	var alpha AlphaObject
	if err := json.Unmarshal(rawAlpha, &alpha); err != nil {
		return e.fail(ctx, p, fmt.Errorf("analyst decode: %w", err))
	}

	EnsureOrigin(&alpha, p.PostID, p.URL, p.Username)
	ApplyMissingLevelsGuardrail(&alpha, p.Text)

	createdAt := EffectiveCreatedAt(p, e.now)
	if err := e.store.WriteAlphaObject(ctx, p.PostID, &alpha, createdAt); err != nil {
		return nil, fmt.Errorf("write alpha object: %w", err)
	}

	L.Info(ctx, "post analyzed",
		"assets", alpha.Assets,
		"stance", alpha.Stance,
		"confidence", alpha.ExtractionConfidence,
	)
	return e.complete(&Outcome{PostID: p.PostID, State: StateAnalyzed, Gatekeeper: &decision, Alpha: &alpha}), nil
}

func (e *Engine) extract(ctx context.Context, name string, st Stage, postID, userText string) (json.RawMessage, error) {
	cctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	cctx, span := tracer.Start(cctx, "llm.extract", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "llm.extract"),
		attribute.String("gen_ai.request.model", st.Model),
		attribute.String("prospect.stage", name),
		attribute.String("prospect.post.id", postID),
	))
	defer span.End()

	start := e.now()
	raw, err := e.extractor.Extract(cctx, &ExtractRequest{
		Model:      st.Model,
		System:     st.Prompt,
		UserText:   userText,
		Schema:     st.Schema,
		SchemaName: st.SchemaName,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if e.hooks.OnLLMCall != nil {
		e.hooks.OnLLMCall(name, time.Since(start).Seconds(), err)
	}
	return raw, err
}

// fail records the classifier failure on the post and keeps the batch alive.
// A stage-1 failure leaves gatekeeper_json null, so the post is retried on
// the next run.
func (e *Engine) fail(ctx context.Context, p *Post, cause error) (*Outcome, error) {
	e.logger.Error(ctx, cause, "classifier failure", "post_id", p.PostID)
	if err := e.store.RecordFailure(ctx, p.PostID, cause.Error()); err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	return e.complete(&Outcome{PostID: p.PostID, State: StateFailed, Err: cause}), nil
}

func (e *Engine) complete(o *Outcome) *Outcome {
	if e.hooks.OnPostComplete != nil {
		e.hooks.OnPostComplete(o.State)
	}
	return o
}

func analystInput(p *Post) string {
	return fmt.Sprintf("POST_ID: %s\nPOST_URL: %s\nUSERNAME: %s\nTEXT:\n%s",
		p.PostID, p.URL, p.Username, p.Text)
}
