// Prospect ingests scraped social posts, extracts actionable trade ideas
// with a two-stage LLM pipeline, and renders a per-asset digest.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"
	"github.com/prometheus/client_golang/prometheus"

	pc "github.com/linnemanlabs/prospect/internal/cfg"
	"github.com/linnemanlabs/prospect/internal/digest"
	"github.com/linnemanlabs/prospect/internal/ingest"
	"github.com/linnemanlabs/prospect/internal/llm/claude"
	"github.com/linnemanlabs/prospect/internal/llm/openai"
	"github.com/linnemanlabs/prospect/internal/notify/slack"
	"github.com/linnemanlabs/prospect/internal/pipeline"
	"github.com/linnemanlabs/prospect/internal/pipeline/memstore"
	"github.com/linnemanlabs/prospect/internal/pipeline/pgstore"
	"github.com/linnemanlabs/prospect/internal/postgres"
	"github.com/linnemanlabs/prospect/internal/prompts"
)

const appName = "prospect"
const component = "batch"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	var (
		appCfg pc.Config
		logCfg log.Config
	)
	appCfg.RegisterFlags(flag.CommandLine)
	logCfg.RegisterFlags(flag.CommandLine)
	var showVersion bool
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")

	flag.Parse()
	if showVersion {
		fmt.Printf(
			"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}

	// Fill in config values from environment variables with prefix PROSPECT_,
	// these do not override cmdline flags
	cfg.FillFromEnv(flag.CommandLine, "PROSPECT_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := errors.Join(
		appCfg.Validate(),
		logCfg.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "starting pipeline run",
		"version", vi.Version,
		"commit", vi.Commit,
		"input", appCfg.InputPath,
		"llm_provider", appCfg.LLMProvider,
		"gatekeeper_model", appCfg.GatekeeperModel,
		"analyst_model", appCfg.AnalystModel,
		"digest_hours", appCfg.DigestHours,
		"skip_ingest", appCfg.SkipIngest,
		"skip_classify", appCfg.SkipClassify,
	)

	started := time.Now()

	// Initialize the post store
	var store pipeline.Store
	if appCfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, appCfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres pool: %w", err)
		}
		defer pool.Close()
		pgStore, err := pgstore.New(ctx, pool)
		if err != nil {
			return fmt.Errorf("pgstore init: %w", err)
		}
		store = pgStore
		L.Info(ctx, "using postgres store")
	} else {
		store = memstore.New()
		L.Info(ctx, "using in-memory store (no database-url configured)")
	}

	pipelineMetrics := pipeline.NewMetrics(prometheus.NewRegistry())

	summary := &slack.Summary{}

	// Phase 1: ingest the scraper JSONL file.
	if appCfg.SkipIngest {
		L.Info(ctx, "skipping ingest")
	} else {
		if appCfg.InputPath == "" {
			return errors.New("no -input file given (use -skip-ingest to classify existing posts)")
		}
		ing := ingest.New(store, L)
		res, err := ing.RunFile(ctx, appCfg.InputPath)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		pipelineMetrics.IngestedTotal.Add(float64(res.Inserted))
		pipelineMetrics.DuplicatesTotal.Add(float64(res.Duplicates))
		summary.Ingested = res.Inserted
		summary.Duplicates = res.Duplicates
		L.Info(ctx, "ingest complete",
			"inserted", res.Inserted,
			"duplicates", res.Duplicates,
			"missing_id", res.MissingID,
			"malformed", res.Malformed,
		)
	}

	// Phase 2: classify unprocessed posts through the two LLM stages.
	if appCfg.SkipClassify {
		L.Info(ctx, "skipping classification")
	} else {
		extractor, err := newExtractor(&appCfg)
		if err != nil {
			return err
		}

		gatekeeper, err := prompts.GatekeeperStage(appCfg.PromptDir, appCfg.SchemaDir, appCfg.GatekeeperModel)
		if err != nil {
			return fmt.Errorf("gatekeeper stage: %w", err)
		}
		analyst, err := prompts.AnalystStage(appCfg.PromptDir, appCfg.SchemaDir, appCfg.AnalystModel)
		if err != nil {
			return fmt.Errorf("analyst stage: %w", err)
		}

		callTimeout := time.Duration(appCfg.LLMTimeoutSeconds) * time.Second
		engine := pipeline.NewEngine(store, extractor, gatekeeper, analyst, callTimeout, L, pipelineMetrics.Hooks())
		svc := pipeline.NewService(store, engine, L)

		res, err := svc.ProcessAll(ctx)
		if err != nil {
			return fmt.Errorf("classify: %w", err)
		}
		summary.RunID = res.RunID
		summary.Processed = res.Processed
		summary.Analyzed = res.Analyzed
		summary.Skipped = res.Skipped
		summary.Stage0Skipped = res.Stage0Skipped
		summary.Failed = res.Failed
		L.Info(ctx, "classification complete",
			"run_id", res.RunID,
			"processed", res.Processed,
			"analyzed", res.Analyzed,
			"skipped", res.Skipped,
			"stage0_skipped", res.Stage0Skipped,
			"failed", res.Failed,
		)
	}

	// Phase 3: render the digest.
	out, err := digest.New(store).Build(ctx, appCfg.DigestHours)
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	if err := writeDigest(appCfg.DigestOut, out); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}
	summary.Digest = out
	summary.Duration = time.Since(started)
	summary.CompletedAt = time.Now()

	// Phase 4: notify.
	notifier := slack.New(appCfg.SlackWebhookURL)
	if err := notifier.Send(ctx, summary); err != nil {
		// a failed notification should not fail the run
		L.Error(ctx, err, "slack notification failed")
	}

	L.Info(ctx, "pipeline run complete",
		"duration_seconds", summary.Duration.Seconds(),
		"ingested", summary.Ingested,
		"analyzed", summary.Analyzed,
		"failed", summary.Failed,
	)
	return nil
}

func newExtractor(c *pc.Config) (pipeline.Extractor, error) {
	switch c.LLMProvider {
	case pc.ProviderOpenAI:
		return openai.New(c.OpenAIAPIKey, c.OpenAIBaseURL), nil
	case pc.ProviderClaude:
		return claude.New(c.AnthropicAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", c.LLMProvider)
	}
}

// writeDigest writes the rendered digest to path, or to stdout when path
// is "-".
func writeDigest(path, out string) error {
	if path == "-" || path == "" {
		_, err := fmt.Print(out)
		return err
	}
	return os.WriteFile(path, []byte(out), 0o644)
}
