// Command crawl is the core CLI entry point (spec §6): plans jobs from the
// source registry, optionally dry-runs them, otherwise drives them through
// the queue, worker pool and orchestrator and exits with the run manifest's
// exit code.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/listingcrawl/listingcrawl/internal/checkpoint"
	"github.com/listingcrawl/listingcrawl/internal/common"
	"github.com/listingcrawl/listingcrawl/internal/fetchcache"
	"github.com/listingcrawl/listingcrawl/internal/fetcher"
	"github.com/listingcrawl/listingcrawl/internal/metrics"
	"github.com/listingcrawl/listingcrawl/internal/models"
	"github.com/listingcrawl/listingcrawl/internal/normalizer"
	"github.com/listingcrawl/listingcrawl/internal/orchestrator"
	"github.com/listingcrawl/listingcrawl/internal/planner"
	"github.com/listingcrawl/listingcrawl/internal/queue"
	"github.com/listingcrawl/listingcrawl/internal/robots"
	"github.com/listingcrawl/listingcrawl/internal/schema"
	"github.com/listingcrawl/listingcrawl/internal/sources"
	"github.com/listingcrawl/listingcrawl/internal/storage"
	"github.com/listingcrawl/listingcrawl/internal/workerpool"
)

var (
	configPath  = flag.String("config", "", "configuration file path")
	configPathC = flag.String("c", "", "configuration file path (shorthand)")

	entityType  = flag.String("type", "events", "entity type to crawl: events|festivals|sports|all")
	limit       = flag.Int("limit", 0, "maximum number of jobs to plan (0 uses config default)")
	sourceID    = flag.String("source-id", "all", "restrict to a single source id, or \"all\"")
	concurrency = flag.Int("concurrency", 0, "worker pool size (0 uses config default)")
	qps         = flag.Float64("qps", 0, "process-wide fetch ceiling in requests/sec (0 uses config default)")
	timeoutSecs = flag.Int("timeout", 0, "per-request timeout in seconds (0 uses config default)")
	since       = flag.String("since", "", "ISO-8601 lower bound, accepted and validated but not used to filter candidates")
	until       = flag.String("until", "", "ISO-8601 upper bound, accepted and validated but not used to filter candidates")
	dryRun      = flag.Bool("dry-run", false, "print the planned jobs as JSON and exit without fetching")
)

func main() {
	flag.Parse()

	path := *configPath
	if *configPathC != "" {
		path = *configPathC
	}

	// Startup sequence (grounded on the teacher's cmd/quaero/main.go):
	// load config -> apply CLI overrides -> validate -> init logger -> run.
	cfg, err := common.LoadConfig(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	applyOverrides(cfg)

	if err := validateDateFlags(); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := common.SetupLogger(cfg)
	defer common.Stop()

	os.Exit(run(cfg, logger))
}

func applyOverrides(cfg *common.Config) {
	if *limit > 0 {
		cfg.Crawler.Limit = *limit
	}
	if *concurrency > 0 {
		cfg.Crawler.Concurrency = *concurrency
	}
	if *qps > 0 {
		cfg.Crawler.DefaultQPS = *qps
	}
	if *timeoutSecs > 0 {
		cfg.Crawler.TimeoutSeconds = *timeoutSecs
	}
}

func validateDateFlags() error {
	if *since != "" {
		if _, err := time.Parse(time.RFC3339, *since); err != nil {
			return fmt.Errorf("--since: %w", err)
		}
	}
	if *until != "" {
		if _, err := time.Parse(time.RFC3339, *until); err != nil {
			return fmt.Errorf("--until: %w", err)
		}
	}
	return nil
}

func run(cfg *common.Config, logger arbor.ILogger) int {
	srcs, err := sources.NewRegistry(logger).LoadSources(cfg.Sources.CSVPath)
	if err != nil {
		logger.Error().Err(err).Msg("loading sources failed")
		return 1
	}
	srcs = filterBySourceID(srcs, *sourceID)

	planType := *entityType
	if planType == "all" {
		planType = planner.AllEntityTypes
	}

	planLimit := cfg.Crawler.Limit
	jobs := planner.Plan(srcs, planType, planLimit)

	if *dryRun {
		return printDryRun(jobs)
	}

	runID := fmt.Sprintf("%s-%s", *entityType, time.Now().UTC().Format("20060102T150405"))

	q, err := queue.NewPersistentQueue(queueMirrorPath(cfg, runID))
	if err != nil {
		logger.Error().Err(err).Msg("opening job queue failed")
		return 1
	}
	defer q.Close()

	for _, job := range jobs {
		if err := q.Enqueue(job); err != nil {
			logger.Error().Err(err).Msg("enqueueing job failed")
			return 1
		}
	}

	orch, state, err := buildOrchestrator(cfg, logger, runID)
	if err != nil {
		logger.Error().Err(err).Msg("building orchestrator failed")
		return 1
	}

	pool := workerpool.New(q, orch, runID, state, cfg.Crawler.Concurrency, logger)

	ctx := context.Background()
	pool.Run(ctx)

	manifest, err := orch.FinishRun(time.Now().UTC(), cfg.Storage.ManifestsRoot, state, 0)
	if err != nil {
		logger.Error().Err(err).Msg("finishing run failed")
		return 1
	}

	logger.Info().
		Str("run_id", runID).
		Int("events", manifest.CountsByType[string(models.EntityTypeEvents)]).
		Int("festivals", manifest.CountsByType[string(models.EntityTypeFestivals)]).
		Int("sports", manifest.CountsByType[string(models.EntityTypeSports)]).
		Msg("run complete")

	return manifest.ExitCode
}

func filterBySourceID(srcs []*models.Source, id string) []*models.Source {
	if id == "" || id == "all" {
		return srcs
	}
	out := make([]*models.Source, 0, 1)
	for _, s := range srcs {
		if s.SourceID == id {
			out = append(out, s)
		}
	}
	return out
}

func printDryRun(jobs []*models.Job) int {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshalling planned jobs failed:", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

func queueMirrorPath(cfg *common.Config, runID string) string {
	return cfg.Storage.CheckpointDir + "/" + runID + ".queue.jsonl"
}

func buildOrchestrator(cfg *common.Config, logger arbor.ILogger, runID string) (*orchestrator.Orchestrator, *orchestrator.RunState, error) {
	robotsCache := robots.NewCache(cfg.Crawler.UserAgent, logger)

	fetchCache, err := fetchcache.Load(cfg.Storage.CacheDir + "/etags.json")
	if err != nil {
		return nil, nil, err
	}

	f := fetcher.New(time.Duration(cfg.Crawler.TimeoutSeconds)*time.Second, cfg.Crawler.UserAgent, cfg.Storage.BronzeRoot, logger)

	schemaReg := schema.NewRegistry(cfg.Sources.SchemasDir)
	norm := normalizer.New(normalizer.DefaultTaxonomyVocab)
	cp := checkpoint.New(cfg.Storage.CheckpointDir)

	db, err := storage.OpenDB(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	writer := storage.NewWriter(cfg.Storage.SilverRoot, cfg.Storage.GoldRoot, db)

	m := metrics.New()

	orch := orchestrator.New(robotsCache, fetchCache, f, schemaReg, norm, cp, writer, m, cfg.Storage.QuarantineDir, cfg.Crawler.DefaultQPS, logger)

	state := orchestrator.NewRunState(runID)

	return orch, state, nil
}
