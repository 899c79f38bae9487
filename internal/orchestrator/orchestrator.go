// Package orchestrator implements the per-job state machine (spec §4.O)
// that binds the Source Registry's output through the Robots Cache, Fetch
// Cache, Fetcher, Extractor, Normaliser, Schema Registry, Deduplicator and
// Storage Writer into one run. Per-job logging-context scoping is grounded
// on the teacher's services/crawler/worker.go contextLogger pattern.
package orchestrator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/listingcrawl/listingcrawl/internal/checkpoint"
	"github.com/listingcrawl/listingcrawl/internal/common"
	"github.com/listingcrawl/listingcrawl/internal/extractor"
	"github.com/listingcrawl/listingcrawl/internal/fetchcache"
	"github.com/listingcrawl/listingcrawl/internal/fetcher"
	"github.com/listingcrawl/listingcrawl/internal/metrics"
	"github.com/listingcrawl/listingcrawl/internal/models"
	"github.com/listingcrawl/listingcrawl/internal/normalizer"
	"github.com/listingcrawl/listingcrawl/internal/robots"
	"github.com/listingcrawl/listingcrawl/internal/rules"
	"github.com/listingcrawl/listingcrawl/internal/schema"
	"github.com/listingcrawl/listingcrawl/internal/storage"
)

// page is one URL in a job's discovered page set; html is populated once
// fetched (the first page arrives already fetched from the initial GET).
type page struct {
	url  string
	html string
}

// Orchestrator binds one run's collaborators together to execute
// individual jobs (spec §4.O).
type Orchestrator struct {
	robotsCache   *robots.Cache
	fetchCache    *fetchcache.Cache
	fetcher       *fetcher.Fetcher
	schemaReg     *schema.Registry
	normaliser    *normalizer.Normaliser
	checkpointer  *checkpoint.Checkpointer
	writer        *storage.Writer
	metrics       *metrics.Registry
	quarantineDir string
	logger        arbor.ILogger

	globalLimiter *rate.Limiter

	sourceLimitersMu sync.Mutex
	sourceLimiters   map[string]*rate.Limiter
}

// New builds an Orchestrator. globalQPS is the process-wide ceiling token
// bucket fronting every fetch, in addition to each job's own per-source
// bucket (SPEC_FULL.md §9's rate-limiting resolution).
func New(
	robotsCache *robots.Cache,
	fetchCache *fetchcache.Cache,
	f *fetcher.Fetcher,
	schemaReg *schema.Registry,
	normaliser *normalizer.Normaliser,
	checkpointer *checkpoint.Checkpointer,
	writer *storage.Writer,
	m *metrics.Registry,
	quarantineDir string,
	globalQPS float64,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		robotsCache:    robotsCache,
		fetchCache:     fetchCache,
		fetcher:        f,
		schemaReg:      schemaReg,
		normaliser:     normaliser,
		checkpointer:   checkpointer,
		writer:         writer,
		metrics:        m,
		quarantineDir:  quarantineDir,
		logger:         logger,
		globalLimiter:  rate.NewLimiter(rate.Limit(globalQPS), 1),
		sourceLimiters: make(map[string]*rate.Limiter),
	}
}

func (o *Orchestrator) limiterFor(job *models.Job) *rate.Limiter {
	o.sourceLimitersMu.Lock()
	defer o.sourceLimitersMu.Unlock()

	l, ok := o.sourceLimiters[job.SourceID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(job.MetaFloat("max_qps", 1.0)), 1)
		o.sourceLimiters[job.SourceID] = l
	}
	return l
}

// waitRateLimit blocks until both job's per-source bucket and the
// process-wide ceiling bucket admit one more request, consulted before
// every fetch (SPEC_FULL.md §9).
func (o *Orchestrator) waitRateLimit(ctx context.Context, job *models.Job) error {
	if err := o.limiterFor(job).Wait(ctx); err != nil {
		return err
	}
	return o.globalLimiter.Wait(ctx)
}

// RunJob executes spec §4.O's per-job state machine for one job against
// runID's shared state. The returned error, if any, is the "exception out
// of the whole job" spec §4.O step 7/§7's JobError policy expects the
// caller to act on (mark_failed + conditional re-enqueue).
func (o *Orchestrator) RunJob(ctx context.Context, runID string, job *models.Job, state *RunState) error {
	contextKey := runID + ":" + job.JobID
	jobLogger := o.logger.WithContextWriter(contextKey)

	jobLogger.Info().
		Str("run_id", runID).
		Str("job_id", job.JobID).
		Str("source_id", job.SourceID).
		Msg("job started")

	job.Status = models.JobStatusInProgress

	err := o.runJobBody(ctx, runID, job, state, jobLogger)

	if err != nil {
		job.LastError = err.Error()
		jobLogger.Error().Err(err).Msg("job failed")
	} else {
		job.Status = models.JobStatusSucceeded
		_ = o.checkpointer.Clear(runID, job.JobID)
		jobLogger.Info().Msg("job succeeded")
	}

	jobLogger.Info().Msg("job finished")
	return err
}

func (o *Orchestrator) runJobBody(ctx context.Context, runID string, job *models.Job, state *RunState, jobLogger arbor.ILogger) error {
	ruleSpec, err := o.loadRuleSpec(job)
	if err != nil {
		return err
	}

	if err := o.waitRateLimit(ctx, job); err != nil {
		return err
	}

	snapshot, err := o.fetcher.FetchDocument(job.URL, o.robotsCache, o.fetchCache, o.metrics)
	if err != nil {
		if errors.Is(err, common.ErrNotAllowed) {
			// robots disallow on the seed URL: job succeeds trivially (spec
			// §4.O step 2, "if null (robots or 304), mark succeeded").
			jobLogger.Debug().Str("url", job.URL).Msg("robots disallow on seed url")
			return nil
		}
		return err
	}
	if snapshot == nil {
		// 304 on the seed URL: nothing changed, nothing to do.
		return nil
	}

	pages := []page{{url: job.URL, html: snapshot.HTML}}

	extraURLs, err := extractor.DiscoverPagination(snapshot.HTML, ruleSpec, job.URL)
	if err != nil {
		jobLogger.Warn().Err(err).Msg("pagination discovery failed, continuing with seed page only")
		extraURLs = nil
	}
	for _, u := range extraURLs {
		pages = append(pages, page{url: u})
	}

	discoveredHash := hashURLs(pages)
	cp := o.checkpointer.Load(runID, job.JobID)
	startPage := 0
	if cp.Matches(job.JobID, discoveredHash) {
		startPage = cp.PageIdx
	}

	for pageIdx := startPage; pageIdx < len(pages); pageIdx++ {
		p := &pages[pageIdx]

		html := p.html
		if html == "" {
			if err := o.waitRateLimit(ctx, job); err != nil {
				return err
			}
			snap, err := o.fetcher.FetchDocument(p.url, o.robotsCache, o.fetchCache, o.metrics)
			if err != nil {
				if errors.Is(err, common.ErrNotAllowed) {
					jobLogger.Debug().Str("url", p.url).Msg("robots disallow, skipping page")
					continue
				}
				return err
			}
			if snap == nil {
				continue // unchanged since last run: nothing new here
			}
			html = snap.HTML
		}

		candidates, err := extractor.Extract(html, job.EntityType, ruleSpec, job.SourceID, p.url)
		if err != nil {
			o.metrics.Incr("parse_failures", 1)
			jobLogger.Warn().Err(err).Str("url", p.url).Msg("extraction failed, skipping page")
			continue
		}

		for _, candidate := range candidates {
			if err := o.processCandidate(runID, job, state, candidate); err != nil {
				return err
			}

			if err := o.checkpointer.Save(runID, &models.JobCheckpoint{
				JobID:              job.JobID,
				URLCursor:          p.url,
				PageIdx:            pageIdx,
				DiscoveredURLsHash: discoveredHash,
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

// processCandidate runs normalise → prune → validate → dedup → merge/insert
// for one extracted entity (spec §4.O step 5).
func (o *Orchestrator) processCandidate(runID string, job *models.Job, state *RunState, candidate *models.Entity) error {
	o.normaliser.Normalise(candidate)

	pruned, err := o.schemaReg.Prune(candidate.Type, candidate.AsMap())
	if err != nil {
		return err // missing schema is fatal (spec §4.I)
	}

	result, err := o.schemaReg.Validate(candidate.Type, pruned)
	if err != nil {
		return err
	}

	if !result.OK {
		o.metrics.Incr("validates_failed", 1)
		o.metrics.Incr("quarantine_rows", 1)
		state.incrRejects(job.SourceID)
		_, err := storage.WriteQuarantine(o.quarantineDir, candidate, result.Errors)
		return err
	}

	isDup, matchedKey := state.dedupIndex.IsDuplicate(candidate)

	if !isDup {
		state.dedupIndex.Remember(candidate)
		state.putResult(candidate.Type, matchedKey, candidate)

		o.metrics.Incr("entities_new", 1)
		state.incrRowsNew(job.SourceID)

		path, err := o.writer.WriteSilver(candidate.Type, runID, candidate)
		if err != nil {
			return err
		}
		state.recordOutputPath(path)

		_, err = o.writer.UpsertRelational(candidate.Type, matchedKey, candidate)
		return err
	}

	o.metrics.Incr("duplicates", 1)
	state.incrRowsUpdated(job.SourceID)

	// matchedKey is whichever key (canonical or ±1-day shifted) actually
	// matched, so the merge lands on the record the candidate duplicates
	// rather than spuriously inserting a second entry under its own key.
	existing, ok := state.getResult(candidate.Type, matchedKey)
	if !ok {
		existing = candidate
	}

	merged, mutated := state.merger.Merge(existing, candidate)
	if !mutated {
		return nil
	}

	state.putResult(candidate.Type, matchedKey, merged)

	o.metrics.Incr("entities_updated", 1)

	path, err := o.writer.WriteSilver(merged.Type, runID, merged)
	if err != nil {
		return err
	}
	state.recordOutputPath(path)

	_, err = o.writer.UpsertRelational(merged.Type, matchedKey, merged)
	return err
}

func (o *Orchestrator) loadRuleSpec(job *models.Job) (*models.RuleSpec, error) {
	path := job.MetaString("css_rules_path")
	if path == "" {
		return nil, nil
	}
	return rules.Load(path)
}

func hashURLs(pages []page) string {
	urls := make([]string, len(pages))
	for i, p := range pages {
		urls[i] = p.url
	}
	h := sha1.Sum([]byte(strings.Join(urls, "|")))
	return hex.EncodeToString(h[:])
}

// FinishRun performs the end-of-run gold-tier commit across every entity
// type the run touched, finalizes the metrics snapshot, and writes the run
// manifest (spec §4.O step 6, "L commits at end"; §6 "<manifests>/run-<run_id>.json").
func (o *Orchestrator) FinishRun(runDate time.Time, manifestsRoot string, state *RunState, exitCode int) (*models.RunManifest, error) {
	for _, entityType := range models.ValidEntityTypes {
		entities := state.ResultsFor(entityType)
		state.setCount(entityType, len(entities))
		if len(entities) == 0 {
			continue
		}

		path, err := o.writer.WriteGold(entityType, runDate, entities)
		if err != nil {
			return nil, err
		}
		state.recordOutputPath(path)
	}

	state.Manifest.MetricsSnapshot = o.metrics.Snapshot()
	state.Manifest.ExitCode = exitCode

	if err := writeManifest(manifestsRoot, state.Manifest); err != nil {
		return nil, err
	}
	if err := appendManifestHistory(manifestsRoot, state.Manifest); err != nil {
		return nil, err
	}

	return state.Manifest, nil
}

func writeManifest(root string, manifest *models.RunManifest) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("%w: creating manifests dir %s: %v", common.ErrFatal, root, err)
	}

	path := filepath.Join(root, fmt.Sprintf("run-%s.json", manifest.RunID))
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshalling manifest: %v", common.ErrFatal, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing manifest %s: %v", common.ErrFatal, path, err)
	}
	return nil
}

// appendManifestHistory appends a one-line JSON summary of manifest to
// <root>/history.jsonl, mirroring the teacher's job-log-as-JSONL pattern so
// the admin CLI's `status` subcommand can tail recent runs without parsing
// every run-<run_id>.json file individually.
func appendManifestHistory(root string, manifest *models.RunManifest) error {
	line, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("%w: marshalling manifest history line: %v", common.ErrFatal, err)
	}

	path := filepath.Join(root, "history.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening manifest history %s: %v", common.ErrFatal, path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: writing manifest history %s: %v", common.ErrFatal, path, err)
	}
	return nil
}
