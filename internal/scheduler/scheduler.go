// Package scheduler implements the Scheduler Loop (spec §4.N): a fixed-tick
// loop that, on every tick, runs whichever configured jobs are due per their
// own cron expression. Cron computation is grounded on the teacher's
// internal/services/scheduler/scheduler_service.go use of robfig/cron/v3.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/listingcrawl/listingcrawl/internal/common"
)

// RunFunc executes one job's crawl via the orchestrator for the given run.
type RunFunc func(ctx context.Context, runID, sourceType string, limit int) error

type jobState struct {
	cfg      common.SchedulerJobConfig
	schedule cron.Schedule
	nextFire time.Time
}

// Loop is the scheduler's runtime state: one jobState per configured
// scheduler.jobs[] entry, woken on a fixed interval_seconds tick.
type Loop struct {
	jobs          []*jobState
	tick          time.Duration
	checkpointDir string
	run           RunFunc
	logger        arbor.ILogger
}

// New parses every job's cron expression up front, so a misconfigured
// schedule fails at startup rather than on the first missed tick.
func New(cfg common.SchedulerConfig, checkpointDir string, run RunFunc, logger arbor.ILogger) (*Loop, error) {
	if len(cfg.Jobs) == 0 {
		return nil, fmt.Errorf("%w: scheduler.jobs is empty", common.ErrConfig)
	}

	now := time.Now()
	jobs := make([]*jobState, 0, len(cfg.Jobs))
	for _, jc := range cfg.Jobs {
		sched, err := cron.ParseStandard(jc.Cron)
		if err != nil {
			return nil, fmt.Errorf("%w: scheduler job %s: invalid cron %q: %v", common.ErrConfig, jc.SourceType, jc.Cron, err)
		}
		jobs = append(jobs, &jobState{cfg: jc, schedule: sched, nextFire: sched.Next(now)})
	}

	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	return &Loop{jobs: jobs, tick: interval, checkpointDir: checkpointDir, run: run, logger: logger}, nil
}

// Run ticks every interval_seconds, running whichever jobs are due, until
// maxTicks ticks have elapsed (maxTicks <= 0 means run forever) or ctx is
// cancelled (spec §4.N: "runs forever or until a requested tick count").
func (l *Loop) Run(ctx context.Context, maxTicks int) error {
	ticks := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.runDueJobs(ctx)

		ticks++
		if maxTicks > 0 && ticks >= maxTicks {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.tick):
		}
	}
}

// runDueJobs executes, sequentially and in configured order, every job whose
// cron-computed next-fire time has arrived (spec.md §9's cron-vs-interval
// resolution: interval_seconds is the loop's wake-up granularity, not the
// per-job cadence).
func (l *Loop) runDueJobs(ctx context.Context) {
	now := time.Now()
	for _, js := range l.jobs {
		if now.Before(js.nextFire) {
			continue
		}

		runID := l.resolveRunID(js.cfg.SourceType)

		l.logger.Info().
			Str("source_type", js.cfg.SourceType).
			Str("run_id", runID).
			Msg("scheduler tick: running due job")

		if err := l.run(ctx, runID, js.cfg.SourceType, js.cfg.Limit); err != nil {
			l.logger.Error().
				Err(err).
				Str("source_type", js.cfg.SourceType).
				Str("run_id", runID).
				Msg("scheduled job run failed")
		}

		js.nextFire = js.schedule.Next(now)
	}
}

// resolveRunID reuses an existing "<source_type>-*" checkpoint run
// directory if one is present, so a job interrupted mid-run resumes on the
// next due tick rather than starting a fresh run_id (spec §4.N). Otherwise
// it mints a UTC-stamped run_id per spec §3's RunManifest.run_id rule.
func (l *Loop) resolveRunID(sourceType string) string {
	matches, err := filepath.Glob(filepath.Join(l.checkpointDir, sourceType+"-*"))
	if err == nil && len(matches) > 0 {
		return filepath.Base(matches[0])
	}
	return fmt.Sprintf("%s-%s", sourceType, time.Now().UTC().Format("20060102T150405"))
}
