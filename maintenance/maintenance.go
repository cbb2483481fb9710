// Package maintenance implements C11's three maintenance jobs: weekly
// archival, monthly cleanup, and the weekly health report.
package maintenance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"coderag.evalgo.org/health"
	"coderag.evalgo.org/internal/logging"
	"coderag.evalgo.org/lifecycle"
	"coderag.evalgo.org/model"
	"coderag.evalgo.org/store"
)

const (
	defaultCleanupMinAgeDays  = 180
	defaultCleanupUseCountMax = 5
	jobHistoryCap             = 100
)

// JobResult is the return value of every maintenance job.
type JobResult struct {
	RunID             string // random, assigned on record; correlates log lines to one job run
	JobName           string
	Success           bool
	MemoriesProcessed int
	MemoriesArchived  int
	MemoriesDeleted   int
	Errors            []string // capped at 10
	Timestamp         time.Time
}

// Runner executes maintenance jobs against a project's store and keeps a
// bounded in-memory history of results.
type Runner struct {
	project   string
	mem       store.MemoryStore
	lifecycle *lifecycle.Manager
	scorer    *health.Scorer
	history   []JobResult
	log       *logging.ContextLogger
}

// Config configures a new Runner.
type Config struct {
	Project   string
	MemStore  store.MemoryStore
	Lifecycle *lifecycle.Manager
	Scorer    *health.Scorer
}

// New creates a Runner.
func New(cfg Config) *Runner {
	return &Runner{
		project:   cfg.Project,
		mem:       cfg.MemStore,
		lifecycle: cfg.Lifecycle,
		scorer:    cfg.Scorer,
		log:       logging.ServiceLogger("maintenance").WithField("project", cfg.Project),
	}
}

// History returns the last-run jobs, most recent last.
func (r *Runner) History() []JobResult {
	out := make([]JobResult, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Runner) record(result JobResult) JobResult {
	result.RunID = uuid.NewString()
	r.history = append(r.history, result)
	if len(r.history) > jobHistoryCap {
		r.history = r.history[len(r.history)-jobHistoryCap:]
	}
	return result
}

// WeeklyArchival recomputes lifecycle state for every non-terminal memory
// and, unless dryRun, persists the transitions whose target is ARCHIVED or
// STALE.
func (r *Runner) WeeklyArchival(ctx context.Context, dryRun bool, now time.Time) JobResult {
	result := JobResult{JobName: "weekly_archival", Timestamp: now, Success: true}

	units, err := r.mem.All(ctx, r.project, 0, 0)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		return r.record(result)
	}

	var candidates []model.MemoryUnit
	for _, u := range units {
		if u.LifecycleState == model.LifecycleArchived || u.LifecycleState == model.LifecycleStale {
			continue
		}
		target := r.lifecycle.CalculateState(u.CreatedAt, u.LastAccessed, u.UseCount, u.ContextLevel)
		if target != model.LifecycleArchived && target != model.LifecycleStale {
			continue
		}
		result.MemoriesProcessed++
		u.LifecycleState = target
		candidates = append(candidates, u)
	}

	if dryRun {
		result.MemoriesArchived = len(candidates)
		return r.record(result)
	}

	for _, u := range candidates {
		if err := r.mem.Upsert(ctx, []model.MemoryUnit{u}); err != nil {
			result.Errors = appendCapped(result.Errors, err.Error())
			r.log.WithError(err).WithField("unit_id", u.ID).Warn("weekly archival: failed to persist transition")
			continue
		}
		result.MemoriesArchived++
	}

	return r.record(result)
}

// MonthlyCleanup deletes STALE memories older than minAgeDays (default 180)
// with use_count <= 5 whose context level is not USER_PREFERENCE. User
// preferences are never deleted by this job. Unless dryRun, matching
// memories are actually deleted; either way MemoriesDeleted reports the
// count that matched.
func (r *Runner) MonthlyCleanup(ctx context.Context, dryRun bool, minAgeDays int, now time.Time) JobResult {
	if minAgeDays <= 0 {
		minAgeDays = defaultCleanupMinAgeDays
	}
	result := JobResult{JobName: "monthly_cleanup", Timestamp: now, Success: true}

	units, err := r.mem.All(ctx, r.project, 0, 0)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		return r.record(result)
	}

	var toDelete []string
	for _, u := range units {
		if u.LifecycleState != model.LifecycleStale {
			continue
		}
		if u.ContextLevel == model.ContextUserPreference {
			continue
		}
		if u.UseCount > defaultCleanupUseCountMax {
			continue
		}
		age := now.Sub(u.LastAccessed).Hours() / 24
		if age < float64(minAgeDays) {
			continue
		}
		result.MemoriesProcessed++
		toDelete = append(toDelete, u.ID)
	}

	if dryRun {
		result.MemoriesDeleted = len(toDelete)
		return r.record(result)
	}

	if len(toDelete) > 0 {
		if err := r.mem.Delete(ctx, toDelete); err != nil {
			result.Errors = appendCapped(result.Errors, err.Error())
		} else {
			result.MemoriesDeleted = len(toDelete)
		}
	}

	return r.record(result)
}

// WeeklyHealthReport calls the health scorer and logs a structured report.
// It performs no writes.
func (r *Runner) WeeklyHealthReport(ctx context.Context, now time.Time) JobResult {
	result := JobResult{JobName: "weekly_health_report", Timestamp: now, Success: true}

	score, err := r.scorer.CalculateOverallHealth(ctx, r.project, now)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		return r.record(result)
	}

	result.MemoriesProcessed = score.Total
	r.log.WithField("overall", score.Overall).WithField("grade", score.Grade).
		WithField("noise_ratio", score.NoiseRatio).WithField("duplicate_rate", score.DuplicateRate).
		Info("weekly health report")

	return r.record(result)
}

func appendCapped(errs []string, msg string) []string {
	if len(errs) >= 10 {
		return errs
	}
	return append(errs, msg)
}
