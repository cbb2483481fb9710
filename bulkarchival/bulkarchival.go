// Package bulkarchival implements C16: batch archive/reactivate operations
// over many projects at once, plus a cron-driven auto-archival scheduler
// built the same way C12's Health Scheduler wraps robfig/cron/v3.
package bulkarchival

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"coderag.evalgo.org/archival"
	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/internal/logging"
)

// MaxProjectsPerOperation caps a single bulk call's batch size.
const MaxProjectsPerOperation = 20

// Outcome is the per-item result of a bulk archive/reactivate operation.
type Outcome string

const (
	OutcomeWouldArchive    Outcome = "would_archive"
	OutcomeArchived        Outcome = "archived"
	OutcomeWouldReactivate Outcome = "would_reactivate"
	OutcomeReactivated     Outcome = "reactivated"
	OutcomeSkipped         Outcome = "skipped"
	OutcomeFailed          Outcome = "failed"
	OutcomeError           Outcome = "error"
)

// ItemResult is one project's outcome within a batch.
type ItemResult struct {
	Project string
	Outcome Outcome
	Error   string
}

// ProgressFunc is called before each item is processed. It must not block
// indefinitely; a panic inside it is recovered so the batch still
// completes.
type ProgressFunc func(name string, current, total int)

// Batch runs bulk operations against a Manager.
type Batch struct {
	manager *archival.Manager
	log     *logging.ContextLogger
}

// New creates a Batch bound to manager.
func New(manager *archival.Manager) *Batch {
	return &Batch{manager: manager, log: logging.ServiceLogger("bulkarchival")}
}

// BulkArchiveProjects archives each name sequentially. Refuses the whole
// batch if len(names) exceeds MaxProjectsPerOperation.
func (b *Batch) BulkArchiveProjects(names []string, dryRun bool, progress ProgressFunc, now time.Time) ([]ItemResult, error) {
	if len(names) > MaxProjectsPerOperation {
		return nil, errs.Capacity("bulkarchival", "bulk_archive_projects", fmt.Sprintf("batch of %d exceeds max_projects_per_operation (%d)", len(names), MaxProjectsPerOperation))
	}

	results := make([]ItemResult, 0, len(names))
	for i, name := range names {
		callProgress(progress, name, i+1, len(names))

		if dryRun {
			results = append(results, ItemResult{Project: name, Outcome: OutcomeWouldArchive})
			continue
		}
		if err := b.manager.ArchiveProject(name, now); err != nil {
			results = append(results, ItemResult{Project: name, Outcome: OutcomeFailed, Error: err.Error()})
			continue
		}
		results = append(results, ItemResult{Project: name, Outcome: OutcomeArchived})
	}
	return results, nil
}

// BulkReactivateProjects reactivates each name sequentially, with the same
// batch-size guard and dry-run behavior as BulkArchiveProjects.
func (b *Batch) BulkReactivateProjects(names []string, dryRun bool, progress ProgressFunc, now time.Time) ([]ItemResult, error) {
	if len(names) > MaxProjectsPerOperation {
		return nil, errs.Capacity("bulkarchival", "bulk_reactivate_projects", fmt.Sprintf("batch of %d exceeds max_projects_per_operation (%d)", len(names), MaxProjectsPerOperation))
	}

	results := make([]ItemResult, 0, len(names))
	for i, name := range names {
		callProgress(progress, name, i+1, len(names))

		if dryRun {
			results = append(results, ItemResult{Project: name, Outcome: OutcomeWouldReactivate})
			continue
		}
		if err := b.manager.ReactivateProject(name, now); err != nil {
			results = append(results, ItemResult{Project: name, Outcome: OutcomeFailed, Error: err.Error()})
			continue
		}
		results = append(results, ItemResult{Project: name, Outcome: OutcomeReactivated})
	}
	return results, nil
}

// AutoArchiveInactive finds inactive projects and archives up to maxProjects
// of them (oldest-batch-size-capped via MaxProjectsPerOperation if
// maxProjects exceeds it).
func (b *Batch) AutoArchiveInactive(daysThreshold int, dryRun bool, maxProjects int, now time.Time) ([]ItemResult, error) {
	inactive, err := b.manager.GetInactiveProjects(daysThreshold, now)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(inactive))
	for _, state := range inactive {
		names = append(names, state.ProjectName)
	}
	if maxProjects > 0 && len(names) > maxProjects {
		names = names[:maxProjects]
	}
	if len(names) > MaxProjectsPerOperation {
		names = names[:MaxProjectsPerOperation]
	}

	return b.BulkArchiveProjects(names, dryRun, nil, now)
}

func callProgress(progress ProgressFunc, name string, current, total int) {
	if progress == nil {
		return
	}
	defer func() { recover() }()
	progress(name, current, total)
}

// Frequency is an auto-archival scheduler cadence.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// SchedulerConfig configures the auto-archival cron trigger.
type SchedulerConfig struct {
	Enabled       bool
	Frequency     Frequency
	DaysThreshold int
	DryRun        bool
	MaxProjects   int
}

func (c SchedulerConfig) cronSpec() (string, error) {
	switch c.Frequency {
	case FrequencyDaily:
		return "0 2 * * *", nil
	case FrequencyWeekly:
		return "0 2 * * 0", nil
	case FrequencyMonthly:
		return "0 2 1 * *", nil
	default:
		return "", fmt.Errorf("bulkarchival: unknown frequency %q", c.Frequency)
	}
}

// Scheduler installs a cron trigger that runs AutoArchiveInactive on the
// configured cadence.
type Scheduler struct {
	mu      sync.Mutex
	batch   *Batch
	cfg     SchedulerConfig
	cron    *cron.Cron
	running bool
	log     *logging.ContextLogger
}

// NewScheduler creates a Scheduler bound to batch.
func NewScheduler(batch *Batch, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{batch: batch, cfg: cfg, log: logging.ServiceLogger("bulkarchival-scheduler")}
}

// Start installs the cron trigger. No-op if already running or disabled.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || !s.cfg.Enabled {
		return nil
	}

	spec, err := s.cfg.cronSpec()
	if err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.batch.AutoArchiveInactive(s.cfg.DaysThreshold, s.cfg.DryRun, s.cfg.MaxProjects, time.Now()); err != nil {
			s.log.WithError(err).Warn("auto-archival run failed")
		}
	}); err != nil {
		return err
	}

	c.Start()
	s.cron = c
	s.running = true
	return nil
}

// Stop cancels the cron trigger. No-op if not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron = nil
	s.running = false
}

// UpdateConfig replaces the scheduler config, restarting if enabled or
// frequency changed while running.
func (s *Scheduler) UpdateConfig(cfg SchedulerConfig) error {
	s.mu.Lock()
	wasRunning := s.running
	needsRestart := wasRunning && (cfg.Enabled != s.cfg.Enabled || cfg.Frequency != s.cfg.Frequency)
	s.mu.Unlock()

	if needsRestart {
		s.Stop()
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	if needsRestart {
		return s.Start()
	}
	return nil
}

// IsRunning reports whether the cron trigger is installed.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
