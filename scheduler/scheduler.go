// Package scheduler implements C12, the Health Scheduler: loads a
// HealthScheduleConfig and installs robfig/cron/v3 triggers for weekly
// archival, monthly cleanup, and the weekly health report, turning the
// day/time fields into cron specs with schedule.go's BuildCronSpec and
// BuildMonthlyCronSpec.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"coderag.evalgo.org/internal/logging"
	"coderag.evalgo.org/maintenance"
)

// JobSchedule configures one of the three jobs' day/time and whether it is
// enabled.
type JobSchedule struct {
	Enabled       bool
	Day           int    // 0=Sunday..6=Saturday; ignored by monthly cleanup
	DayOfMonth    int    // 1-31; only used by monthly cleanup
	Time          string // "HH:MM"
	ThresholdDays int    // cleanup's min_age_days override; 0 means default
}

// HealthScheduleConfig is the JSON-loadable schedule configuration.
type HealthScheduleConfig struct {
	Enabled        bool
	WeeklyArchival JobSchedule
	MonthlyCleanup JobSchedule
	WeeklyReport   JobSchedule
}

// Scheduler installs/cancels cron triggers for the maintenance runner's
// three jobs and supports manual one-off triggers bypassing the schedule.
type Scheduler struct {
	mu      sync.Mutex
	runner  *maintenance.Runner
	cfg     HealthScheduleConfig
	cron    *cron.Cron
	running bool
	log     *logging.ContextLogger
}

// New creates a Scheduler bound to runner.
func New(runner *maintenance.Runner, cfg HealthScheduleConfig) *Scheduler {
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		log:    logging.ServiceLogger("scheduler"),
	}
}

// Start installs cron triggers matching the current config. No-op if
// already running or if the config is globally disabled.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || !s.cfg.Enabled {
		return nil
	}

	c := cron.New()

	if s.cfg.WeeklyArchival.Enabled {
		spec, err := BuildCronSpec(s.cfg.WeeklyArchival.Day, s.cfg.WeeklyArchival.Time)
		if err != nil {
			return err
		}
		if _, err := c.AddFunc(spec, func() {
			s.runner.WeeklyArchival(context.Background(), false, time.Now())
		}); err != nil {
			return err
		}
	}

	if s.cfg.MonthlyCleanup.Enabled {
		spec, err := BuildMonthlyCronSpec(s.cfg.MonthlyCleanup.DayOfMonth, s.cfg.MonthlyCleanup.Time)
		if err != nil {
			return err
		}
		threshold := s.cfg.MonthlyCleanup.ThresholdDays
		if _, err := c.AddFunc(spec, func() {
			s.runner.MonthlyCleanup(context.Background(), false, threshold, time.Now())
		}); err != nil {
			return err
		}
	}

	if s.cfg.WeeklyReport.Enabled {
		spec, err := BuildCronSpec(s.cfg.WeeklyReport.Day, s.cfg.WeeklyReport.Time)
		if err != nil {
			return err
		}
		if _, err := c.AddFunc(spec, func() {
			s.runner.WeeklyHealthReport(context.Background(), time.Now())
		}); err != nil {
			return err
		}
	}

	c.Start()
	s.cron = c
	s.running = true
	s.log.Info("scheduler: started")
	return nil
}

// Stop cancels all installed triggers. No-op if not running.
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
	s.log.Info("scheduler: stopped")
}

// UpdateConfig replaces the schedule config. If the scheduler is running it
// is stopped and restarted against the new config.
func (s *Scheduler) UpdateConfig(cfg HealthScheduleConfig) error {
	s.mu.Lock()
	wasRunning := s.running
	s.mu.Unlock()

	if wasRunning {
		s.Stop()
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	if wasRunning {
		return s.Start()
	}
	return nil
}

// IsRunning reports whether cron triggers are currently installed.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerArchivalNow runs weekly archival synchronously, independent of
// whether the scheduler is running.
func (s *Scheduler) TriggerArchivalNow(dryRun bool) maintenance.JobResult {
	return s.runner.WeeklyArchival(context.Background(), dryRun, time.Now())
}

// TriggerCleanupNow runs monthly cleanup synchronously, independent of
// whether the scheduler is running, using the runner's default min-age
// threshold. dryRun previews the deletions without persisting them.
func (s *Scheduler) TriggerCleanupNow(dryRun bool) maintenance.JobResult {
	return s.runner.MonthlyCleanup(context.Background(), dryRun, 0, time.Now())
}

// TriggerReportNow runs the weekly health report synchronously, independent
// of whether the scheduler is running.
func (s *Scheduler) TriggerReportNow() maintenance.JobResult {
	return s.runner.WeeklyHealthReport(context.Background(), time.Now())
}
