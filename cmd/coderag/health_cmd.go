package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"coderag.evalgo.org/alerts"
	"coderag.evalgo.org/health"
	"coderag.evalgo.org/internal/config"
	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/lifecycle"
	"coderag.evalgo.org/maintenance"
	"coderag.evalgo.org/metrics"
	"coderag.evalgo.org/metricsdb"
	"coderag.evalgo.org/scheduler"
	"coderag.evalgo.org/store"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "dashboard, monitoring, and the health scheduler",
}

func init() {
	healthCmd.PersistentFlags().String("project", "", "project name (required)")

	healthDashboardCmd.Flags().Bool("detailed", false, "include per-state memory counts")
	healthDashboardCmd.Flags().Bool("json", false, "print as JSON")
	healthCmd.AddCommand(healthDashboardCmd)

	healthMonitorFixCmd.Flags().Bool("auto", false, "apply transitions instead of a dry run")
	healthMonitorFixCmd.Flags().Bool("dry-run", true, "preview without persisting (default)")
	healthMonitorCmd.AddCommand(healthMonitorStatusCmd, healthMonitorReportCmd, healthMonitorFixCmd, healthMonitorHistoryCmd)
	healthCmd.AddCommand(healthMonitorCmd)

	healthScheduleTestCmd.Flags().String("job", "all", "which job to trigger now: all|archival|cleanup|report")
	healthScheduleTestCmd.Flags().Bool("dry-run", false, "preview archival/cleanup instead of persisting")
	healthScheduleCmd.AddCommand(healthScheduleEnableCmd, healthScheduleDisableCmd, healthScheduleStatusCmd, healthScheduleTestCmd)
	healthCmd.AddCommand(healthScheduleCmd)
}

// healthComponents bundles everything the health/monitor/schedule verbs
// need, opened read against one project's on-disk state.
type healthComponents struct {
	cfg       config.Config
	project   string
	db        *gorm.DB
	mem       *store.ChromemStore
	lifecycle *lifecycle.Manager
	scorer    *health.Scorer
	runner    *maintenance.Runner
}

func openHealthComponents(cmd *cobra.Command) (*healthComponents, error) {
	project, _ := cmd.Flags().GetString("project")
	if project == "" {
		return nil, errs.Validation("coderag", "health", "--project is required")
	}
	cfg := loadConfig()

	db, err := metricsdb.Open(cfg.MetricsDBPath())
	if err != nil {
		return nil, err
	}
	mem, err := store.NewChromemStore(filepath.Join(cfg.ProjectIndexDir(project), "vectors"), true)
	if err != nil {
		return nil, err
	}
	lifecycleMgr := lifecycle.New(cfg.HighAccessThreshold)
	scorer := health.New(mem)
	runner := maintenance.New(maintenance.Config{Project: project, MemStore: mem, Lifecycle: lifecycleMgr, Scorer: scorer})

	return &healthComponents{cfg: cfg, project: project, db: db, mem: mem, lifecycle: lifecycleMgr, scorer: scorer, runner: runner}, nil
}

var healthDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "print the current overall health score",
	RunE: func(cmd *cobra.Command, args []string) error {
		hc, err := openHealthComponents(cmd)
		if err != nil {
			return err
		}
		score, err := hc.scorer.CalculateOverallHealth(context.Background(), hc.project, time.Now())
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc, err := json.MarshalIndent(score, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(enc))
			return nil
		}

		fmt.Printf("overall: %.1f (%s)\n", score.Overall, score.Grade)
		fmt.Printf("noise_ratio=%.3f duplicate_rate=%.3f contradiction_rate=%.3f\n",
			score.NoiseRatio, score.DuplicateRate, score.ContradictionRate)

		detailed, _ := cmd.Flags().GetBool("detailed")
		if detailed {
			for state, count := range score.StateCounts {
				fmt.Printf("  %-12s %d\n", state, count)
			}
		}
		for _, rec := range score.Recommendations {
			fmt.Printf("- %s\n", rec)
		}
		return nil
	},
}

var healthMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "run or inspect maintenance jobs outside their schedule",
}

var healthMonitorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "print active alerts for the project",
	RunE: func(cmd *cobra.Command, args []string) error {
		hc, err := openHealthComponents(cmd)
		if err != nil {
			return err
		}
		collector := metrics.New(metrics.Config{DB: hc.db, Scorer: hc.scorer, DBPath: hc.cfg.MetricsDBPath(), Project: hc.project})
		latest, err := collector.GetLatestMetrics()
		if err != nil {
			return err
		}
		engine := alerts.New(alerts.Config{DB: hc.db, Project: hc.project})
		active, err := engine.ActiveAlerts(time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("health_score=%.1f as of %s\n", latest.HealthScore, latest.Timestamp.Format(time.RFC3339))
		if len(active) == 0 {
			fmt.Println("no active alerts")
		}
		for _, a := range active {
			fmt.Printf("[%s] %s = %.2f: %s\n", a.Severity, a.MetricName, a.CurrentValue, a.Message)
		}
		return nil
	},
}

var healthMonitorReportCmd = &cobra.Command{
	Use:   "report",
	Short: "run the weekly health report job now",
	RunE: func(cmd *cobra.Command, args []string) error {
		hc, err := openHealthComponents(cmd)
		if err != nil {
			return err
		}
		result := hc.runner.WeeklyHealthReport(context.Background(), time.Now())
		return printJobResult(result)
	},
}

var healthMonitorFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "run the weekly archival job, transitioning stale/archived memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		hc, err := openHealthComponents(cmd)
		if err != nil {
			return err
		}
		auto, _ := cmd.Flags().GetBool("auto")
		result := hc.runner.WeeklyArchival(context.Background(), !auto, time.Now())
		return printJobResult(result)
	},
}

var healthMonitorHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "print the last maintenance job results",
	RunE: func(cmd *cobra.Command, args []string) error {
		hc, err := openHealthComponents(cmd)
		if err != nil {
			return err
		}
		for _, r := range hc.runner.History() {
			fmt.Printf("%s %-20s success=%v processed=%d archived=%d deleted=%d\n",
				r.Timestamp.Format(time.RFC3339), r.JobName, r.Success, r.MemoriesProcessed, r.MemoriesArchived, r.MemoriesDeleted)
		}
		return nil
	},
}

func printJobResult(result maintenance.JobResult) error {
	fmt.Printf("job=%s run=%s success=%v processed=%d archived=%d deleted=%d\n",
		result.JobName, result.RunID, result.Success, result.MemoriesProcessed, result.MemoriesArchived, result.MemoriesDeleted)
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	if !result.Success {
		return errs.Validation("coderag", "health_monitor", "job reported failure; see printed errors")
	}
	return nil
}

var healthScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "enable, disable, inspect, or test the health scheduler's cron jobs",
}

func schedulePath(cfg config.Config) string {
	return filepath.Join(cfg.StorageRoot, "schedule.json")
}

var healthScheduleEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "enable the scheduler (coderagd picks this up on next restart)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		sched, err := scheduler.LoadConfig(schedulePath(cfg))
		if err != nil {
			return err
		}
		sched.Enabled = true
		return scheduler.SaveConfig(schedulePath(cfg), sched)
	},
}

var healthScheduleDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "disable the scheduler (coderagd picks this up on next restart)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		sched, err := scheduler.LoadConfig(schedulePath(cfg))
		if err != nil {
			return err
		}
		sched.Enabled = false
		return scheduler.SaveConfig(schedulePath(cfg), sched)
	},
}

var healthScheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "print the persisted schedule configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		sched, err := scheduler.LoadConfig(schedulePath(cfg))
		if err != nil {
			return err
		}
		enc, err := json.MarshalIndent(sched, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(enc))
		return nil
	},
}

var healthScheduleTestCmd = &cobra.Command{
	Use:   "test",
	Short: "trigger one scheduled job immediately, bypassing its cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		hc, err := openHealthComponents(cmd)
		if err != nil {
			return err
		}
		job, _ := cmd.Flags().GetString("job")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		sched := scheduler.New(hc.runner, scheduler.DefaultConfig())
		switch job {
		case "archival":
			return printJobResult(sched.TriggerArchivalNow(dryRun))
		case "cleanup":
			return printJobResult(sched.TriggerCleanupNow(dryRun))
		case "report":
			return printJobResult(sched.TriggerReportNow())
		case "all":
			if err := printJobResult(sched.TriggerArchivalNow(dryRun)); err != nil {
				return err
			}
			if err := printJobResult(sched.TriggerCleanupNow(dryRun)); err != nil {
				return err
			}
			return printJobResult(sched.TriggerReportNow())
		default:
			return errs.Validation("coderag", "health_schedule_test", "--job must be all, archival, cleanup, or report")
		}
	},
}
