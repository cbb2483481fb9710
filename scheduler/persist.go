package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"

	"coderag.evalgo.org/internal/errs"
)

// DefaultConfig is the schedule coderagd installs when no persisted
// schedule.json exists yet: every job enabled, weekly archival Sundays at
// 02:00, monthly cleanup on the 1st at 03:00, weekly report Mondays at
// 08:00.
func DefaultConfig() HealthScheduleConfig {
	return HealthScheduleConfig{
		Enabled:        true,
		WeeklyArchival: JobSchedule{Enabled: true, Day: 0, Time: "02:00"},
		MonthlyCleanup: JobSchedule{Enabled: true, DayOfMonth: 1, Time: "03:00"},
		WeeklyReport:   JobSchedule{Enabled: true, Day: 1, Time: "08:00"},
	}
}

// LoadConfig reads a HealthScheduleConfig from path, the same
// write-temp-then-rename JSON document idiom archival.Manager uses for its
// state document. A missing file returns DefaultConfig, not an error.
func LoadConfig(path string) (HealthScheduleConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return HealthScheduleConfig{}, errs.Storage("scheduler", "load_config", "read schedule document", err)
	}
	var cfg HealthScheduleConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return HealthScheduleConfig{}, errs.Storage("scheduler", "load_config", "parse schedule document", err)
	}
	return cfg, nil
}

// SaveConfig atomically writes cfg to path.
func SaveConfig(path string, cfg HealthScheduleConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errs.Storage("scheduler", "save_config", "marshal schedule document", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Storage("scheduler", "save_config", "create schedule directory", err)
	}
	tmp, err := os.CreateTemp(dir, "schedule-*.tmp")
	if err != nil {
		return errs.Storage("scheduler", "save_config", "create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Storage("scheduler", "save_config", "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Storage("scheduler", "save_config", "close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errs.Storage("scheduler", "save_config", "rename temp file into place", err)
	}
	return nil
}
