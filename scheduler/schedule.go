package scheduler

import "fmt"

// BuildCronSpec turns a day-of-week (0=Sunday..6=Saturday, or -1 for "every
// day") and an "HH:MM" time-of-day into a 5-field cron spec understood by
// robfig/cron/v3.
func BuildCronSpec(day int, hhmm string) (string, error) {
	hour, minute, err := parseHHMM(hhmm)
	if err != nil {
		return "", err
	}
	if day < 0 {
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	}
	if day > 6 {
		return "", fmt.Errorf("scheduler: day of week out of range: %d", day)
	}
	return fmt.Sprintf("%d %d * * %d", minute, hour, day), nil
}

// BuildMonthlyCronSpec schedules a job on dayOfMonth (1-31) at hhmm.
func BuildMonthlyCronSpec(dayOfMonth int, hhmm string) (string, error) {
	hour, minute, err := parseHHMM(hhmm)
	if err != nil {
		return "", err
	}
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return "", fmt.Errorf("scheduler: day of month out of range: %d", dayOfMonth)
	}
	return fmt.Sprintf("%d %d %d * *", minute, hour, dayOfMonth), nil
}

func parseHHMM(hhmm string) (hour, minute int, err error) {
	if _, scanErr := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); scanErr != nil {
		return 0, 0, fmt.Errorf("scheduler: invalid HH:MM time %q: %w", hhmm, scanErr)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("scheduler: time out of range %q", hhmm)
	}
	return hour, minute, nil
}
