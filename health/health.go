// Package health implements C10, the Health Scorer: derives noise,
// duplicate, contradiction, and distribution metrics plus an overall grade
// and recommendations from a project's stored memories.
package health

import (
	"context"
	"strings"
	"time"

	"coderag.evalgo.org/internal/logging"
	"coderag.evalgo.org/model"
	"coderag.evalgo.org/store"
)

const (
	// MaxMemoriesPerOperation gates loading a project's full memory set;
	// above it the scorer refuses and returns an empty distribution.
	MaxMemoriesPerOperation = 50000
	// WarnThresholdMemories is the point above which loading proceeds but
	// logs a warning, still paging in PaginationPageSize chunks.
	WarnThresholdMemories = 25000
	// PaginationPageSize is the page size used once WarnThresholdMemories
	// is exceeded.
	PaginationPageSize = 5000
	// MaxDuplicateCheckMemories caps the dataset size the duplicate-rate
	// pass will scan; above it duplicate rate is reported as 0 with a
	// warning logged.
	MaxDuplicateCheckMemories = 10000
)

var idealDistribution = map[model.LifecycleState]float64{
	model.LifecycleActive:   0.60,
	model.LifecycleRecent:   0.25,
	model.LifecycleArchived: 0.10,
	model.LifecycleStale:    0.05,
}

// Grade buckets the overall score.
type Grade string

const (
	GradeExcellent Grade = "Excellent"
	GradeGood      Grade = "Good"
	GradeFair      Grade = "Fair"
	GradePoor      Grade = "Poor"
)

// HealthScore is calculate_overall_health's return value.
type HealthScore struct {
	Overall            float64
	NoiseRatio         float64
	DuplicateRate      float64
	ContradictionRate  float64
	DistributionScore  float64
	StateCounts        map[model.LifecycleState]int
	Grade              Grade
	Recommendations    []string
	Timestamp          time.Time
	Total              int
	DistributionScaled bool // true if distribution was skipped due to MaxMemoriesPerOperation
}

// Scorer calculates health scores for a project's stored memories.
type Scorer struct {
	mem store.MemoryStore
	log *logging.ContextLogger
}

// New creates a Scorer reading from mem.
func New(mem store.MemoryStore) *Scorer {
	return &Scorer{mem: mem, log: logging.ServiceLogger("health")}
}

// CalculateOverallHealth computes project's HealthScore.
func (s *Scorer) CalculateOverallHealth(ctx context.Context, project string, now time.Time) (HealthScore, error) {
	total, err := s.mem.Count(ctx, project)
	if err != nil {
		return HealthScore{}, err
	}

	score := HealthScore{
		StateCounts: map[model.LifecycleState]int{},
		Timestamp:   now,
		Total:       total,
	}

	if total == 0 {
		score.Grade = gradeFor(0)
		return score, nil
	}

	if total > MaxMemoriesPerOperation {
		s.log.WithField("project", project).WithField("total", total).
			Error("health: memory count exceeds max per-operation limit, skipping distribution scan")
		score.DistributionScaled = true
		score.Grade = gradeFor(0)
		return score, nil
	}

	if total > WarnThresholdMemories {
		s.log.WithField("project", project).WithField("total", total).
			Warn("health: large memory set, paginating scan")
	}

	units, err := s.loadAll(ctx, project, total)
	if err != nil {
		return HealthScore{}, err
	}

	for _, u := range units {
		score.StateCounts[u.LifecycleState]++
	}

	score.NoiseRatio = noiseRatio(score.StateCounts, total)
	score.DistributionScore = distributionScore(score.StateCounts, total)
	score.ContradictionRate = 0 // conservative: no semantic-contradiction detector in scope

	if total <= MaxDuplicateCheckMemories {
		score.DuplicateRate = duplicateRate(units)
	} else {
		s.log.WithField("project", project).WithField("total", total).
			Warn("health: memory count exceeds duplicate-check cap, reporting duplicate rate as 0")
	}

	score.Overall = overall(score.NoiseRatio, score.DuplicateRate, score.ContradictionRate, score.DistributionScore)
	score.Grade = gradeFor(score.Overall)
	score.Recommendations = recommendations(score)

	return score, nil
}

func (s *Scorer) loadAll(ctx context.Context, project string, total int) ([]model.MemoryUnit, error) {
	if total <= WarnThresholdMemories {
		return s.mem.All(ctx, project, 0, 0)
	}
	units := make([]model.MemoryUnit, 0, total)
	for offset := 0; offset < total; offset += PaginationPageSize {
		page, err := s.mem.All(ctx, project, offset, PaginationPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		units = append(units, page...)
	}
	return units, nil
}

func noiseRatio(counts map[model.LifecycleState]int, total int) float64 {
	if total == 0 {
		return 0
	}
	ratio := (float64(counts[model.LifecycleStale]) + 0.5*float64(counts[model.LifecycleArchived])) / float64(total)
	return clamp01(ratio)
}

func distributionScore(counts map[model.LifecycleState]int, total int) float64 {
	if total == 0 {
		return 0
	}
	var deviation float64
	for state, ideal := range idealDistribution {
		actual := float64(counts[state]) / float64(total)
		d := actual - ideal
		if d < 0 {
			d = -d
		}
		deviation += d
	}
	return 100 * (1 - clamp01(deviation/2))
}

func duplicateRate(units []model.MemoryUnit) float64 {
	if len(units) == 0 {
		return 0
	}
	seen := map[string]int{}
	for _, u := range units {
		key := strings.ToLower(strings.TrimSpace(u.Content))
		seen[key]++
	}
	duplicates := 0
	for _, n := range seen {
		if n > 1 {
			duplicates += n - 1
		}
	}
	return clamp01(float64(duplicates) / float64(len(units)))
}

func overall(noise, dup, contra, distribution float64) float64 {
	return 0.4*(1-noise)*100 + 0.2*(1-dup)*100 + 0.2*(1-contra)*100 + 0.2*distribution
}

func gradeFor(overall float64) Grade {
	switch {
	case overall >= 90:
		return GradeExcellent
	case overall >= 75:
		return GradeGood
	case overall >= 60:
		return GradeFair
	default:
		return GradePoor
	}
}

func recommendations(score HealthScore) []string {
	var recs []string
	if score.NoiseRatio > 0.3 {
		recs = append(recs, "high noise ratio: run maintenance archival/cleanup jobs")
	}
	if score.DuplicateRate > 0.1 {
		recs = append(recs, "significant duplicate content detected: review and deduplicate")
	}
	if score.DistributionScore < 60 {
		recs = append(recs, "lifecycle distribution deviates from the ideal mix: check indexing cadence")
	}
	if len(recs) == 0 {
		recs = append(recs, "no action needed")
	}
	return recs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
