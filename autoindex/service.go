// Package autoindex implements C5, the Auto-Indexing Service: decides
// whether and how (foreground vs. background) to (re)index a project, and
// exposes progress for whichever mode ran.
package autoindex

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"coderag.evalgo.org/indexer"
	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/internal/opstate"
	"coderag.evalgo.org/parser"
	"coderag.evalgo.org/tracker"
)

// ProgressStatus is get_progress()'s status enum, per spec.md §4.C5.
type ProgressStatus string

const (
	StatusIdle      ProgressStatus = "idle"
	StatusCounting  ProgressStatus = "counting"
	StatusIndexing  ProgressStatus = "indexing"
	StatusComplete  ProgressStatus = "complete"
	StatusError     ProgressStatus = "error"
)

// Progress is get_progress()'s return shape.
type Progress struct {
	Status         ProgressStatus
	FilesCompleted int
	TotalFiles     int
	StartTime      *time.Time
	EndTime        *time.Time
	ETASeconds     *float64
	ErrorMessage   string
	IsBackground   bool
}

// StartResult is start_auto_indexing's immediate return value.
type StartResult struct {
	Mode      string // "foreground" or "background"
	Status    string
	FileCount int
	Result    *indexer.DirectoryResult // populated only for Mode == "foreground"
}

// Config configures a Service for one project.
type Config struct {
	ProjectName   string
	Root          string
	Indexer       *indexer.Indexer
	Tracker       *tracker.Tracker
	Excludes      []string
	Enabled       bool // auto-index enabled at all
	SizeThreshold int  // default 500, per spec.md's defaults
}

// Service orchestrates C3+C4 for one project. The indexer and tracker are
// always externally injected and owned by the caller; Close never closes
// them.
type Service struct {
	cfg     Config
	indexer *indexer.Indexer
	tracker *tracker.Tracker
	ops     *opstate.Manager
	opID    string

	mu       sync.Mutex
	bgDone   chan struct{}
	bgCancel context.CancelFunc
	closed   bool
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.ProjectName == "" || cfg.Root == "" || cfg.Indexer == nil || cfg.Tracker == nil {
		return nil, errs.Validation("autoindex", "New", "project name, root, indexer, and tracker are required")
	}
	if cfg.SizeThreshold <= 0 {
		cfg.SizeThreshold = 500
	}
	return &Service{
		cfg:     cfg,
		indexer: cfg.Indexer,
		tracker: cfg.Tracker,
		ops:     opstate.New(opstate.Config{ServiceName: "autoindex"}),
		opID:    "autoindex:" + cfg.ProjectName,
	}, nil
}

// ShouldAutoIndex implements spec.md §4.C5's decision function.
func (s *Service) ShouldAutoIndex() (bool, error) {
	if !s.cfg.Enabled {
		return false, nil
	}
	indexed, err := s.tracker.IsIndexed(s.cfg.ProjectName)
	if err != nil {
		return false, err
	}
	if !indexed {
		return true, nil
	}
	return s.tracker.IsStale(s.cfg.ProjectName, s.cfg.Root)
}

// StartAutoIndexing counts indexable files, then runs foreground (blocking)
// if the count is at or below the configured threshold, or spawns a
// background task otherwise.
func (s *Service) StartAutoIndexing(ctx context.Context, force bool) (StartResult, error) {
	if !force {
		should, err := s.ShouldAutoIndex()
		if err != nil {
			return StartResult{}, err
		}
		if !should {
			return StartResult{Mode: "foreground", Status: "skipped"}, nil
		}
	}

	s.ops.StartOperation(s.opID, "index", map[string]interface{}{
		"files_completed": 0,
		"total_files":     0,
		"is_background":   false,
	})

	fileCount, err := s.countIndexable()
	if err != nil {
		s.ops.CompleteOperation(s.opID, err)
		return StartResult{}, err
	}
	s.ops.UpdateMetadata(s.opID, "total_files", fileCount)

	if fileCount <= s.cfg.SizeThreshold {
		result, err := s.runIndexing(ctx)
		s.ops.CompleteOperation(s.opID, err)
		if err != nil {
			return StartResult{}, err
		}
		return StartResult{Mode: "foreground", Status: "complete", FileCount: fileCount, Result: &result}, nil
	}

	s.ops.UpdateMetadata(s.opID, "is_background", true)
	bgCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.bgCancel = cancel
	s.bgDone = make(chan struct{})
	done := s.bgDone
	s.mu.Unlock()

	go func() {
		defer close(done)
		_, err := s.runIndexing(bgCtx)
		s.ops.CompleteOperation(s.opID, err)
	}()

	return StartResult{Mode: "background", Status: "indexing", FileCount: fileCount}, nil
}

func (s *Service) countIndexable() (int, error) {
	count := 0
	err := filepath.WalkDir(s.cfg.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if parser.CanParse(path) {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, errs.Storage("autoindex", "countIndexable", "enumerate project files", err)
	}
	return count, nil
}

func (s *Service) runIndexing(ctx context.Context) (indexer.DirectoryResult, error) {
	progress := func(path string, fr indexer.FileResult, ferr error) {
		op := s.ops.GetOperation(s.opID)
		if op == nil {
			return
		}
		completed, _ := op.Metadata["files_completed"].(int)
		s.ops.UpdateMetadata(s.opID, "files_completed", completed+1)
	}

	result, err := s.indexer.IndexDirectory(ctx, s.cfg.Root, true, s.cfg.Excludes, progress)
	if err != nil {
		return result, err
	}
	if err := s.tracker.UpdateMetadata(s.cfg.ProjectName, result.FilesIndexed, result.UnitsIndexed); err != nil {
		return result, err
	}
	return result, nil
}

// GetProgress returns the current indexing progress for this project.
func (s *Service) GetProgress() Progress {
	op := s.ops.GetOperation(s.opID)
	if op == nil {
		return Progress{Status: StatusIdle}
	}

	completed, _ := op.Metadata["files_completed"].(int)
	total, _ := op.Metadata["total_files"].(int)
	isBackground, _ := op.Metadata["is_background"].(bool)

	progress := Progress{
		FilesCompleted: completed,
		TotalFiles:     total,
		IsBackground:   isBackground,
		StartTime:      &op.StartedAt,
	}

	switch op.Status {
	case opstate.StatusRunning:
		progress.Status = StatusIndexing
	case opstate.StatusCompleted:
		progress.Status = StatusComplete
		progress.EndTime = op.CompletedAt
	case opstate.StatusFailed, opstate.StatusTimeout:
		progress.Status = StatusError
		progress.ErrorMessage = op.Error
		progress.EndTime = op.CompletedAt
	default:
		progress.Status = StatusCounting
	}

	if completed > 0 {
		elapsed := time.Since(op.StartedAt).Seconds()
		if elapsed > 0 {
			rate := float64(completed) / elapsed
			remaining := total - completed
			if rate > 0 && remaining > 0 {
				eta := float64(remaining) / rate
				progress.ETASeconds = &eta
			}
		}
	}

	return progress
}

// Close awaits any background task up to 5 seconds, cancelling it on
// timeout, then releases the service's own resources. It never closes an
// externally-injected indexer or tracker.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	done := s.bgDone
	cancel := s.bgCancel
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			if cancel != nil {
				cancel()
			}
			<-done
		}
	}
	return nil
}
