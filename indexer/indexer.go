// Package indexer implements C4, the Incremental Indexer: parse -> embed ->
// store for one file or a directory tree, with stable ids so re-indexing an
// unchanged file is a no-op write rather than a duplicate.
package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"coderag.evalgo.org/embedding"
	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/internal/logging"
	"coderag.evalgo.org/internal/workerpool"
	"coderag.evalgo.org/model"
	"coderag.evalgo.org/parser"
	"coderag.evalgo.org/store"
)

// FileResult is index_file's return shape, per spec.md §4.C4.
type FileResult struct {
	UnitsIndexed int
	ParseTimeMs  int64
	Skipped      bool
}

// DirectoryResult aggregates index_directory's per-file counters.
type DirectoryResult struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	UnitsIndexed  int
	Errors        map[string]string
}

// ProgressFunc is invoked after each file during index_directory.
type ProgressFunc func(path string, result FileResult, err error)

// Indexer wires parser -> embedding pipeline -> store for one project.
type Indexer struct {
	projectName string
	pipeline    *embedding.Pipeline
	memStore    store.MemoryStore
	keyword     store.KeywordIndex // optional; nil disables keyword indexing
	concurrency int
	log         *logging.ContextLogger
}

// Config configures a new Indexer.
type Config struct {
	ProjectName string
	Pipeline    *embedding.Pipeline
	MemoryStore store.MemoryStore
	KeywordIndex store.KeywordIndex // optional
	Concurrency int                // default 4, used by IndexDirectory
}

// New creates an Indexer for one project.
func New(cfg Config) (*Indexer, error) {
	if cfg.ProjectName == "" {
		return nil, errs.Validation("indexer", "New", "project name is required")
	}
	if cfg.Pipeline == nil || cfg.MemoryStore == nil {
		return nil, errs.Validation("indexer", "New", "pipeline and memory store are required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Indexer{
		projectName: cfg.ProjectName,
		pipeline:    cfg.Pipeline,
		memStore:    cfg.MemoryStore,
		keyword:     cfg.KeywordIndex,
		concurrency: cfg.Concurrency,
		log:         logging.ServiceLogger("indexer").WithField("project", cfg.ProjectName),
	}, nil
}

// IndexFile parses path, embeds each unit, and upserts into the store under
// stable ids derived from (project_name, file_path, unit_name, start_line).
// Units previously stored for path but absent from the new parse are then
// deleted. Files with an unparseable extension are reported as Skipped,
// not an error.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (FileResult, error) {
	start := time.Now()

	if !parser.CanParse(path) {
		return FileResult{Skipped: true}, nil
	}

	units, err := parser.ParseFile(path)
	if err != nil {
		return FileResult{}, err
	}

	rel := path
	memUnits := make([]model.MemoryUnit, 0, len(units))
	newIDs := make(map[string]bool, len(units))
	now := time.Now().UTC()

	if len(units) > 0 {
		contents := make([]string, len(units))
		for i, u := range units {
			contents[i] = u.Content
		}
		vectors, err := ix.pipeline.EmbedBatch(ctx, contents)
		if err != nil {
			return FileResult{}, errs.Embedding("indexer", "IndexFile", "embed parsed units", err)
		}

		for i, u := range units {
			id := store.UnitID(ix.projectName, rel, u.UnitName, u.StartLine)
			newIDs[id] = true
			memUnits = append(memUnits, model.MemoryUnit{
				ID:             id,
				Content:        u.Content,
				Embedding:      vectors[i],
				Category:       model.CategoryCodeUnit,
				ContextLevel:   model.ContextProjectContext,
				LifecycleState: model.LifecycleActive,
				ProjectName:    ix.projectName,
				CreatedAt:      now,
				LastAccessed:   now,
				Metadata: map[string]string{
					model.MetaFilePath:  rel,
					model.MetaLanguage:  u.Language,
					model.MetaUnitName:  u.UnitName,
					model.MetaUnitType:  u.UnitType,
					model.MetaStartLine: strconv.Itoa(u.StartLine),
					model.MetaEndLine:   strconv.Itoa(u.EndLine),
					model.MetaSignature: u.Signature,
				},
			})
		}
	}

	// Upsert before delete: a query concurrent with re-indexing must never
	// observe a moment where a still-existing unit is missing (spec.md
	// §4.C4 ordering invariant).
	if len(memUnits) > 0 {
		if err := ix.memStore.Upsert(ctx, memUnits); err != nil {
			return FileResult{}, err
		}
		if ix.keyword != nil {
			for _, u := range memUnits {
				if err := ix.keyword.Index(ctx, u); err != nil {
					return FileResult{}, err
				}
			}
		}
	}

	if err := ix.pruneStale(ctx, rel, newIDs); err != nil {
		return FileResult{}, err
	}

	return FileResult{
		UnitsIndexed: len(memUnits),
		ParseTimeMs:  time.Since(start).Milliseconds(),
	}, nil
}

// pruneStale deletes previously stored units for filePath whose id is not
// in keep.
func (ix *Indexer) pruneStale(ctx context.Context, filePath string, keep map[string]bool) error {
	existing, err := ix.memStore.All(ctx, ix.projectName, 0, 0)
	if err != nil {
		return err
	}
	var stale []string
	for _, u := range existing {
		if u.Metadata[model.MetaFilePath] != filePath {
			continue
		}
		if !keep[u.ID] {
			stale = append(stale, u.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := ix.memStore.Delete(ctx, stale); err != nil {
		return err
	}
	if ix.keyword != nil {
		for _, id := range stale {
			if err := ix.keyword.Delete(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteFileIndex removes all units stored for path, returning the count
// removed.
func (ix *Indexer) DeleteFileIndex(ctx context.Context, path string) (int, error) {
	n, err := ix.memStore.DeleteByFilePath(ctx, ix.projectName, path)
	if err != nil {
		return 0, err
	}
	if ix.keyword != nil {
		if _, err := ix.keyword.DeleteByFilePath(ctx, ix.projectName, path); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// IndexDirectory enumerates files under root (recursively, if recursive),
// filters by supported extension and excludes, and indexes each with
// bounded concurrency.
func (ix *Indexer) IndexDirectory(ctx context.Context, root string, recursive bool, excludes []string, progress ProgressFunc) (DirectoryResult, error) {
	paths, err := enumerate(root, recursive, excludes)
	if err != nil {
		return DirectoryResult{}, errs.Storage("indexer", "IndexDirectory", "enumerate directory", err)
	}

	result := DirectoryResult{Errors: make(map[string]string)}
	var mu sync.Mutex

	jobs := make([]workerpool.Job, len(paths))
	for i, p := range paths {
		p := p
		jobs[i] = func(ctx context.Context) error {
			fr, ferr := ix.IndexFile(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case ferr != nil:
				result.FilesFailed++
				result.Errors[p] = ferr.Error()
			case fr.Skipped:
				result.FilesSkipped++
			default:
				result.FilesIndexed++
				result.UnitsIndexed += fr.UnitsIndexed
			}
			if progress != nil {
				progress(p, fr, ferr)
			}
			return nil // per-file errors are aggregated, not fatal to the batch
		}
	}

	if err := workerpool.Run(ctx, ix.concurrency, jobs); err != nil {
		return result, err
	}
	return result, nil
}

func enumerate(root string, recursive bool, excludes []string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			if isExcluded(root, path, excludes) {
				return filepath.SkipDir
			}
			return nil
		}
		if isExcluded(root, path, excludes) {
			return nil
		}
		if parser.CanParse(path) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func isExcluded(root, path string, excludes []string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range excludes {
		if strings.Contains(rel, pattern) {
			return true
		}
	}
	return false
}

