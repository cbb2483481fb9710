// Package tracker implements C6, the Project Index Tracker: a thin, GORM-
// backed persistence layer over per-project indexing metadata.
package tracker

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/model"
)

// Tracker is the durable record of which projects are indexed, when, and
// whether they're being watched.
type Tracker struct {
	db *gorm.DB
}

// New wraps an already-migrated store handle. db must have
// model.ProjectIndexMetadata migrated (metricsdb.Open does this).
func New(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// IsIndexed reports whether project has any recorded indexing metadata.
func (t *Tracker) IsIndexed(project string) (bool, error) {
	_, err := t.GetMetadata(project)
	if err != nil {
		if errs.OfKind(err, errs.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetMetadata returns project's indexing metadata, or a NotFound error.
func (t *Tracker) GetMetadata(project string) (model.ProjectIndexMetadata, error) {
	var meta model.ProjectIndexMetadata
	result := t.db.Where("project_name = ?", project).First(&meta)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return model.ProjectIndexMetadata{}, errs.NotFound("tracker", "GetMetadata", "project "+project+" is not indexed")
		}
		return model.ProjectIndexMetadata{}, errs.Storage("tracker", "GetMetadata", "read project index metadata", result.Error)
	}
	return meta, nil
}

// UpdateMetadata creates or updates project's metadata, bumping
// last_indexed_at to now and replacing the file/unit totals with the given
// values. first_indexed_at is set only on creation.
func (t *Tracker) UpdateMetadata(project string, totalFiles, totalUnits int) error {
	now := time.Now().UTC()

	var existing model.ProjectIndexMetadata
	result := t.db.Where("project_name = ?", project).First(&existing)

	if result.Error == gorm.ErrRecordNotFound {
		meta := model.ProjectIndexMetadata{
			ProjectName:    project,
			FirstIndexedAt: now,
			LastIndexedAt:  now,
			TotalFiles:     totalFiles,
			TotalUnits:     totalUnits,
			IndexVersion:   1,
		}
		if err := t.db.Create(&meta).Error; err != nil {
			return errs.Storage("tracker", "UpdateMetadata", "create project index metadata", err)
		}
		return nil
	}
	if result.Error != nil {
		return errs.Storage("tracker", "UpdateMetadata", "read project index metadata", result.Error)
	}

	existing.LastIndexedAt = now
	existing.TotalFiles = totalFiles
	existing.TotalUnits = totalUnits
	existing.IndexVersion++
	if err := t.db.Save(&existing).Error; err != nil {
		return errs.Storage("tracker", "UpdateMetadata", "update project index metadata", err)
	}
	return nil
}

// SetWatching records whether project currently has an active file watcher.
func (t *Tracker) SetWatching(project string, watching bool) error {
	result := t.db.Model(&model.ProjectIndexMetadata{}).Where("project_name = ?", project).Update("is_watching", watching)
	if result.Error != nil {
		return errs.Storage("tracker", "SetWatching", "update watching flag", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("tracker", "SetWatching", "project "+project+" is not indexed")
	}
	return nil
}

// IsStale reports whether any file under path (skipping unreadable files)
// has an mtime strictly newer than project's last_indexed_at.
func (t *Tracker) IsStale(project, path string) (bool, error) {
	meta, err := t.GetMetadata(project)
	if err != nil {
		return false, err
	}

	stale := false
	_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil || stale {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // unreadable files are skipped, not fatal
		}
		if info.ModTime().After(meta.LastIndexedAt) {
			stale = true
		}
		return nil
	})
	return stale, nil
}

// DeleteMetadata removes project's indexing metadata entirely.
func (t *Tracker) DeleteMetadata(project string) error {
	result := t.db.Where("project_name = ?", project).Delete(&model.ProjectIndexMetadata{})
	if result.Error != nil {
		return errs.Storage("tracker", "DeleteMetadata", "delete project index metadata", result.Error)
	}
	return nil
}
