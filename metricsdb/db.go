// Package metricsdb owns the single sqlite-backed GORM connection shared by
// the embedding cache (C2), the project index tracker (C6), and the metrics
// collector (C17/C18). It's the local relational store spec.md requires;
// grounded on the teacher's PostgreSQL+GORM connection idiom in db/postgres.go,
// with an sqlite driver instead since coderag runs single-machine.
package metricsdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"coderag.evalgo.org/model"
)

// Open establishes the shared sqlite connection at path, creating parent
// directories as needed, and migrates every table this service owns.
func Open(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	// sqlite only supports one writer at a time; a single connection avoids
	// "database is locked" errors under concurrent goroutines.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&EmbeddingCacheEntry{},
		&model.ProjectIndexMetadata{},
		&model.HealthMetrics{},
		&model.QueryLogEntry{},
		&model.Alert{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}
