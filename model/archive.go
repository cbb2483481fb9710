package model

import "time"

// CompressionInfo reports archive size/compression statistics.
type CompressionInfo struct {
	OriginalSizeMB   float64 `json:"original_size_mb"`
	CompressedSizeMB float64 `json:"compressed_size_mb"`
	CompressionRatio float64 `json:"compression_ratio"`
	SavingsPercent   float64 `json:"savings_percent"`
}

// RestoreInfo advises a caller what to expect when restoring an archive.
type RestoreInfo struct {
	EstimatedRestoreTimeSeconds float64  `json:"estimated_restore_time_seconds"`
	Warnings                    []string `json:"warnings"`
}

// ArchiveManifest describes a compressed project archive.
type ArchiveManifest struct {
	ProjectName     string          `json:"project_name"`
	ArchiveVersion  string          `json:"archive_version"`
	ArchivedAt      time.Time       `json:"archived_at"`
	ArchivedBy      string          `json:"archived_by"`
	Statistics      map[string]any  `json:"statistics"`
	CompressionInfo CompressionInfo `json:"compression_info"`
	RestoreInfo     RestoreInfo     `json:"restore_info"`
	LastActivity    *time.Time      `json:"last_activity,omitempty"`

	// Populated only after a rename on import.
	ImportedFrom string     `json:"imported_from,omitempty"`
	ImportedAt   *time.Time `json:"imported_at,omitempty"`
}

// CurrentArchiveVersion is the manifest schema version written by this
// implementation.
const CurrentArchiveVersion = "1.0"
