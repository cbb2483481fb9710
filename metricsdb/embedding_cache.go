package metricsdb

import "time"

// EmbeddingCacheEntry is one cached (text, model) -> vector mapping, keyed
// by the sha-256 hash of the text so the indexed column stays small and
// fixed-width regardless of input length.
type EmbeddingCacheEntry struct {
	TextHash  string `gorm:"primaryKey;column:text_hash"`
	ModelName string `gorm:"primaryKey;column:model_name"`
	Dim       int
	Vector    []byte `gorm:"type:blob"` // little-endian float32s, see embedding/codec.go
	CreatedAt time.Time
}

func (EmbeddingCacheEntry) TableName() string { return "embedding_cache" }
