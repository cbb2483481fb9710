package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/metricsdb"
)

// Cache is the process-local, restart-surviving (text, model_name) -> vector
// cache backed by the shared sqlite store, per spec.md §4.C2.
type Cache struct {
	db *gorm.DB
}

// NewCache wraps an already-open store handle.
func NewCache(db *gorm.DB) *Cache {
	return &Cache{db: db}
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached vector for (text, modelName), or ok=false on a
// cache miss.
func (c *Cache) Get(text, modelName string) (vec []float32, ok bool, err error) {
	var entry metricsdb.EmbeddingCacheEntry
	result := c.db.Where("text_hash = ? AND model_name = ?", hashText(text), modelName).First(&entry)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, errs.Storage("embedding", "CacheGet", "read embedding cache", result.Error)
	}
	return decodeVector(entry.Vector), true, nil
}

// Put stores vec under (text, modelName), overwriting any existing entry.
func (c *Cache) Put(text, modelName string, vec []float32) error {
	entry := metricsdb.EmbeddingCacheEntry{
		TextHash:  hashText(text),
		ModelName: modelName,
		Dim:       len(vec),
		Vector:    encodeVector(vec),
		CreatedAt: time.Now().UTC(),
	}
	result := c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "text_hash"}, {Name: "model_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"dim", "vector", "created_at"}),
	}).Create(&entry)
	if result.Error != nil {
		return errs.Storage("embedding", "CachePut", "write embedding cache", result.Error)
	}
	return nil
}
