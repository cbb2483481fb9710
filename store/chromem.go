package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"

	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/model"
)

const chromemCollection = "coderag_units"

// chromem metadata keys, distinct from model.Meta* keys which describe
// code-unit content; these describe the MemoryUnit envelope itself.
const (
	metaID             = "_id"
	metaContent        = "_content"
	metaCategory       = "_category"
	metaContextLevel   = "_context_level"
	metaLifecycleState = "_lifecycle_state"
	metaProjectName    = "_project_name"
	metaCreatedAt      = "_created_at"
	metaLastAccessed   = "_last_accessed"
	metaUseCount       = "_use_count"
)

// ChromemStore is the default MemoryStore, backed by an embedded chromem-go
// database. Vectors are always supplied by the caller (C2's pipeline); the
// collection's embedding func only guards against accidental use.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	dim        int // vector length, learned from the first upserted unit
}

// NewChromemStore opens (or creates) a persistent chromem-go database at
// path. An empty path uses an in-memory database, useful for tests.
func NewChromemStore(path string, compress bool) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, errs.Storage("store", "NewChromemStore", "open chromem database", err)
		}
	}

	noEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("coderag always supplies precomputed embeddings; chromem's embedding func must not be invoked")
	}
	coll, err := db.GetOrCreateCollection(chromemCollection, nil, noEmbed)
	if err != nil {
		return nil, errs.Storage("store", "NewChromemStore", "create collection", err)
	}
	return &ChromemStore{db: db, collection: coll}, nil
}

func unitToDocument(u model.MemoryUnit) chromem.Document {
	meta := make(map[string]string, len(u.Metadata)+8)
	for k, v := range u.Metadata {
		meta[k] = v
	}
	meta[metaID] = u.ID
	meta[metaCategory] = string(u.Category)
	meta[metaContextLevel] = string(u.ContextLevel)
	meta[metaLifecycleState] = string(u.LifecycleState)
	meta[metaProjectName] = u.ProjectName
	meta[metaCreatedAt] = u.CreatedAt.UTC().Format(time.RFC3339Nano)
	meta[metaLastAccessed] = u.LastAccessed.UTC().Format(time.RFC3339Nano)
	meta[metaUseCount] = strconv.Itoa(u.UseCount)

	return chromem.Document{
		ID:        u.ID,
		Metadata:  meta,
		Embedding: u.Embedding,
		Content:   u.Content,
	}
}

func documentToUnit(content string, meta map[string]string, embedding []float32) model.MemoryUnit {
	unit := model.MemoryUnit{
		ID:             meta[metaID],
		Content:        content,
		Embedding:      embedding,
		Category:       model.Category(meta[metaCategory]),
		ContextLevel:   model.ContextLevel(meta[metaContextLevel]),
		LifecycleState: model.LifecycleState(meta[metaLifecycleState]),
		ProjectName:    meta[metaProjectName],
		Metadata:       make(map[string]string, len(meta)),
	}
	if t, err := time.Parse(time.RFC3339Nano, meta[metaCreatedAt]); err == nil {
		unit.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, meta[metaLastAccessed]); err == nil {
		unit.LastAccessed = t
	}
	if n, err := strconv.Atoi(meta[metaUseCount]); err == nil {
		unit.UseCount = n
	}
	for k, v := range meta {
		if len(k) > 0 && k[0] == '_' {
			continue
		}
		unit.Metadata[k] = v
	}
	return unit
}

func (s *ChromemStore) Upsert(ctx context.Context, units []model.MemoryUnit) error {
	if len(units) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(units))
	for i, u := range units {
		docs[i] = unitToDocument(u)
		if s.dim == 0 && len(u.Embedding) > 0 {
			s.dim = len(u.Embedding)
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, 4); err != nil {
		return errs.Storage("store", "Upsert", "write units to chromem", err)
	}
	return nil
}

func (s *ChromemStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return errs.Storage("store", "Delete", "delete units from chromem", err)
	}
	return nil
}

func (s *ChromemStore) DeleteByFilePath(ctx context.Context, projectName, filePath string) (int, error) {
	where := map[string]string{
		metaProjectName:     projectName,
		model.MetaFilePath: filePath,
	}
	before := s.collection.Count()
	if err := s.collection.Delete(ctx, where, nil); err != nil {
		return 0, errs.Storage("store", "DeleteByFilePath", "delete by file path", err)
	}
	return before - s.collection.Count(), nil
}

func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]Scored, error) {
	where := map[string]string{}
	if filter.ProjectName != "" {
		where[metaProjectName] = filter.ProjectName
	}
	if filter.Language != "" {
		where[model.MetaLanguage] = filter.Language
	}
	if filter.Category != "" {
		where[metaCategory] = string(filter.Category)
	}

	n := k
	if cnt := s.collection.Count(); n > cnt {
		n = cnt
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, n, where, nil)
	if err != nil {
		return nil, errs.Storage("store", "Query", "query chromem", err)
	}

	scored := make([]Scored, len(results))
	for i, r := range results {
		scored[i] = Scored{
			Unit:  documentToUnit(r.Content, r.Metadata, r.Embedding),
			Score: float64(r.Similarity),
		}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}

func (s *ChromemStore) Count(ctx context.Context, projectName string) (int, error) {
	if projectName == "" {
		return s.collection.Count(), nil
	}
	units, err := s.All(ctx, projectName, 0, s.collection.Count())
	if err != nil {
		return 0, err
	}
	return len(units), nil
}

// All is implemented via a zero-vector query over the whole collection
// since chromem-go exposes no plain table scan; offset/limit are applied
// in-memory. Adequate for the embedded, single-machine scale this store
// targets (spec.md's Non-goals exclude a distributed backend).
func (s *ChromemStore) All(ctx context.Context, projectName string, offset, limit int) ([]model.MemoryUnit, error) {
	where := map[string]string{}
	if projectName != "" {
		where[metaProjectName] = projectName
	}
	total := s.collection.Count()
	if total == 0 || s.dim == 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, make([]float32, s.dim), total, where, nil)
	if err != nil {
		return nil, errs.Storage("store", "All", "scan chromem collection", err)
	}

	units := make([]model.MemoryUnit, 0, len(results))
	for _, r := range results {
		units = append(units, documentToUnit(r.Content, r.Metadata, r.Embedding))
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })

	if offset >= len(units) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(units) {
		end = len(units)
	}
	return units[offset:end], nil
}

func (s *ChromemStore) Close() error {
	return nil
}
