package store

import (
	"context"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/model"
)

// bleveDoc is the indexed shape: enough of a MemoryUnit's metadata to
// support C7's filter pushdown (project_name, language, category) alongside
// the searchable content field.
type bleveDoc struct {
	Content     string
	ProjectName string
	Language    string
	Category    string
	FilePath    string
}

// BleveIndex is the default KeywordIndex, an embedded full-text index used
// by C7's hybrid search mode.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex opens (or creates) a bleve index at path. An empty path
// uses an in-memory index, useful for tests.
func NewBleveIndex(path string) (*BleveIndex, error) {
	mapping := bleve.NewIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		idx, err = bleve.Open(path)
		if err != nil {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, errs.Storage("store", "NewBleveIndex", "open bleve index", err)
	}
	return &BleveIndex{index: idx}, nil
}

func (b *BleveIndex) Index(ctx context.Context, unit model.MemoryUnit) error {
	doc := bleveDoc{
		Content:     unit.Content,
		ProjectName: unit.ProjectName,
		Language:    unit.Metadata[model.MetaLanguage],
		Category:    string(unit.Category),
		FilePath:    unit.Metadata[model.MetaFilePath],
	}
	if err := b.index.Index(unit.ID, doc); err != nil {
		return errs.Storage("store", "Index", "index unit for keyword search", err)
	}
	return nil
}

func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	if err := b.index.Delete(id); err != nil {
		return errs.Storage("store", "Delete", "delete unit from keyword index", err)
	}
	return nil
}

func (b *BleveIndex) DeleteByFilePath(ctx context.Context, projectName, filePath string) (int, error) {
	q := bleve.NewConjunctionQuery(
		bleve.NewMatchQuery(projectName).SetField("ProjectName"),
		bleve.NewMatchQuery(filePath).SetField("FilePath"),
	)
	req := bleve.NewSearchRequest(q)
	req.Size = 10000
	result, err := b.index.Search(req)
	if err != nil {
		return 0, errs.Storage("store", "DeleteByFilePath", "search keyword index for deletion", err)
	}
	for _, hit := range result.Hits {
		if err := b.index.Delete(hit.ID); err != nil {
			return 0, errs.Storage("store", "DeleteByFilePath", "delete matched unit", err)
		}
	}
	return len(result.Hits), nil
}

func (b *BleveIndex) Search(ctx context.Context, query string, k int, filter Filter) ([]Scored, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	var clauses []bleveQuery.Query
	clauses = append(clauses, bleve.NewMatchQuery(query).SetField("Content"))
	if filter.ProjectName != "" {
		clauses = append(clauses, bleve.NewMatchQuery(filter.ProjectName).SetField("ProjectName"))
	}
	if filter.Language != "" {
		clauses = append(clauses, bleve.NewMatchQuery(filter.Language).SetField("Language"))
	}
	if filter.Category != "" {
		clauses = append(clauses, bleve.NewMatchQuery(string(filter.Category)).SetField("Category"))
	}

	q := bleve.NewConjunctionQuery(clauses...)
	req := bleve.NewSearchRequest(q)
	req.Size = k
	req.Fields = []string{"Content"}

	result, err := b.index.Search(req)
	if err != nil {
		return nil, errs.Storage("store", "Search", "keyword search", err)
	}

	scored := make([]Scored, 0, len(result.Hits))
	for _, hit := range result.Hits {
		content, _ := hit.Fields["Content"].(string)
		scored = append(scored, Scored{
			Unit:  model.MemoryUnit{ID: hit.ID, Content: content},
			Score: hit.Score,
		})
	}
	return scored, nil
}

func (b *BleveIndex) Close() error {
	return b.index.Close()
}
