package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag.evalgo.org/embedding"
	"coderag.evalgo.org/lifecycle"
	"coderag.evalgo.org/metricsdb"
	"coderag.evalgo.org/model"
	"coderag.evalgo.org/store"
)

type fakeModel struct{ dim int }

func (f *fakeModel) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dim), nil
}
func (f *fakeModel) Dim() int          { return f.dim }
func (f *fakeModel) ModelName() string { return "fake-v1" }

type fakeMemStore struct {
	results []store.Scored
}

func (f *fakeMemStore) Upsert(ctx context.Context, units []model.MemoryUnit) error { return nil }
func (f *fakeMemStore) Delete(ctx context.Context, ids []string) error             { return nil }
func (f *fakeMemStore) DeleteByFilePath(ctx context.Context, project, path string) (int, error) {
	return 0, nil
}
func (f *fakeMemStore) Query(ctx context.Context, vector []float32, k int, filter store.Filter) ([]store.Scored, error) {
	return f.results, nil
}
func (f *fakeMemStore) Count(ctx context.Context, project string) (int, error) { return len(f.results), nil }
func (f *fakeMemStore) All(ctx context.Context, project string, offset, limit int) ([]model.MemoryUnit, error) {
	return nil, nil
}
func (f *fakeMemStore) Close() error { return nil }

type fakeKeyword struct {
	results []store.Scored
}

func (f *fakeKeyword) Index(ctx context.Context, unit model.MemoryUnit) error { return nil }
func (f *fakeKeyword) Delete(ctx context.Context, id string) error           { return nil }
func (f *fakeKeyword) DeleteByFilePath(ctx context.Context, project, path string) (int, error) {
	return 0, nil
}
func (f *fakeKeyword) Search(ctx context.Context, query string, k int, filter store.Filter) ([]store.Scored, error) {
	return f.results, nil
}
func (f *fakeKeyword) Close() error { return nil }

func unit(id, filePath string, startLine int, score float64) model.MemoryUnit {
	return model.MemoryUnit{
		ID:             id,
		Content:        "content " + id,
		Category:       model.CategoryCodeUnit,
		LifecycleState: model.LifecycleActive,
		CreatedAt:      time.Now(),
		LastAccessed:   time.Now(),
		Metadata: map[string]string{
			model.MetaFilePath:  filePath,
			model.MetaStartLine: itoa(startLine),
			model.MetaLanguage:  "go",
		},
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func newTestEngine(t *testing.T, memResults []store.Scored, kwResults []store.Scored) *Engine {
	t.Helper()
	db, err := metricsdb.Open(":memory:")
	require.NoError(t, err)
	pipeline := embedding.New(&fakeModel{dim: 4}, embedding.NewCache(db), embedding.Config{})

	var kw *fakeKeyword
	if kwResults != nil {
		kw = &fakeKeyword{results: kwResults}
	}

	eng, err := New(Config{
		Pipeline:     pipeline,
		MemoryStore:  &fakeMemStore{results: memResults},
		KeywordIndex: kwIface(kw),
		LifecycleMgr: lifecycle.New(10),
	})
	require.NoError(t, err)
	return eng
}

func kwIface(k *fakeKeyword) store.KeywordIndex {
	if k == nil {
		return nil
	}
	return k
}

func TestSearchCode_EmptyQuery(t *testing.T) {
	eng := newTestEngine(t, nil, nil)
	resp, err := eng.SearchCode(context.Background(), Query{Text: "   "})
	require.NoError(t, err)
	assert.Equal(t, QualityPoor, resp.Quality)
	assert.Zero(t, resp.TotalFound)
}

func TestSearchCode_SemanticRanksByScore(t *testing.T) {
	eng := newTestEngine(t, []store.Scored{
		{Unit: unit("1", "a.go", 1, 0.9), Score: 0.9},
		{Unit: unit("2", "b.go", 1, 0.5), Score: 0.5},
	}, nil)

	resp, err := eng.SearchCode(context.Background(), Query{Text: "foo", Mode: ModeSemantic, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "1", resp.Results[0].Unit.ID)
	assert.Equal(t, QualityExcellent, resp.Quality)
}

func TestSearchCode_HybridFallsBackToSemanticWithoutKeywordIndex(t *testing.T) {
	eng := newTestEngine(t, []store.Scored{{Unit: unit("1", "a.go", 1, 0.9), Score: 0.9}}, nil)
	resp, err := eng.SearchCode(context.Background(), Query{Text: "foo", Mode: ModeHybrid, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
}

func TestSearchCode_HybridFusesBothSources(t *testing.T) {
	eng := newTestEngine(t,
		[]store.Scored{{Unit: unit("1", "a.go", 1, 0), Score: 0.9}},
		[]store.Scored{{Unit: unit("2", "b.go", 1, 0), Score: 5.0}},
	)
	resp, err := eng.SearchCode(context.Background(), Query{Text: "foo", Mode: ModeHybrid, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
}

func TestSearchCode_DedupsByFileAndLine(t *testing.T) {
	eng := newTestEngine(t, []store.Scored{
		{Unit: unit("1", "a.go", 1, 0), Score: 0.9},
		{Unit: unit("2", "a.go", 1, 0), Score: 0.95},
	}, nil)
	resp, err := eng.SearchCode(context.Background(), Query{Text: "foo", Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "2", resp.Results[0].Unit.ID)
}

func TestSearchCode_PostFiltersByFilePattern(t *testing.T) {
	eng := newTestEngine(t, []store.Scored{
		{Unit: unit("1", "src/a.go", 1, 0), Score: 0.9},
		{Unit: unit("2", "src/b.go", 1, 0), Score: 0.9},
	}, nil)
	resp, err := eng.SearchCode(context.Background(), Query{Text: "foo", Limit: 10, Filters: Filters{FilePattern: "a.go"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "1", resp.Results[0].Unit.ID)
}

func TestSearchCode_LifecycleWeightingDownranksStale(t *testing.T) {
	stale := unit("1", "a.go", 1, 0)
	stale.LifecycleState = model.LifecycleStale
	active := unit("2", "b.go", 1, 0)
	active.LifecycleState = model.LifecycleActive

	eng := newTestEngine(t, []store.Scored{
		{Unit: stale, Score: 0.9},
		{Unit: active, Score: 0.85},
	}, nil)
	resp, err := eng.SearchCode(context.Background(), Query{Text: "foo", Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "2", resp.Results[0].Unit.ID) // 0.85*1.0 > 0.9*0.1
}

func TestFindSimilarCode_EmptySnippetIsValidationError(t *testing.T) {
	eng := newTestEngine(t, nil, nil)
	_, err := eng.FindSimilarCode(context.Background(), "", 10, Filters{})
	require.Error(t, err)
}

func TestIsLikelyDuplicate(t *testing.T) {
	assert.True(t, IsLikelyDuplicate(0.95))
	assert.False(t, IsLikelyDuplicate(0.94))
}
