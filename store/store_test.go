package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag.evalgo.org/model"
)

func unit(id, project, content string, vec []float32) model.MemoryUnit {
	return model.MemoryUnit{
		ID:          id,
		Content:     content,
		Embedding:   vec,
		Category:    model.CategoryCodeUnit,
		ProjectName: project,
		CreatedAt:   time.Now(),
		Metadata:    map[string]string{model.MetaFilePath: "a.go", model.MetaLanguage: "go"},
	}
}

func TestChromemStore_UpsertAndQuery(t *testing.T) {
	s, err := NewChromemStore("", false)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	units := []model.MemoryUnit{
		unit("1", "proj", "func Foo() {}", []float32{1, 0, 0}),
		unit("2", "proj", "func Bar() {}", []float32{0, 1, 0}),
	}
	require.NoError(t, s.Upsert(ctx, units))

	results, err := s.Query(ctx, []float32{1, 0, 0}, 2, Filter{ProjectName: "proj"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "1", results[0].Unit.ID)
}

func TestChromemStore_DeleteByFilePath(t *testing.T) {
	s, err := NewChromemStore("", false)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []model.MemoryUnit{unit("1", "proj", "x", []float32{1, 0})}))

	n, err := s.DeleteByFilePath(ctx, "proj", "a.go")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := s.Count(ctx, "proj")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestChromemStore_All_Paginates(t *testing.T) {
	s, err := NewChromemStore("", false)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Upsert(ctx, []model.MemoryUnit{
			unit(string(rune('a'+i)), "proj", "x", []float32{float32(i), 0}),
		}))
	}

	page, err := s.All(ctx, "proj", 0, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestBleveIndex_IndexAndSearch(t *testing.T) {
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	u := unit("1", "proj", "func ParseConfig loads settings from disk", nil)
	require.NoError(t, idx.Index(ctx, u))

	results, err := idx.Search(ctx, "ParseConfig", 5, Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "1", results[0].Unit.ID)
}

func TestBleveIndex_Search_EmptyQuery(t *testing.T) {
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Search(context.Background(), "", 5, Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUnitID_Deterministic(t *testing.T) {
	a := UnitID("proj", "a.go", "Foo", 10)
	b := UnitID("proj", "a.go", "Foo", 10)
	c := UnitID("proj", "a.go", "Foo", 11)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
