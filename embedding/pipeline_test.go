package embedding

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag.evalgo.org/metricsdb"
)

type fakeModel struct {
	dim   int
	calls int64
}

func (f *fakeModel) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt64(&f.calls, 1)
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32(len(text) + i)
	}
	return v, nil
}

func (f *fakeModel) Dim() int          { return f.dim }
func (f *fakeModel) ModelName() string { return "fake-v1" }

func newTestPipeline(t *testing.T) (*Pipeline, *fakeModel) {
	t.Helper()
	db, err := metricsdb.Open(":memory:")
	require.NoError(t, err)
	model := &fakeModel{dim: 4}
	return New(model, NewCache(db), Config{}), model
}

func TestPipeline_Embed_CachesOnHit(t *testing.T) {
	p, model := newTestPipeline(t)
	ctx := context.Background()

	v1, err := p.Embed(ctx, "hello world")
	require.NoError(t, err)
	v2, err := p.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.EqualValues(t, 1, model.calls)
}

func TestPipeline_Embed_RejectsBlankText(t *testing.T) {
	p, _ := newTestPipeline(t)
	_, err := p.Embed(context.Background(), "   ")
	require.Error(t, err)
}

func TestPipeline_EmbedBatch_PreservesOrder(t *testing.T) {
	p, _ := newTestPipeline(t)
	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%02d", i)
	}

	vecs, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 20)

	for i, text := range texts {
		want, err := p.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, want, vecs[i])
	}
}

func TestPipeline_EmbedBatch_AbortsWholeBatchOnBadInput(t *testing.T) {
	p, _ := newTestPipeline(t)
	texts := []string{"a", "b", "", "d", "e", "f", "g", "h", "i", "j", "k"}

	_, err := p.EmbedBatch(context.Background(), texts)
	require.Error(t, err)
}

func TestPipeline_EmbedBatch_Empty(t *testing.T) {
	p, _ := newTestPipeline(t)
	vecs, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
