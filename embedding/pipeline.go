package embedding

import (
	"context"
	"strings"

	"coderag.evalgo.org/internal/errs"
	"coderag.evalgo.org/internal/workerpool"
)

// DefaultBatchThreshold is the batch size below which embed_batch runs
// single-threaded to avoid worker spawn overhead, per spec.md §4.C2.
const DefaultBatchThreshold = 10

// Pipeline is the embedding pipeline: cache-backed, order-preserving,
// parallel above a configurable batch threshold.
type Pipeline struct {
	model          Model
	cache          *Cache
	batchThreshold int
	workers        int
}

// Config configures a new Pipeline.
type Config struct {
	BatchThreshold int // default DefaultBatchThreshold
	Workers        int // default 4
}

// New creates a pipeline over model, caching through cache.
func New(model Model, cache *Cache, cfg Config) *Pipeline {
	if cfg.BatchThreshold <= 0 {
		cfg.BatchThreshold = DefaultBatchThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Pipeline{model: model, cache: cache, batchThreshold: cfg.BatchThreshold, workers: cfg.Workers}
}

// Dim reports the embedding model's vector dimension.
func (p *Pipeline) Dim() int { return p.model.Dim() }

// Embed returns text's L2-normalized embedding, serving from cache when
// possible.
func (p *Pipeline) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errs.Validation("embedding", "Embed", "text is empty or whitespace-only")
	}

	modelName := p.model.ModelName()
	if cached, ok, err := p.cache.Get(text, modelName); err != nil {
		return nil, err
	} else if ok {
		return cached, nil
	}

	vec, err := p.model.Embed(ctx, text)
	if err != nil {
		return nil, errs.Embedding("embedding", "Embed", "model call failed", err)
	}
	vec = Normalize(vec)

	if err := p.cache.Put(text, modelName, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch embeds texts, preserving input order. Up to batchThreshold
// texts it runs sequentially; above it, each text is one job on a bounded
// worker pool that writes its vector into the result slot at the text's
// own index. Any failure — including an empty/whitespace input — aborts the
// whole call; partial batches are never returned.
func (p *Pipeline) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))

	if len(texts) <= p.batchThreshold {
		for i, text := range texts {
			vec, err := p.Embed(ctx, text)
			if err != nil {
				return nil, err
			}
			results[i] = vec
		}
		return results, nil
	}

	jobs := make([]workerpool.Job, len(texts))
	for i, text := range texts {
		i, text := i, text
		jobs[i] = func(ctx context.Context) error {
			vec, err := p.Embed(ctx, text)
			if err != nil {
				return err
			}
			results[i] = vec
			return nil
		}
	}

	if err := workerpool.Run(ctx, p.workers, jobs); err != nil {
		return nil, err
	}
	return results, nil
}
