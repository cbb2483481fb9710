// Package embedding implements C2, the Embedding Pipeline: batch + cache
// text->vector, parallel across worker goroutines for large batches. The
// embedding model itself is an opaque collaborator (spec.md §1) — this
// package only defines the narrow contract it must satisfy.
package embedding

import "context"

// Model is the opaque embed(text) -> vector collaborator. Implementations
// are expected to lazily load and reuse any underlying model weights.
type Model interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
	ModelName() string
}
