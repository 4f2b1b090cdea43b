package answer

import (
	"context"

	"github.com/spacehacks/bioatlas/internal/domain"
)

// Embedder vectorizes the question text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Retriever finds the passages nearest to a query vector.
type Retriever interface {
	SearchKNN(ctx context.Context, vector []float32, k, numCandidates int) ([]domain.Passage, error)
}

// Generator produces answer text from a prompt, in one shot or as a pull-based
// delta stream. GenerateStream forwards deltas in upstream order and returns
// an emit error unwrapped so the caller can tell a gone consumer from an
// upstream failure.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
	GenerateStream(ctx context.Context, req domain.GenerationRequest, emit func(delta string) error) error
}
