package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spacehacks/bioatlas/internal/domain"
	"github.com/spacehacks/bioatlas/internal/metrics"
)

// inferenceRequest is the body of a text_embedding inference call.
type inferenceRequest struct {
	Input string `json:"input"`
}

// inferenceResponse covers the layouts the inference API is known to produce.
// Deployed endpoints differ: some return predicted_value (flat or one row per
// input), newer ones return a named text_embedding result list.
type inferenceResponse struct {
	PredictedValue json.RawMessage `json:"predicted_value"`
	TextEmbedding  []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"text_embedding"`
}

// vectorFromInference probes the known response layouts in order; the first
// probe yielding a non-empty vector wins. Reports false when no layout matches.
func vectorFromInference(resp inferenceResponse) ([]float32, bool) {
	if len(resp.PredictedValue) > 0 {
		var nested [][]float32
		if json.Unmarshal(resp.PredictedValue, &nested) == nil && len(nested) > 0 && len(nested[0]) > 0 {
			return nested[0], true
		}
		var flat []float32
		if json.Unmarshal(resp.PredictedValue, &flat) == nil && len(flat) > 0 {
			return flat, true
		}
	}
	if len(resp.TextEmbedding) > 0 && len(resp.TextEmbedding[0].Embedding) > 0 {
		return resp.TextEmbedding[0].Embedding, true
	}
	return nil, false
}

// Embed implements domain.Embedder via the store's inference endpoint.
// The inference API reports no token usage, so the result carries only the vector.
func (c *Client) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	path := "/_inference/text_embedding/" + c.modelID

	start := time.Now()

	var resp inferenceResponse
	err := c.doJSON(ctx, "POST", path, inferenceRequest{Input: text}, &resp)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("elastic", c.modelID, "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("inference call: %w", err)
	}

	vector, ok := vectorFromInference(resp)
	if !ok {
		metrics.EmbeddingRequestsTotal.WithLabelValues("elastic", c.modelID, "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("inference response has no recognizable embedding: %w", domain.ErrMalformedResponse)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("elastic", c.modelID, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("elastic", c.modelID).Observe(duration.Seconds())

	return domain.EmbeddingResult{Embedding: vector}, nil
}
