package elastic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spacehacks/bioatlas/internal/domain"
	"github.com/spacehacks/bioatlas/internal/metrics"
)

// vectorField is the dense_vector field the ingest pipeline writes.
const vectorField = "content_vector"

type knnQuery struct {
	Field         string    `json:"field"`
	QueryVector   []float32 `json:"query_vector"`
	K             int       `json:"k"`
	NumCandidates int       `json:"num_candidates"`
}

type knnSearchRequest struct {
	KNN       knnQuery       `json:"knn"`
	Source    []string       `json:"_source"`
	Size      int            `json:"size"`
	Highlight *highlightSpec `json:"highlight,omitempty"`
}

// highlightSpec marshals to {"fields": {"content": {}}}.
type highlightSpec struct {
	Fields map[string]struct{} `json:"fields"`
}

type knnSearchResponse struct {
	Hits struct {
		Hits []knnHit `json:"hits"`
	} `json:"hits"`
}

type knnHit struct {
	ID        string              `json:"_id"`
	Score     float64             `json:"_score"`
	Source    knnHitSource        `json:"_source"`
	Highlight map[string][]string `json:"highlight"`
}

// knnHitSource requests both url and link: older indexes stored the
// publication address under link, current mappings use url.
type knnHitSource struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Link       string `json:"link"`
	Content    string `json:"content"`
	ArticleID  string `json:"article_id"`
	ChunkIndex int    `json:"chunk_index"`
}

// SearchKNN retrieves the passages nearest to vector. It over-fetches twice
// the requested k so that collapsing chunks of the same publication can still
// fill k distinct documents, and asks the store to highlight the matched
// content for snippet extraction.
func (c *Client) SearchKNN(ctx context.Context, vector []float32, k, numCandidates int) ([]domain.Passage, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty query vector: %w", domain.ErrInvalidRequest)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidRequest)
	}

	fetchSize := 2 * k
	if numCandidates < fetchSize {
		numCandidates = fetchSize
	}

	reqBody := knnSearchRequest{
		KNN: knnQuery{
			Field:         vectorField,
			QueryVector:   vector,
			K:             fetchSize,
			NumCandidates: numCandidates,
		},
		Source:    []string{"title", "url", "link", "content", "chunk_index", "article_id"},
		Size:      fetchSize,
		Highlight: &highlightSpec{Fields: map[string]struct{}{"content": {}}},
	}

	start := time.Now()

	var resp knnSearchResponse
	err := c.doJSON(ctx, "POST", "/"+c.index+"/_knn_search", reqBody, &resp)

	duration := time.Since(start)

	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues(c.index, "error").Inc()
		return nil, fmt.Errorf("knn search: %w", err)
	}

	metrics.RetrievalRequestsTotal.WithLabelValues(c.index, "success").Inc()
	metrics.RetrievalDuration.WithLabelValues(c.index).Observe(duration.Seconds())
	metrics.RetrievalHits.WithLabelValues(c.index).Observe(float64(len(resp.Hits.Hits)))

	passages := make([]domain.Passage, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		passages = append(passages, passageFromHit(hit))
	}

	c.logger.Debug("retrieved passages",
		zap.String("index", c.index),
		zap.Int("requested", fetchSize),
		zap.Int("returned", len(passages)),
	)

	return passages, nil
}

func passageFromHit(hit knnHit) domain.Passage {
	url := hit.Source.URL
	if url == "" {
		url = hit.Source.Link
	}

	var highlight string
	if fragments := hit.Highlight["content"]; len(fragments) > 0 {
		highlight = fragments[0]
	}

	return domain.Passage{
		ID:         hit.ID,
		ArticleID:  hit.Source.ArticleID,
		Title:      hit.Source.Title,
		URL:        url,
		Content:    hit.Source.Content,
		Highlight:  highlight,
		ChunkIndex: hit.Source.ChunkIndex,
		Score:      hit.Score,
	}
}
