package answer

import "github.com/spacehacks/bioatlas/internal/domain"

// dedupePassages collapses chunk hits of the same publication into one
// passage per publication: the best-scoring chunk wins, score ties keep the
// earlier hit. Publications keep their first-seen order, and the result is
// truncated to limit. Passages without an article id stay separate candidates
// rather than merging with each other. Idempotent.
func dedupePassages(passages []domain.Passage, limit int) []domain.Passage {
	if limit <= 0 || len(passages) == 0 {
		return nil
	}

	seen := make(map[string]int, len(passages)) // article id -> index in out
	out := make([]domain.Passage, 0, limit)

	for _, p := range passages {
		if p.ArticleID == "" {
			out = append(out, p)
			continue
		}
		if i, ok := seen[p.ArticleID]; ok {
			if p.Score > out[i].Score {
				out[i] = p
			}
			continue
		}
		seen[p.ArticleID] = len(out)
		out = append(out, p)
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
