package answer

import (
	"reflect"
	"testing"

	"github.com/spacehacks/bioatlas/internal/domain"
)

func passage(id, article string, score float64) domain.Passage {
	return domain.Passage{ID: id, ArticleID: article, Score: score}
}

func TestDedupe_KeepsBestChunkPerArticle(t *testing.T) {
	in := []domain.Passage{
		passage("1", "A", 0.9),
		passage("2", "A", 0.7),
		passage("3", "B", 0.8),
	}

	got := dedupePassages(in, 2)

	want := []domain.Passage{
		passage("1", "A", 0.9),
		passage("3", "B", 0.8),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dedupePassages = %+v, want %+v", got, want)
	}
}

func TestDedupe_LaterChunkWinsWithinArticle(t *testing.T) {
	in := []domain.Passage{
		passage("1", "A", 0.5),
		passage("2", "B", 0.6),
		passage("3", "A", 0.9),
	}

	got := dedupePassages(in, 4)

	// A keeps its first-seen position but carries the better chunk.
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	if got[0].ID != "3" || got[0].ArticleID != "A" {
		t.Errorf("first passage = %+v, want best chunk of A", got[0])
	}
	if got[1].ID != "2" {
		t.Errorf("second passage = %+v, want B's chunk", got[1])
	}
}

func TestDedupe_ScoreTieKeepsEarlierChunk(t *testing.T) {
	in := []domain.Passage{
		passage("1", "A", 0.8),
		passage("2", "A", 0.8),
	}

	got := dedupePassages(in, 4)

	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("dedupePassages = %+v, want the earlier chunk to survive the tie", got)
	}
}

func TestDedupe_TruncatesToLimit(t *testing.T) {
	in := []domain.Passage{
		passage("1", "A", 0.9),
		passage("2", "B", 0.8),
		passage("3", "C", 0.7),
	}

	got := dedupePassages(in, 2)

	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	if got[0].ArticleID != "A" || got[1].ArticleID != "B" {
		t.Errorf("truncation changed order: %+v", got)
	}
}

func TestDedupe_EmptyArticleIDsStaySeparate(t *testing.T) {
	in := []domain.Passage{
		passage("1", "", 0.9),
		passage("2", "", 0.8),
		passage("3", "A", 0.7),
	}

	got := dedupePassages(in, 4)

	if len(got) != 3 {
		t.Fatalf("expected 3 passages (anonymous chunks never merge), got %d", len(got))
	}
}

func TestDedupe_NeverRepeatsAnArticle(t *testing.T) {
	in := []domain.Passage{
		passage("1", "A", 0.1),
		passage("2", "B", 0.2),
		passage("3", "A", 0.3),
		passage("4", "B", 0.4),
		passage("5", "A", 0.5),
	}

	got := dedupePassages(in, 10)

	seen := make(map[string]bool)
	for _, p := range got {
		if seen[p.ArticleID] {
			t.Fatalf("article %q appears twice in %+v", p.ArticleID, got)
		}
		seen[p.ArticleID] = true
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	in := []domain.Passage{
		passage("1", "A", 0.9),
		passage("2", "A", 0.7),
		passage("3", "B", 0.8),
		passage("4", "C", 0.6),
	}

	once := dedupePassages(in, 3)
	twice := dedupePassages(once, 3)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("dedupe not idempotent: %+v != %+v", once, twice)
	}
}

func TestDedupe_EmptyInput(t *testing.T) {
	if got := dedupePassages(nil, 4); got != nil {
		t.Errorf("expected nil for empty input, got %+v", got)
	}
	if got := dedupePassages([]domain.Passage{passage("1", "A", 0.5)}, 0); got != nil {
		t.Errorf("expected nil for zero limit, got %+v", got)
	}
}
