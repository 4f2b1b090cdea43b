package answer

import (
	"strings"
	"testing"

	"github.com/spacehacks/bioatlas/internal/domain"
)

func TestFormatCitations_OnePerPassageInOrder(t *testing.T) {
	evidence := []domain.Passage{
		{Title: "Bone Loss", URL: "https://example.org/1", Content: "Bone mass decreased."},
		{Title: "Plant Growth", URL: "https://example.org/2", Content: "Roots grew sideways."},
		{Title: "Radiation", Content: "DNA damage accumulated."},
	}

	got := formatCitations(evidence, 300)

	if len(got) != len(evidence) {
		t.Fatalf("expected %d citations, got %d", len(evidence), len(got))
	}
	for i, c := range got {
		if c.Index != i+1 {
			t.Errorf("citation %d has index %d", i, c.Index)
		}
		if c.Title != evidence[i].Title {
			t.Errorf("citation %d title = %q, want %q", i, c.Title, evidence[i].Title)
		}
	}
	if got[2].URL != "" {
		t.Errorf("citation without url must stay empty, got %q", got[2].URL)
	}
}

func TestFormatCitations_Empty(t *testing.T) {
	got := formatCitations(nil, 300)
	if len(got) != 0 {
		t.Errorf("expected no citations, got %+v", got)
	}
}

func TestDeriveSnippet_ExpandsHighlightToSentence(t *testing.T) {
	content := "Earlier findings were mixed. Mice aboard the station lost cortical bone rapidly. Recovery on Earth took months."
	p := domain.Passage{
		Content:   content,
		Highlight: "lost <em>cortical bone</em> rapidly",
	}

	got := deriveSnippet(p, 300)

	want := "Mice aboard the station lost cortical bone rapidly."
	if got != want {
		t.Errorf("deriveSnippet = %q, want %q", got, want)
	}
}

func TestDeriveSnippet_HighlightNotInContent(t *testing.T) {
	p := domain.Passage{
		Content:   "The station crew completed the experiment.",
		Highlight: "something the store highlighted differently",
	}

	got := deriveSnippet(p, 300)

	if got != p.Content {
		t.Errorf("expected fallback to content, got %q", got)
	}
}

func TestDeriveSnippet_NoHighlightFallsBackToContent(t *testing.T) {
	p := domain.Passage{Content: "Plain chunk text."}

	if got := deriveSnippet(p, 300); got != "Plain chunk text." {
		t.Errorf("deriveSnippet = %q", got)
	}
}

func TestDeriveSnippet_NothingToQuote(t *testing.T) {
	if got := deriveSnippet(domain.Passage{}, 300); got != "" {
		t.Errorf("expected empty snippet, got %q", got)
	}
}

func TestDeriveSnippet_CapsWithEllipsis(t *testing.T) {
	p := domain.Passage{Content: strings.Repeat("a", 400)}

	got := deriveSnippet(p, 100)

	if !strings.HasSuffix(got, ellipsis) {
		t.Errorf("expected ellipsis marker, got %q", got)
	}
	if len(strings.TrimSuffix(got, ellipsis)) != 100 {
		t.Errorf("snippet body is %d chars, want 100", len(strings.TrimSuffix(got, ellipsis)))
	}
}

func TestDeriveSnippet_NoTerminatorNearby(t *testing.T) {
	content := strings.Repeat("x", 150) + "HIGHLIGHT" + strings.Repeat("y", 250)
	p := domain.Passage{Content: content, Highlight: "HIGHLIGHT"}

	got := deriveSnippet(p, 1000)

	// Without sentence terminators the scan stops at the byte bounds.
	if len(got) != snippetBackscan+len("HIGHLIGHT")+snippetForwardScan {
		t.Errorf("snippet length = %d, want %d", len(got), snippetBackscan+len("HIGHLIGHT")+snippetForwardScan)
	}
}
