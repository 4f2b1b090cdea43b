package answer

import (
	"regexp"
	"strings"

	"github.com/spacehacks/bioatlas/internal/domain"
)

const (
	// snippetBackscan bounds the backward search for a sentence start.
	snippetBackscan = 100
	// snippetForwardScan bounds the forward search for a sentence end.
	snippetForwardScan = 200

	ellipsis = "…"
)

// formatCitations derives the citation legend from the evidence set: one
// citation per passage, 1-based index matching the passage position. The
// legend is computed before generation, so clients can render it even when
// the generative call later fails.
func formatCitations(evidence []domain.Passage, snippetLimit int) []domain.Citation {
	citations := make([]domain.Citation, 0, len(evidence))
	for i, p := range evidence {
		citations = append(citations, domain.Citation{
			Index:   i + 1,
			Title:   titleOrUntitled(p.Title),
			URL:     p.URL,
			Snippet: deriveSnippet(p, snippetLimit),
		})
	}
	return citations
}

var highlightTags = regexp.MustCompile(`</?em>`)

// deriveSnippet extracts evidence text for one citation. The store's
// highlighted excerpt is located inside the full passage content and expanded
// outward to sentence boundaries so the quote reads naturally. Without a
// highlight the raw content serves as the snippet; without either the snippet
// stays empty and is omitted on the wire.
func deriveSnippet(p domain.Passage, limit int) string {
	highlight := highlightTags.ReplaceAllString(p.Highlight, "")

	if highlight == "" || p.Content == "" {
		return capSnippet(firstNonEmpty(highlight, p.Content), limit)
	}

	idx := strings.Index(p.Content, highlight)
	if idx < 0 {
		return capSnippet(p.Content, limit)
	}

	start := expandToSentenceStart(p.Content, idx)
	end := expandToSentenceEnd(p.Content, idx+len(highlight))

	return capSnippet(strings.TrimSpace(p.Content[start:end]), limit)
}

// expandToSentenceStart scans backward from pos, at most snippetBackscan
// bytes, for a sentence terminator; the snippet starts just after it.
func expandToSentenceStart(s string, pos int) int {
	limit := pos - snippetBackscan
	if limit < 0 {
		limit = 0
	}
	for i := pos - 1; i >= limit; i-- {
		if isSentenceEnd(s[i]) {
			return i + 1
		}
	}
	return limit
}

// expandToSentenceEnd scans forward from pos, at most snippetForwardScan
// bytes, for a sentence terminator; the snippet ends with it.
func expandToSentenceEnd(s string, pos int) int {
	limit := pos + snippetForwardScan
	if limit > len(s) {
		limit = len(s)
	}
	for i := pos; i < limit; i++ {
		if isSentenceEnd(s[i]) {
			return i + 1
		}
	}
	return limit
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// capSnippet enforces the configured snippet length, marking cut text with an
// ellipsis. Cuts fall on rune boundaries.
func capSnippet(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	cut := truncateChars(s, limit)
	if cut == s {
		return s
	}
	return cut + ellipsis
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
