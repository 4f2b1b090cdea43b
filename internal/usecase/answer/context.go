package answer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spacehacks/bioatlas/internal/domain"
)

const blockSeparator = "\n\n"

// buildContext renders evidence into numbered prompt blocks under a character
// budget. Blocks follow evidence order; a block that would push the running
// total past the budget is dropped whole and building stops, so the rendered
// context is always a prefix of the evidence set. Budgets count characters,
// not bytes.
func buildContext(evidence []domain.Passage, budget, perPassage int) string {
	var b strings.Builder
	total := 0

	for i, p := range evidence {
		block := formatBlock(i+1, p, perPassage)
		cost := utf8.RuneCountInString(block)
		if b.Len() > 0 {
			cost += len(blockSeparator)
		}
		if total+cost > budget {
			break
		}
		if b.Len() > 0 {
			b.WriteString(blockSeparator)
		}
		b.WriteString(block)
		total += cost
	}

	return b.String()
}

// formatBlock renders one passage the way the corpus prompts expect it:
// the citation index, the publication title and address, and the excerpt
// truncated to the per-passage cap.
func formatBlock(index int, p domain.Passage, perPassage int) string {
	return fmt.Sprintf("[%d] Title: %s\nLink: %s\nExcerpt: %s",
		index, titleOrUntitled(p.Title), p.URL, truncateChars(p.Content, perPassage))
}

func titleOrUntitled(title string) string {
	if title == "" {
		return "Untitled"
	}
	return title
}

// truncateChars cuts s to at most limit characters without splitting a rune.
func truncateChars(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
