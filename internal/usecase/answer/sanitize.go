package answer

import (
	"regexp"
	"strconv"

	"github.com/spacehacks/bioatlas/internal/metrics"
)

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// sanitizeCitations strips bracketed markers that point outside the evidence
// set: [k] survives only when 1 <= k <= n. The same pass runs on batch
// answers and on each streamed delta; a marker split across two deltas is a
// known gap we accept rather than buffer the stream for.
func sanitizeCitations(text string, n int) string {
	return citationMarker.ReplaceAllStringFunc(text, func(marker string) string {
		k, err := strconv.Atoi(marker[1 : len(marker)-1])
		if err == nil && k >= 1 && k <= n {
			return marker
		}
		metrics.CitationMarkersRemovedTotal.Inc()
		return ""
	})
}
