package domain

// Passage is one retrieved chunk of a source publication. ArticleID ties
// chunks of the same publication together; the store computes it at ingest
// time as a digest of the publication URL.
type Passage struct {
	ID         string
	ArticleID  string
	Title      string
	URL        string
	Content    string
	Highlight  string
	ChunkIndex int
	Score      float64
}

// Source identifies one distinct publication matched by a query.
type Source struct {
	Title string
	URL   string
}

// Citation maps one bracketed marker in a generated answer to its source
// publication. URL and Snippet are optional; an absent snippet stays absent
// rather than becoming an empty string on the wire.
type Citation struct {
	Index   int
	Title   string
	URL     string
	Snippet string
}
