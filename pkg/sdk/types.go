package bioatlas

// Message is one conversation turn. The API answers the latest user turn;
// earlier turns are accepted and ignored.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest is a question for the corpus. Set Question directly, or pass a
// Messages history and let the server pick the latest user turn. Persona
// selects the audience profile; empty means the server default.
type AskRequest struct {
	Question string    `json:"question,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Persona  string    `json:"persona,omitempty"`
}

// Citation is one legend entry. Index matches the [n] markers in the answer.
type Citation struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// AskResponse is a complete answer with its citation legend.
type AskResponse struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Source is one publication from a sources lookup.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// EventType tags one element of a streamed answer.
type EventType string

const (
	// EventCitations carries the citation legend, always first in a stream.
	EventCitations EventType = "citations"
	// EventChunk carries one fragment of generated text.
	EventChunk EventType = "chunk"
	// EventDone terminates a successful stream.
	EventDone EventType = "done"
	// EventError terminates a failed stream; events already received remain valid.
	EventError EventType = "error"
)

// Event is one element of a streamed answer.
type Event struct {
	Type      EventType  `json:"type"`
	Citations []Citation `json:"citations,omitempty"`
	Content   string     `json:"content,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// HealthReport is the service health snapshot.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
