package domain

// Answer is a generated answer paired with its citation legend.
type Answer struct {
	Text      string
	Citations []Citation
}

// GenerationRequest carries one completion request to a generative backend.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

// EventType tags one element of a streamed answer.
type EventType string

const (
	// EventCitations carries the citation legend, always first in a stream.
	EventCitations EventType = "citations"
	// EventChunk carries one sanitized fragment of generated text.
	EventChunk EventType = "chunk"
	// EventDone terminates a successful stream.
	EventDone EventType = "done"
	// EventError terminates a failed stream; events already delivered remain valid.
	EventError EventType = "error"
)

// StreamEvent is one element of a streamed answer: exactly one citations
// event, zero or more chunks, then a single done or error.
type StreamEvent struct {
	Type      EventType
	Citations []Citation
	Content   string
	Err       string
}

// CitationsEvent builds the opening legend event.
func CitationsEvent(citations []Citation) StreamEvent {
	return StreamEvent{Type: EventCitations, Citations: citations}
}

// ChunkEvent builds a text fragment event.
func ChunkEvent(content string) StreamEvent {
	return StreamEvent{Type: EventChunk, Content: content}
}

// DoneEvent builds the terminal success event.
func DoneEvent() StreamEvent { return StreamEvent{Type: EventDone} }

// ErrorEvent builds the terminal failure event.
func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Type: EventError, Err: msg}
}
