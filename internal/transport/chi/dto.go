package chi

import "github.com/spacehacks/bioatlas/internal/domain"

// Wire types for the HTTP API.

// messageDTO is one conversation turn. Only the most recent user turn drives
// retrieval and generation; earlier turns are accepted and ignored.
type messageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type askRequest struct {
	Question string       `json:"question"`
	Messages []messageDTO `json:"messages"`
	Persona  string       `json:"persona"`
}

// question resolves the effective question: an explicit question field wins,
// otherwise the latest user-authored message.
func (r askRequest) question() string {
	if r.Question != "" {
		return r.Question
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" && r.Messages[i].Content != "" {
			return r.Messages[i].Content
		}
	}
	return ""
}

type citationDTO struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

type askResponse struct {
	Answer    string        `json:"answer"`
	Citations []citationDTO `json:"citations"`
}

type sourceDTO struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

type sourcesResponse struct {
	Sources []sourceDTO `json:"sources"`
}

// streamEventDTO is one SSE data payload. Citations stays a pointer so only
// the legend event carries the (possibly empty) array.
type streamEventDTO struct {
	Type      string         `json:"type"`
	Citations *[]citationDTO `json:"citations,omitempty"`
	Content   string         `json:"content,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func citationsToDTO(citations []domain.Citation) []citationDTO {
	out := make([]citationDTO, len(citations))
	for i, c := range citations {
		out[i] = citationDTO{
			Index:   c.Index,
			Title:   c.Title,
			URL:     c.URL,
			Snippet: c.Snippet,
		}
	}
	return out
}

func eventToDTO(ev domain.StreamEvent) streamEventDTO {
	dto := streamEventDTO{Type: string(ev.Type)}
	switch ev.Type {
	case domain.EventCitations:
		citations := citationsToDTO(ev.Citations)
		dto.Citations = &citations
	case domain.EventChunk:
		dto.Content = ev.Content
	case domain.EventError:
		dto.Error = ev.Err
	case domain.EventDone:
	}
	return dto
}
