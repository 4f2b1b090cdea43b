package domain

// Persona tunes answer generation for a target audience: the system prompt
// and the sampling parameters travel together.
type Persona struct {
	Name         string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// DefaultPersonaName is used when a request names no persona.
const DefaultPersonaName = "scientist"

const baseSystemPrompt = "You are a research assistant answering questions about space biology. " +
	"Only answer using the provided context. Include in-text citations using [n] " +
	"where n corresponds to the numbered sources. If the context does not " +
	"contain the answer, respond that the information is not available in the corpus."

// DefaultPersonas returns the built-in audience profiles. Config can override
// or extend them; unknown persona names fall back to DefaultPersonaName.
func DefaultPersonas() map[string]Persona {
	return map[string]Persona{
		"scientist": {
			Name:         "scientist",
			SystemPrompt: baseSystemPrompt + " Emphasize experimental design, sample sizes, key findings, and methodological caveats.",
			Temperature:  0,
			MaxTokens:    1024,
		},
		"manager": {
			Name:         "manager",
			SystemPrompt: baseSystemPrompt + " Highlight strategic value, investment signals, maturity level, and cross-program alignment.",
			Temperature:  0.2,
			MaxTokens:    768,
		},
		"mission_architect": {
			Name:         "mission_architect",
			SystemPrompt: baseSystemPrompt + " Summarize operational implications, risks to crew and mission, hardware readiness, and mitigation strategies.",
			Temperature:  0.1,
			MaxTokens:    1024,
		},
	}
}
