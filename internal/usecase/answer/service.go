// Package answer orchestrates the retrieval-and-citation pipeline: embed the
// question, retrieve nearest passages, collapse them to one per publication,
// build a budgeted context, generate an answer, and keep its citation markers
// consistent with the legend.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spacehacks/bioatlas/internal/domain"
)

// NoInformationAnswer is returned when retrieval finds nothing to ground
// an answer on.
const NoInformationAnswer = "I could not find the answer in the provided sources."

// Options sizes evidence selection and context assembly.
type Options struct {
	TopK             int // distinct publications per answer
	NumCandidates    int // k-NN candidate pool
	ContextBudget    int // total context characters
	PassageCharLimit int // characters per context block
	SnippetCharLimit int // characters per citation snippet
}

func (o *Options) applyDefaults() {
	if o.TopK <= 0 {
		o.TopK = 4
	}
	if o.NumCandidates <= 0 {
		o.NumCandidates = 50
	}
	if o.ContextBudget <= 0 {
		o.ContextBudget = 3600
	}
	if o.PassageCharLimit <= 0 {
		o.PassageCharLimit = 1200
	}
	if o.SnippetCharLimit <= 0 {
		o.SnippetCharLimit = 300
	}
}

// Service answers questions over the indexed corpus.
type Service struct {
	embedder       Embedder
	retriever      Retriever
	generator      Generator
	opts           Options
	personas       map[string]domain.Persona
	defaultPersona string
	logger         *zap.Logger
}

// New creates an answer service with default sizing and the built-in personas.
func New(embedder Embedder, retriever Retriever, generator Generator, logger *zap.Logger) *Service {
	opts := Options{}
	opts.applyDefaults()
	return &Service{
		embedder:       embedder,
		retriever:      retriever,
		generator:      generator,
		opts:           opts,
		personas:       domain.DefaultPersonas(),
		defaultPersona: domain.DefaultPersonaName,
		logger:         logger,
	}
}

// WithOptions overrides evidence and context sizing.
func (s *Service) WithOptions(opts Options) *Service {
	opts.applyDefaults()
	s.opts = opts
	return s
}

// WithPersonas replaces the persona table and the default persona name.
func (s *Service) WithPersonas(personas map[string]domain.Persona, defaultName string) *Service {
	if len(personas) > 0 {
		s.personas = personas
	}
	if defaultName != "" {
		s.defaultPersona = defaultName
	}
	return s
}

// Ask runs the full pipeline and returns the sanitized answer with its
// citation legend. With no evidence the fixed no-information answer is
// returned without calling the generative backend.
func (s *Service) Ask(ctx context.Context, question, personaName string) (domain.Answer, error) {
	evidence, err := s.retrieve(ctx, question)
	if err != nil {
		return domain.Answer{}, err
	}

	citations := formatCitations(evidence, s.opts.SnippetCharLimit)

	if len(evidence) == 0 {
		return domain.Answer{Text: NoInformationAnswer, Citations: citations}, nil
	}

	req := s.generationRequest(question, evidence, personaName)

	text, err := s.generator.Generate(ctx, req)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	return domain.Answer{
		Text:      sanitizeCitations(text, len(evidence)),
		Citations: citations,
	}, nil
}

// AskStream runs the pipeline in streaming mode, delivering an ordered event
// sequence to emit: the citation legend first, then sanitized text chunks in
// upstream order, then exactly one done or error event. Pipeline failures
// become the terminal error event; events already delivered stand. The
// returned error is non-nil only when emit itself failed, so callers can tell
// a gone consumer from an upstream failure.
func (s *Service) AskStream(ctx context.Context, question, personaName string, emit func(domain.StreamEvent) error) error {
	evidence, err := s.retrieve(ctx, question)
	if err != nil {
		s.logger.Error("streaming retrieval failed", zap.Error(err))
		return emit(domain.ErrorEvent("failed to retrieve documents"))
	}

	citations := formatCitations(evidence, s.opts.SnippetCharLimit)
	if err := emit(domain.CitationsEvent(citations)); err != nil {
		return err
	}

	if len(evidence) == 0 {
		if err := emit(domain.ChunkEvent(NoInformationAnswer)); err != nil {
			return err
		}
		return emit(domain.DoneEvent())
	}

	req := s.generationRequest(question, evidence, personaName)

	var emitErr error
	err = s.generator.GenerateStream(ctx, req, func(delta string) error {
		clean := sanitizeCitations(delta, len(evidence))
		if clean == "" {
			return nil
		}
		if e := emit(domain.ChunkEvent(clean)); e != nil {
			emitErr = e
			return e
		}
		return nil
	})
	if emitErr != nil {
		return emitErr
	}
	if err != nil {
		s.logger.Error("streaming generation failed", zap.Error(err))
		return emit(domain.ErrorEvent("failed to generate answer"))
	}

	return emit(domain.DoneEvent())
}

// Sources returns the distinct publications nearest to the question, without
// invoking generation.
func (s *Service) Sources(ctx context.Context, question string, k int) ([]domain.Source, error) {
	if k <= 0 {
		k = s.opts.TopK
	}

	embResult, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	passages, err := s.retriever.SearchKNN(ctx, embResult.Embedding, k, s.opts.NumCandidates)
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}

	evidence := dedupePassages(passages, k)
	sources := make([]domain.Source, 0, len(evidence))
	for _, p := range evidence {
		sources = append(sources, domain.Source{Title: titleOrUntitled(p.Title), URL: p.URL})
	}
	return sources, nil
}

// Evidence returns the citation legend and the budgeted context block for a
// question, without invoking generation.
func (s *Service) Evidence(ctx context.Context, question string) ([]domain.Citation, string, error) {
	evidence, err := s.retrieve(ctx, question)
	if err != nil {
		return nil, "", err
	}
	citations := formatCitations(evidence, s.opts.SnippetCharLimit)
	contextBlock := buildContext(evidence, s.opts.ContextBudget, s.opts.PassageCharLimit)
	return citations, contextBlock, nil
}

// retrieve embeds the question and returns the deduplicated evidence set.
func (s *Service) retrieve(ctx context.Context, question string) ([]domain.Passage, error) {
	embResult, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	passages, err := s.retriever.SearchKNN(ctx, embResult.Embedding, s.opts.TopK, s.opts.NumCandidates)
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}

	evidence := dedupePassages(passages, s.opts.TopK)

	s.logger.Debug("evidence selected",
		zap.Int("raw_hits", len(passages)),
		zap.Int("evidence", len(evidence)),
	)

	return evidence, nil
}

// generationRequest assembles the prompt from the persona and the budgeted
// context. Unknown persona names fall back to the default profile.
func (s *Service) generationRequest(question string, evidence []domain.Passage, personaName string) domain.GenerationRequest {
	persona := s.resolvePersona(personaName)
	contextBlock := buildContext(evidence, s.opts.ContextBudget, s.opts.PassageCharLimit)

	return domain.GenerationRequest{
		SystemPrompt: persona.SystemPrompt,
		UserPrompt:   userPrompt(question, contextBlock),
		Temperature:  persona.Temperature,
		MaxTokens:    persona.MaxTokens,
	}
}

func (s *Service) resolvePersona(name string) domain.Persona {
	if p, ok := s.personas[name]; ok {
		return p
	}
	return s.personas[s.defaultPersona]
}

func userPrompt(question, contextBlock string) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Only use the provided context.\n")
	b.WriteString("- Include bracket citations like [1] referencing the relevant source numbers.\n")
	b.WriteString("- If unsure or unsupported, say you could not find the answer in the provided sources.")
	return b.String()
}
