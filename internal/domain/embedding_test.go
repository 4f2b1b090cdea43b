package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = text
	return s.result, s.err
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "query: ")

	result, err := emb.Embed(context.Background(), "bone loss in microgravity")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "query: bone loss in microgravity" {
		t.Errorf("expected prepended text, got %q", inner.got)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	inner := &stubEmbedder{err: innerErr}
	emb := NewInstructionEmbedder(inner, "query: ")

	_, err := emb.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestInstructionEmbedder_EmptyInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.5}}}
	emb := NewInstructionEmbedder(inner, "")

	_, err := emb.Embed(context.Background(), "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "test" {
		t.Errorf("expected 'test', got %q", inner.got)
	}
}

func TestUpstreamStatusError_Unwrap(t *testing.T) {
	err := NewUpstreamStatus("elasticsearch", 503)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}

	var statusErr *UpstreamStatusError
	if !errors.As(err, &statusErr) {
		t.Fatal("expected *UpstreamStatusError")
	}
	if statusErr.Status != 503 {
		t.Errorf("expected status 503, got %d", statusErr.Status)
	}
	if statusErr.Service != "elasticsearch" {
		t.Errorf("expected service elasticsearch, got %q", statusErr.Service)
	}
}

func TestDefaultPersonas_ContainsDefault(t *testing.T) {
	personas := DefaultPersonas()
	p, ok := personas[DefaultPersonaName]
	if !ok {
		t.Fatalf("default persona %q missing", DefaultPersonaName)
	}
	if p.SystemPrompt == "" {
		t.Error("default persona has empty system prompt")
	}
	if p.MaxTokens <= 0 {
		t.Errorf("default persona has non-positive max tokens: %d", p.MaxTokens)
	}
}
