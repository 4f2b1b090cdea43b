package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spacehacks/bioatlas/internal/domain"
)

func newTestGenerator(t *testing.T, baseURL string) *Generator {
	t.Helper()
	gen, err := NewGenerator(&GeneratorConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "gpt-4o-mini",
		Logger:  zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return gen
}

func streamChunk(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]any{"content": content}},
		},
	}
	data, _ := json.Marshal(payload)
	return "data: " + string(data) + "\n\n"
}

func TestGenerate_ReturnsAnswer(t *testing.T) {
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Mice lose bone density [1]."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 100, "completion_tokens": 10, "total_tokens": 110}
		}`))
	}))
	defer server.Close()

	answer, err := newTestGenerator(t, server.URL).Generate(context.Background(), domain.GenerationRequest{
		SystemPrompt: "You are a research assistant.",
		UserPrompt:   "Question: what happens to bone?",
		Temperature:  0,
		MaxTokens:    256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Mice lose bone density [1]." {
		t.Errorf("unexpected answer: %q", answer)
	}

	var sent struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatalf("unmarshal sent body: %v", err)
	}
	if sent.Model != "gpt-4o-mini" {
		t.Errorf("unexpected model: %q", sent.Model)
	}
	if len(sent.Messages) != 2 || sent.Messages[0].Role != "system" || sent.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", sent.Messages)
	}
	if sent.MaxTokens != 256 {
		t.Errorf("expected max_tokens=256, got %d", sent.MaxTokens)
	}
	// Zero temperature must still reach the wire (as the smallest non-zero float).
	if !strings.Contains(string(gotBody), "temperature") {
		t.Error("expected temperature field in request body")
	}
	if sent.Temperature >= 0.001 {
		t.Errorf("expected near-zero temperature, got %v", sent.Temperature)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(t, server.URL).Generate(context.Background(), domain.GenerationRequest{UserPrompt: "q"})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "backend exploded", "type": "server_error"}}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(t, server.URL).Generate(context.Background(), domain.GenerationRequest{UserPrompt: "q"})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerateStream_ForwardsDeltasInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		for _, content := range []string{"Mice ", "lose ", "bone [1]."} {
			_, _ = io.WriteString(w, streamChunk(content))
			flusher.Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	var got []string
	err := newTestGenerator(t, server.URL).GenerateStream(context.Background(), domain.GenerationRequest{UserPrompt: "q"}, func(delta string) error {
		got = append(got, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Mice ", "lose ", "bone [1]."}
	if len(got) != len(want) {
		t.Fatalf("expected %d deltas, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delta[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGenerateStream_MidStreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		_, _ = io.WriteString(w, streamChunk("first "))
		flusher.Flush()
		_, _ = io.WriteString(w, streamChunk("second "))
		flusher.Flush()

		// Drop the connection without a terminator.
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("writer does not support hijack")
			return
		}
		conn, _, _ := hj.Hijack()
		_ = conn.Close()
	}))
	defer server.Close()

	var got []string
	err := newTestGenerator(t, server.URL).GenerateStream(context.Background(), domain.GenerationRequest{UserPrompt: "q"}, func(delta string) error {
		got = append(got, delta)
		return nil
	})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected the 2 delivered deltas to stand, got %v", got)
	}
}

func TestGenerateStream_EmitErrorStopsPull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		for i := 0; i < 5; i++ {
			_, _ = io.WriteString(w, streamChunk(fmt.Sprintf("chunk-%d ", i)))
			flusher.Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	sentinel := errors.New("consumer gone")
	calls := 0
	err := newTestGenerator(t, server.URL).GenerateStream(context.Background(), domain.GenerationRequest{UserPrompt: "q"}, func(string) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the emit error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 emit call, got %d", calls)
	}
}

func TestNewGenerator_MissingSettings(t *testing.T) {
	if _, err := NewGenerator(&GeneratorConfig{Model: "m"}); !errors.Is(err, domain.ErrConfigurationMissing) {
		t.Errorf("expected ErrConfigurationMissing for missing key, got %v", err)
	}
	if _, err := NewGenerator(&GeneratorConfig{APIKey: "k"}); !errors.Is(err, domain.ErrConfigurationMissing) {
		t.Errorf("expected ErrConfigurationMissing for missing model, got %v", err)
	}
}
