package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spacehacks/bioatlas/internal/domain"
	"github.com/spacehacks/bioatlas/internal/metrics"
)

// Generator produces answers via an OpenAI-compatible chat completion API,
// in one shot or as a pull-based delta stream.
type Generator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// GeneratorConfig holds the generative backend settings.
type GeneratorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewGenerator creates a chat completion client.
func NewGenerator(cfg *GeneratorConfig) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required: %w", domain.ErrConfigurationMissing)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required: %w", domain.ErrConfigurationMissing)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Model returns the configured completion model name.
func (g *Generator) Model() string { return g.model }

func (g *Generator) chatRequest(req domain.GenerationRequest) openai.ChatCompletionRequest {
	temperature := req.Temperature
	if temperature == 0 {
		// The client omits a zero temperature from the request body; the
		// smallest non-zero float keeps deterministic sampling on the wire.
		temperature = math.SmallestNonzeroFloat32
	}

	return openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	}
}

// Generate requests one complete answer.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, g.chatRequest(req))

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "batch", "error").Inc()
		return "", parseAPIError("completion", err, domain.ErrGenerationFailed)
	}
	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "batch", "error").Inc()
		return "", fmt.Errorf("completion returned no choices: %w", domain.ErrGenerationFailed)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "batch", "success").Inc()
	metrics.GenerationDuration.WithLabelValues(g.model, "batch").Observe(duration.Seconds())

	return resp.Choices[0].Message.Content, nil
}

// GenerateStream requests a streamed answer and forwards each non-empty text
// delta to emit in upstream order, pulling the next delta only after emit
// returns. An error from emit (a gone consumer, a write failure) stops the
// pull and closes the upstream stream; it is returned unwrapped so callers
// can tell their own write errors from upstream failures.
func (g *Generator) GenerateStream(ctx context.Context, req domain.GenerationRequest, emit func(delta string) error) error {
	start := time.Now()

	stream, err := g.client.CreateChatCompletionStream(ctx, g.chatRequest(req))
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.model, "stream", "error").Inc()
		return parseAPIError("completion stream", err, domain.ErrGenerationFailed)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.GenerationRequestsTotal.WithLabelValues(g.model, "stream", "error").Inc()
			return parseAPIError("completion stream", err, domain.ErrGenerationFailed)
		}

		// Usage-only and keep-alive frames carry no choices.
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		if err := emit(delta); err != nil {
			metrics.GenerationRequestsTotal.WithLabelValues(g.model, "stream", "canceled").Inc()
			return err
		}
		metrics.StreamChunksTotal.Inc()
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.model, "stream", "success").Inc()
	metrics.GenerationDuration.WithLabelValues(g.model, "stream").Observe(time.Since(start).Seconds())

	return nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
