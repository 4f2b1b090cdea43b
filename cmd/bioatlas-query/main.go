// One-shot query CLI: ask a question against the indexed corpus and print
// the answer with its citation legend, without going through the HTTP API.
//
// Usage:
//
//	bioatlas-query -k 4 "What are the effects of microgravity on bone density?"
//	bioatlas-query -no-llm -print-context "mice in space"
//	bioatlas-query -stream -persona manager "radiation countermeasures"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/spacehacks/bioatlas/internal/config"
	"github.com/spacehacks/bioatlas/internal/domain"
	logpkg "github.com/spacehacks/bioatlas/internal/logger"
	"github.com/spacehacks/bioatlas/internal/transport/elastic"
	openaiTransport "github.com/spacehacks/bioatlas/internal/transport/openai"
	answeruc "github.com/spacehacks/bioatlas/internal/usecase/answer"
)

func main() {
	opts := parseFlags()

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT,
	)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type cliOptions struct {
	question      string
	k             int
	numCandidates int
	persona       string
	printContext  bool
	noLLM         bool
	stream        bool
	env           string
}

func parseFlags() cliOptions {
	opts := cliOptions{}
	flag.StringVar(&opts.question, "question", "", "question to ask (or pass it as the positional argument)")
	flag.IntVar(&opts.k, "k", 0, "distinct publications to cite (default from config)")
	flag.IntVar(&opts.numCandidates, "num-candidates", 0, "k-NN candidate pool size (default from config)")
	flag.StringVar(&opts.persona, "persona", "", "audience profile: scientist, manager, mission_architect")
	flag.BoolVar(&opts.printContext, "print-context", false, "print the assembled context block")
	flag.BoolVar(&opts.noLLM, "no-llm", false, "retrieve and print sources only, skip generation")
	flag.BoolVar(&opts.stream, "stream", false, "stream the answer to stdout as it is generated")
	flag.StringVar(&opts.env, "env", "", "config environment (default: ENV variable or local)")
	flag.Parse()

	if opts.question == "" && flag.NArg() > 0 {
		opts.question = flag.Arg(0)
	}
	return opts
}

func run(ctx context.Context, opts cliOptions) error {
	if opts.question == "" {
		flag.Usage()
		return fmt.Errorf("question is required")
	}

	_ = godotenv.Load()
	env := opts.env
	if env == "" {
		env = config.GetEnv()
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.k > 0 {
		cfg.Retrieval.TopK = opts.k
	}
	if opts.numCandidates > 0 {
		cfg.Retrieval.NumCandidates = opts.numCandidates
	}
	if cfg.Retrieval.NumCandidates < cfg.Retrieval.TopK {
		cfg.Retrieval.NumCandidates = cfg.Retrieval.TopK
	}

	// Warnings and errors only: stdout belongs to the answer.
	logger, err := logpkg.NewLogger(env, "warn")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	svc, err := buildService(cfg, logger, !opts.noLLM)
	if err != nil {
		return err
	}

	citations, contextBlock, err := svc.Evidence(ctx, opts.question)
	if err != nil {
		return err
	}

	printLegend(citations)
	if opts.printContext {
		fmt.Println("Context:")
		fmt.Println(contextBlock)
		fmt.Println()
	}
	if opts.noLLM {
		return nil
	}

	if opts.stream {
		return streamAnswer(ctx, svc, opts)
	}

	answer, err := svc.Ask(ctx, opts.question, opts.persona)
	if err != nil {
		return err
	}
	fmt.Println(answer.Text)
	return nil
}

func streamAnswer(ctx context.Context, svc *answeruc.Service, opts cliOptions) error {
	var streamErr error
	err := svc.AskStream(ctx, opts.question, opts.persona, func(ev domain.StreamEvent) error {
		switch ev.Type {
		case domain.EventChunk:
			fmt.Print(ev.Content)
		case domain.EventError:
			streamErr = fmt.Errorf("%s", ev.Err)
		}
		return nil
	})
	fmt.Println()
	if err != nil {
		return err
	}
	return streamErr
}

func buildService(cfg config.Config, logger *zap.Logger, withLLM bool) (*answeruc.Service, error) {
	store, err := elastic.NewClient(&elastic.Config{
		URL:                cfg.Elastic.URL,
		APIKey:             cfg.Elastic.APIKey,
		Username:           cfg.Elastic.Username,
		Password:           cfg.Elastic.Password,
		Index:              cfg.Elastic.Index,
		ModelID:            cfg.Elastic.ModelID,
		Timeout:            time.Duration(cfg.Elastic.TimeoutSec) * time.Second,
		InsecureSkipVerify: cfg.Elastic.InsecureSkipVerify,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create document store client: %w", err)
	}

	var embedder domain.Embedder = store
	if cfg.Embedding.Provider == "openai" {
		emb, err := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
			APIKey:     cfg.Embedding.OpenAI.APIKey,
			BaseURL:    cfg.Embedding.OpenAI.BaseURL,
			Model:      cfg.Embedding.OpenAI.Model,
			Dimensions: cfg.Embedding.OpenAI.Dimensions,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		embedder = emb
	}
	if cfg.Embedding.QueryInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, cfg.Embedding.QueryInstruction)
	}

	var generator answeruc.Generator
	if withLLM {
		gen, err := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create generator: %w", err)
		}
		generator = gen
	}

	return answeruc.New(embedder, store, generator, logger).
		WithOptions(answeruc.Options{
			TopK:             cfg.Retrieval.TopK,
			NumCandidates:    cfg.Retrieval.NumCandidates,
			ContextBudget:    cfg.Retrieval.ContextBudget,
			PassageCharLimit: cfg.Retrieval.PassageCharLimit,
			SnippetCharLimit: cfg.Retrieval.SnippetCharLimit,
		}).
		WithPersonas(personas(cfg), cfg.Personas.Default), nil
}

func personas(cfg config.Config) map[string]domain.Persona {
	out := domain.DefaultPersonas()
	for name, p := range cfg.Personas.Profiles {
		persona := domain.Persona{
			Name:         name,
			SystemPrompt: p.SystemPrompt,
			Temperature:  p.Temperature,
			MaxTokens:    p.MaxTokens,
		}
		if persona.SystemPrompt == "" {
			if builtin, ok := out[name]; ok {
				persona.SystemPrompt = builtin.SystemPrompt
			}
		}
		out[name] = persona
	}
	return out
}

func printLegend(citations []domain.Citation) {
	if len(citations) == 0 {
		fmt.Println("No sources found.")
		fmt.Println()
		return
	}
	fmt.Println("Sources:")
	for _, c := range citations {
		line := fmt.Sprintf("  [%d] %s", c.Index, c.Title)
		if c.URL != "" {
			line += " (" + c.URL + ")"
		}
		fmt.Println(line)
	}
	fmt.Println()
}
