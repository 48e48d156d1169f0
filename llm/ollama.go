package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	DefaultServerURL = "http://localhost:11434"
	DefaultModel     = "phi4:14b"
)

// OllamaConfig configures the Ollama-backed generator.
type OllamaConfig struct {
	ServerURL   string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// OllamaGenerator talks to a local Ollama server. Low temperature keeps
// rewrites close to the source document.
type OllamaGenerator struct {
	cfg OllamaConfig
	llm *ollama.LLM
}

var _ Generator = &OllamaGenerator{}

// NewOllama builds the generator, applying defaults for unset fields.
func NewOllama(cfg OllamaConfig) (*OllamaGenerator, error) {
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.TopP == 0 {
		cfg.TopP = 0.9
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8192
	}

	client, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.ServerURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}

	slog.Info("ollama backend configured", "url", cfg.ServerURL, "model", cfg.Model)
	return &OllamaGenerator{cfg: cfg, llm: client}, nil
}

func (g *OllamaGenerator) Generate(ctx context.Context, promptText string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, promptText,
		llms.WithTemperature(g.cfg.Temperature),
		llms.WithTopP(g.cfg.TopP),
		llms.WithMaxTokens(g.cfg.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out, nil
}

func (g *OllamaGenerator) ModelName() string { return g.cfg.Model }
