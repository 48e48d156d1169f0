// Package config loads service configuration from a YAML file with
// environment variable overrides. Everything has a working default so the
// service starts with no config file at all.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/chunk"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/llm"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/sanitize"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/store"
)

// Config is the full service configuration.
type Config struct {
	LLM       LLM       `yaml:"llm"`
	Store     Store     `yaml:"store"`
	Chunker   Chunker   `yaml:"chunker"`
	Sanitizer Sanitizer `yaml:"sanitizer"`
	Profiles  Profiles  `yaml:"profiles"`
	Server    Server    `yaml:"server"`
}

// LLM configures the Ollama backend.
type LLM struct {
	ServerURL   string  `yaml:"server_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Store configures the ephemeral object store.
type Store struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Chunker configures document splitting. An empty encoding selects the
// deterministic rune estimate; a tiktoken encoding name (e.g.
// "cl100k_base") selects exact counting.
type Chunker struct {
	MaxTokens int    `yaml:"max_tokens"`
	Encoding  string `yaml:"encoding"`
}

// Sanitizer configures the engine.
type Sanitizer struct {
	MaxRetries          int           `yaml:"max_retries"`
	FanOut              int           `yaml:"fan_out"`
	Timeout             time.Duration `yaml:"timeout"`
	DeleteAfterSanitize bool          `yaml:"delete_after_sanitize"`
}

// Profiles configures profile persistence.
type Profiles struct {
	Path string `yaml:"path"`
}

// Server configures the HTTP upload API and the MCP transport.
type Server struct {
	HTTPAddr string `yaml:"http_addr"`
	// Transport selects how MCP is served: "stdio" or "sse".
	Transport string `yaml:"transport"`
	// MCPAddr is the listen address when Transport is "sse".
	MCPAddr string `yaml:"mcp_addr"`
	// BaseURL is the externally visible URL of the HTTP API, echoed in
	// upload responses.
	BaseURL string `yaml:"base_url"`
}

// Default returns the configuration used when nothing is specified.
func Default() *Config {
	return &Config{
		LLM: LLM{
			ServerURL:   llm.DefaultServerURL,
			Model:       llm.DefaultModel,
			Temperature: 0.1,
			TopP:        0.9,
			MaxTokens:   8192,
		},
		Store: Store{
			TTL:           store.DefaultTTL,
			SweepInterval: store.DefaultSweepInterval,
		},
		Chunker: Chunker{
			MaxTokens: chunk.DefaultMaxTokens,
		},
		Sanitizer: Sanitizer{
			MaxRetries: sanitize.DefaultMaxRetries,
			FanOut:     sanitize.DefaultFanOut,
			Timeout:    sanitize.DefaultTimeout,
		},
		Profiles: Profiles{
			Path: "profiles.json",
		},
		Server: Server{
			HTTPAddr:  ":8000",
			Transport: "stdio",
			MCPAddr:   ":8001",
			BaseURL:   "http://localhost:8000",
		},
	}
}

// searchPaths are tried in order when no explicit path is given.
var searchPaths = []string{
	"doc-sanitizer.yaml",
	"config.yaml",
}

// Load reads configuration from path, or from the first search path that
// exists when path is empty, then applies environment overrides. A missing
// file is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	candidates := searchPaths
	if path != "" {
		candidates = []string{path}
	}
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			if path != "" {
				return nil, fmt.Errorf("config file %s: %w", p, err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", p, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", filepath.Base(p), err)
		}
		break
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv folds in the environment overrides used by container
// deployments.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.LLM.ServerURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("FILE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FILE_TTL: %w", err)
		}
		cfg.Store.TTL = d
	}
	if v := os.Getenv("PROFILE_STORAGE"); v != "" {
		cfg.Profiles.Path = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("MCP_ADDR"); v != "" {
		cfg.Server.MCPAddr = v
	}
	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		cfg.Server.Transport = v
	}
	if v := os.Getenv("HTTP_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	return nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Store.TTL <= 0 {
		return fmt.Errorf("store.ttl must be positive")
	}
	if c.Sanitizer.FanOut <= 0 {
		return fmt.Errorf("sanitizer.fan_out must be positive")
	}
	if c.Sanitizer.Timeout <= 0 {
		return fmt.Errorf("sanitizer.timeout must be positive")
	}
	switch c.Server.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", "stdio", "sse", c.Server.Transport)
	}
	return nil
}
