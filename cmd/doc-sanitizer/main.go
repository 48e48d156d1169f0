// Command doc-sanitizer runs the document sanitization service: an HTTP
// upload API plus an MCP server exposing the sanitize and profile tools.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/chunk"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/config"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/extract"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/llm"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/metrics"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/profile"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/sanitize"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/server"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/store"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	// MCP stdio owns stdout, so logs go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m := metrics.New(nil)

	st := store.NewMemoryStore(store.Config{
		TTL:           cfg.Store.TTL,
		SweepInterval: cfg.Store.SweepInterval,
		OnSweep:       m.AddSwept,
	})
	defer st.Close()

	extractor := extract.NewService()

	var counter chunk.TokenCounter
	if cfg.Chunker.Encoding != "" {
		counter, err = chunk.NewTiktokenCounter(cfg.Chunker.Encoding)
		if err != nil {
			slog.Warn("token encoding unavailable, using estimate", "encoding", cfg.Chunker.Encoding, "error", err)
			counter = nil
		}
	}
	chunker := chunk.New(cfg.Chunker.MaxTokens, counter)

	profiles, err := profile.NewManager(cfg.Profiles.Path)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	backend, err := llm.NewOllama(llm.OllamaConfig{
		ServerURL:   cfg.LLM.ServerURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return err
	}

	engine := sanitize.New(st, extractor, chunker, profiles, backend,
		sanitize.WithMaxRetries(cfg.Sanitizer.MaxRetries),
		sanitize.WithFanOut(cfg.Sanitizer.FanOut),
		sanitize.WithTimeout(cfg.Sanitizer.Timeout),
		sanitize.WithDeleteAfterSanitize(cfg.Sanitizer.DeleteAfterSanitize),
		sanitize.WithMetrics(m),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := server.NewHTTP(st, extractor, cfg.Server.BaseURL, m)
	httpSrv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      api.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("http api listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	_, mcpSrv := server.NewMCP(engine, profiles, version)
	go func() {
		switch cfg.Server.Transport {
		case "sse":
			slog.Info("mcp server listening", "transport", "sse", "addr", cfg.Server.MCPAddr)
			if err := server.ServeSSE(mcpSrv, cfg.Server.MCPAddr, cfg.Server.BaseURL); err != nil {
				errCh <- fmt.Errorf("mcp sse server: %w", err)
			}
		default:
			slog.Info("mcp server listening", "transport", "stdio")
			if err := server.ServeStdio(mcpSrv); err != nil {
				errCh <- fmt.Errorf("mcp stdio server: %w", err)
			}
			// stdio EOF means the client is gone; shut down cleanly.
			stop()
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	return nil
}
