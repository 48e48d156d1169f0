// Package sanitize orchestrates a sanitization run: resolve the profile,
// fetch the payload, extract text, chunk it, push every chunk through the
// model backend concurrently, and reassemble the results in ordinal order.
//
// The engine is strict about failure: if any chunk cannot be sanitized
// within its retry budget the whole run fails, never substituting original
// text for a failed chunk.
package sanitize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/chunk"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/extract"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/llm"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/metrics"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/profile"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/prompt"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/store"
)

const (
	// DefaultMaxRetries is the number of re-prompts allowed per chunk when
	// the model returns empty or refusal output.
	DefaultMaxRetries = 2
	// DefaultFanOut bounds how many chunks are in flight at once.
	DefaultFanOut = 4
	// DefaultTimeout is the end-to-end budget for one run.
	DefaultTimeout = 5 * time.Minute
	// DefaultProfile is used when the caller names no profile.
	DefaultProfile = profile.DefaultProfileName
)

// Resolver supplies the rule set for a named profile. Implemented by
// profile.Manager; tests substitute a fixed resolver.
type Resolver interface {
	Resolve(name string) (profile.Rules, error)
}

// Result is a completed sanitization run.
type Result struct {
	// Text is the ordinal-ordered concatenation of sanitized chunks,
	// without frontmatter. Callers prepend prompt.Frontmatter.
	Text        string
	SourceType  string
	Model       string
	ProfileName string
	Chunks      int
	// Warnings carries non-fatal extraction notes (e.g. unreadable
	// sheets).
	Warnings []string
	// Tally counts replacement markers per category in the output. Only
	// delete and keep_part rules leave countable markers; invented values
	// are indistinguishable from real text and count as zero.
	Tally map[profile.Category]int
}

// Engine runs the sanitization pipeline.
type Engine struct {
	store    store.Store
	extract  *extract.Service
	chunker  *chunk.Chunker
	profiles Resolver
	backend  llm.Generator

	log         *slog.Logger
	metrics     *metrics.Metrics
	maxRetries  int
	fanOut      int
	timeout     time.Duration
	deleteAfter bool
	newBackoff  func() backoff.BackOff
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRetries sets the per-chunk re-prompt budget for invalid output.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithFanOut sets the concurrent chunk limit.
func WithFanOut(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.fanOut = n
		}
	}
}

// WithTimeout sets the end-to-end deadline for one run.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithDeleteAfterSanitize removes the stored object once a run succeeds,
// instead of waiting for the TTL sweep.
func WithDeleteAfterSanitize(enabled bool) Option {
	return func(e *Engine) { e.deleteAfter = enabled }
}

// WithBackoff overrides the delay strategy used when the backend is
// temporarily unreachable. Each backend call gets a fresh strategy.
func WithBackoff(factory func() backoff.BackOff) Option {
	return func(e *Engine) {
		if factory != nil {
			e.newBackoff = factory
		}
	}
}

// WithMetrics wires Prometheus collectors into the engine.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New wires an engine. All dependencies are required.
func New(st store.Store, ex *extract.Service, ch *chunk.Chunker, profiles Resolver, backend llm.Generator, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		extract:    ex,
		chunker:    ch,
		profiles:   profiles,
		backend:    backend,
		log:        slog.Default(),
		maxRetries: DefaultMaxRetries,
		fanOut:     DefaultFanOut,
		timeout:    DefaultTimeout,
		newBackoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// Sanitize runs the full pipeline for a stored document under the named
// profile (empty name means the default profile).
func (e *Engine) Sanitize(ctx context.Context, fileID, profileName string) (*Result, error) {
	start := time.Now()
	res, err := e.run(ctx, fileID, profileName)
	e.metrics.ObserveSanitize(outcome(err), time.Since(start).Seconds())
	if err != nil {
		e.log.Error("sanitization failed", "file_id", fileID, "profile", profileName, "error", err)
		return nil, err
	}
	e.log.Info("sanitization complete",
		"file_id", fileID,
		"profile", res.ProfileName,
		"chunks", res.Chunks,
		"duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (e *Engine) run(ctx context.Context, fileID, profileName string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if profileName == "" {
		profileName = DefaultProfile
	}

	// Profile resolution comes first: a bad profile name must fail before
	// any payload is read.
	rules, err := e.profiles.Resolve(profileName)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, profileName)
		}
		return nil, err
	}

	obj, err := e.store.Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentUnavailable, fileID, err)
	}

	doc, err := e.extract.Extract(obj.Data, obj.MediaKind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	chunks := e.chunker.Split(doc)
	e.metrics.AddChunks(len(chunks))
	e.log.Info("document prepared",
		"file_id", fileID, "source_type", doc.SourceType, "chunks", len(chunks))

	results := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)
	for _, ch := range chunks {
		g.Go(func() error {
			out, err := e.sanitizeChunk(gctx, ch, rules)
			if err != nil {
				return err
			}
			// Ordinal indexing makes reassembly independent of
			// completion order.
			results[ch.Ordinal] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
		}
		return nil, err
	}

	text := strings.Join(results, "\n\n")
	res := &Result{
		Text:        text,
		SourceType:  doc.SourceType,
		Model:       e.backend.ModelName(),
		ProfileName: profileName,
		Chunks:      len(chunks),
		Warnings:    doc.Warnings,
		Tally:       tally(text),
	}

	if e.deleteAfter {
		if derr := e.store.Delete(context.WithoutCancel(ctx), fileID); derr != nil && !errors.Is(derr, store.ErrNotFound) {
			e.log.Warn("post-run delete failed", "file_id", fileID, "error", derr)
		}
	}
	return res, nil
}

// sanitizeChunk prompts the backend for one chunk, re-prompting up to the
// retry budget when the output is empty or a refusal.
func (e *Engine) sanitizeChunk(ctx context.Context, ch chunk.Chunk, rules profile.Rules) (string, error) {
	promptText := prompt.Build(ch.Text, rules)
	attempts := e.maxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := e.generate(ctx, promptText)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("%w: chunk %d: %v", ErrBackendUnavailable, ch.Ordinal, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		out = strings.TrimSpace(stripThinkTags(out))
		if validOutput(out) {
			return out, nil
		}

		e.log.Warn("model output rejected",
			"chunk", ch.Ordinal, "attempt", attempt, "of", attempts)
		if attempt < attempts {
			e.metrics.IncChunkRetry()
		}
	}
	return "", &ChunkError{Ordinal: ch.Ordinal, Attempts: attempts}
}

// generate calls the backend, retrying temporary failures with backoff.
// Permanent failures and context cancellation abort immediately.
func (e *Engine) generate(ctx context.Context, promptText string) (string, error) {
	bo := backoff.WithContext(e.newBackoff(), ctx)
	var out string
	err := backoff.Retry(func() error {
		var gerr error
		out, gerr = e.backend.Generate(ctx, promptText)
		if gerr == nil {
			return nil
		}
		if llm.IsTemporary(gerr) {
			return gerr
		}
		return backoff.Permanent(gerr)
	}, bo)
	if err != nil {
		return "", err
	}
	return out, nil
}

var thinkTagRE = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripThinkTags drops reasoning blocks some models emit before the
// actual answer.
func stripThinkTags(s string) string {
	return thinkTagRE.ReplaceAllString(s, "")
}

// refusalPrefixes are openings that mean the model declined instead of
// sanitizing. Matched case-insensitively at the start of the output.
var refusalPrefixes = []string{
	"i cannot",
	"i can't",
	"i'm sorry",
	"i am sorry",
	"as an ai",
}

func validOutput(s string) bool {
	if s == "" {
		return false
	}
	low := strings.ToLower(s)
	for _, p := range refusalPrefixes {
		if strings.HasPrefix(low, p) {
			return false
		}
	}
	return true
}

// tallyMarkers maps each category to the replacement markers its delete
// and keep_part rules instruct the model to emit.
var tallyMarkers = map[profile.Category][]string{
	profile.PersonName:  {"[NAME_REMOVED]"},
	profile.Email:       {"[EMAIL_REMOVED]", "[EMAIL_REDACTED]"},
	profile.Phone:       {"[PHONE_REMOVED]", "[REDACTED]"},
	profile.Address:     {"[ADDRESS_REMOVED]"},
	profile.Financial:   {"[FINANCIAL_REMOVED]"},
	profile.IDNumbers:   {"[ID_REMOVED]"},
	profile.DateOfBirth: {"[DOB_REMOVED]"},
}

func tally(text string) map[profile.Category]int {
	out := make(map[profile.Category]int, len(tallyMarkers))
	for c, markers := range tallyMarkers {
		n := 0
		for _, m := range markers {
			n += strings.Count(text, m)
		}
		if n > 0 {
			out[c] = n
		}
	}
	return out
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProfileNotFound):
		return "profile_not_found"
	case errors.Is(err, ErrDocumentUnavailable):
		return "document_unavailable"
	case errors.Is(err, ErrExtractionFailed):
		return "extraction_failed"
	case errors.Is(err, ErrPartialSanitization):
		return "partial_failure"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
