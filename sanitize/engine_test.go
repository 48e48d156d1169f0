package sanitize

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/chunk"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/extract"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/llm"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/profile"
	"github.com/yannickgiguere-dfs/doc-sanitizer-mcp/store"
)

type resolverFunc func(name string) (profile.Rules, error)

func (f resolverFunc) Resolve(name string) (profile.Rules, error) { return f(name) }

func defaultResolver() resolverFunc {
	return func(name string) (profile.Rules, error) {
		if name != "default" {
			return nil, fmt.Errorf("%w: %s", profile.ErrNotFound, name)
		}
		return profile.DefaultRules(), nil
	}
}

// countingStore counts Get calls so tests can assert the store was never
// touched.
type countingStore struct {
	store.Store
	gets atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, id string) (*store.Object, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, id)
}

func newTestStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore(store.Config{TTL: time.Minute, SweepInterval: time.Hour})
	t.Cleanup(st.Close)
	return st
}

// zeroBackoff retries temporary backend failures twice with no delay.
func zeroBackoff() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
}

func newTestEngine(st store.Store, gen llm.Generator, opts ...Option) *Engine {
	base := []Option{WithBackoff(zeroBackoff)}
	return New(st, extract.NewService(), chunk.New(0, nil), defaultResolver(), gen,
		append(base, opts...)...)
}

// chunkLine pulls the document text back out of a built prompt.
func chunkLine(p string) string {
	_, rest, _ := strings.Cut(p, "## DOCUMENT TO SANITIZE\n\n")
	text, _, _ := strings.Cut(rest, "\n\n## OUTPUT")
	return text
}

func TestSanitizeSingleChunk(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("John Smith called from +1 555 0100"), ".txt")
	require.NoError(t, err)

	gen := llm.NewDummyGenerator(func(call int, p string) (string, error) {
		return "John 1 called from [PHONE_REMOVED]", nil
	})
	eng := newTestEngine(st, gen)

	res, err := eng.Sanitize(context.Background(), id, "")
	require.NoError(t, err)
	assert.Equal(t, "John 1 called from [PHONE_REMOVED]", res.Text)
	assert.Equal(t, "text", res.SourceType)
	assert.Equal(t, "dummy", res.Model)
	assert.Equal(t, "default", res.ProfileName)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, 1, res.Tally[profile.Phone])
	assert.Zero(t, res.Tally[profile.Email])
	assert.Equal(t, 1, gen.Calls())

	// Without the delete option the object outlives the run.
	_, err = st.Get(context.Background(), id)
	assert.NoError(t, err)
}

func TestSanitizeReassemblesOutOfOrder(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("alpha\nbravo\ncharlie"), ".txt")
	require.NoError(t, err)

	// One token per rune plus a tight budget forces one chunk per line.
	counter := chunk.CounterFunc(func(s string) int { return len([]rune(s)) })

	gen := llm.NewDummyGenerator(func(call int, p string) (string, error) {
		line := chunkLine(p)
		// Hold the first chunk back so later ordinals finish first.
		if strings.Contains(line, "alpha") {
			time.Sleep(50 * time.Millisecond)
		}
		return "OUT " + line, nil
	})
	eng := New(st, extract.NewService(), chunk.New(8, counter), defaultResolver(), gen,
		WithBackoff(zeroBackoff), WithFanOut(3))

	res, err := eng.Sanitize(context.Background(), id, "default")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, "OUT alpha\n\nOUT bravo\n\nOUT charlie", res.Text)
}

func TestSanitizeRetriesInvalidOutputThenSucceeds(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("some text"), ".txt")
	require.NoError(t, err)

	gen := llm.NewDummyGenerator(func(call int, p string) (string, error) {
		if call == 1 {
			return "I cannot assist with that request.", nil
		}
		return "clean text", nil
	})
	eng := newTestEngine(st, gen)

	res, err := eng.Sanitize(context.Background(), id, "default")
	require.NoError(t, err)
	assert.Equal(t, "clean text", res.Text)
	assert.Equal(t, 2, gen.Calls())
}

func TestSanitizeFailsNamingExhaustedChunk(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("alpha\nbravo\ncharlie"), ".txt")
	require.NoError(t, err)

	counter := chunk.CounterFunc(func(s string) int { return len([]rune(s)) })
	gen := llm.NewDummyGenerator(func(call int, p string) (string, error) {
		if strings.Contains(chunkLine(p), "bravo") {
			return "   ", nil // always empty for ordinal 1
		}
		return "OUT " + chunkLine(p), nil
	})
	eng := New(st, extract.NewService(), chunk.New(8, counter), defaultResolver(), gen,
		WithBackoff(zeroBackoff), WithFanOut(1), WithMaxRetries(2))

	_, err = eng.Sanitize(context.Background(), id, "default")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialSanitization)

	var chunkErr *ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, 1, chunkErr.Ordinal)
	assert.Equal(t, 3, chunkErr.Attempts)

	bravoPrompts := 0
	for _, p := range gen.Prompts() {
		if strings.Contains(chunkLine(p), "bravo") {
			bravoPrompts++
		}
	}
	assert.Equal(t, 3, bravoPrompts)
}

func TestSanitizeProfileNotFoundSkipsStore(t *testing.T) {
	cs := &countingStore{Store: newTestStore(t)}
	gen := llm.NewDummyGenerator(func(int, string) (string, error) { return "x", nil })
	eng := newTestEngine(cs, gen)

	_, err := eng.Sanitize(context.Background(), "any-id", "no-such-profile")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.Contains(t, err.Error(), "no-such-profile")
	assert.Zero(t, cs.gets.Load(), "store must not be read when the profile is unknown")
	assert.Zero(t, gen.Calls())
}

func TestSanitizeUnknownFile(t *testing.T) {
	st := newTestStore(t)
	gen := llm.NewDummyGenerator(func(int, string) (string, error) { return "x", nil })
	eng := newTestEngine(st, gen)

	_, err := eng.Sanitize(context.Background(), "b5ad17a0-0000-4000-8000-000000000000", "default")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDocumentUnavailable)
	assert.Zero(t, gen.Calls())
}

func TestSanitizeExtractionFailure(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("not a real pdf"), ".pdf")
	require.NoError(t, err)

	gen := llm.NewDummyGenerator(func(int, string) (string, error) { return "x", nil })
	eng := newTestEngine(st, gen)

	_, err = eng.Sanitize(context.Background(), id, "default")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Zero(t, gen.Calls())
}

func TestSanitizeBackendUnavailable(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("hello"), ".txt")
	require.NoError(t, err)

	gen := llm.NewDummyGenerator(func(int, string) (string, error) {
		return "", fmt.Errorf("%w: connection refused", llm.ErrTemporary)
	})
	eng := newTestEngine(st, gen)

	_, err = eng.Sanitize(context.Background(), id, "default")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	// Initial call plus the two zero-delay retries.
	assert.Equal(t, 3, gen.Calls())
}

func TestSanitizePermanentBackendErrorSkipsRetry(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("hello"), ".txt")
	require.NoError(t, err)

	gen := llm.NewDummyGenerator(func(int, string) (string, error) {
		return "", fmt.Errorf("model %q not found", "phi4:14b")
	})
	eng := newTestEngine(st, gen)

	_, err = eng.Sanitize(context.Background(), id, "default")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, 1, gen.Calls())
}

func TestSanitizeTimeout(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("hello"), ".txt")
	require.NoError(t, err)

	gen := llm.NewDummyGenerator(func(int, string) (string, error) {
		time.Sleep(100 * time.Millisecond)
		return "fine", nil
	})
	eng := newTestEngine(st, gen, WithTimeout(20*time.Millisecond))

	_, err = eng.Sanitize(context.Background(), id, "default")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSanitizeDeleteAfter(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("hello"), ".txt")
	require.NoError(t, err)

	gen := llm.NewDummyGenerator(func(int, string) (string, error) { return "clean", nil })
	eng := newTestEngine(st, gen, WithDeleteAfterSanitize(true))

	_, err = eng.Sanitize(context.Background(), id, "default")
	require.NoError(t, err)

	_, err = st.Get(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSanitizeEmptyDocument(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("  \n\t\n"), ".txt")
	require.NoError(t, err)

	gen := llm.NewDummyGenerator(func(int, string) (string, error) { return "x", nil })
	eng := newTestEngine(st, gen)

	res, err := eng.Sanitize(context.Background(), id, "default")
	require.NoError(t, err)
	assert.Zero(t, res.Chunks)
	assert.Empty(t, res.Text)
	assert.Zero(t, gen.Calls(), "no chunks means no backend calls")
}

func TestSanitizePromptCarriesProfileRules(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("Call +1 555 0100"), ".txt")
	require.NoError(t, err)

	gen := llm.NewDummyGenerator(func(int, string) (string, error) { return "clean", nil })
	eng := newTestEngine(st, gen)

	_, err = eng.Sanitize(context.Background(), id, "default")
	require.NoError(t, err)

	require.Equal(t, 1, gen.Calls())
	p := gen.Prompts()[0]
	assert.Contains(t, p, "### Phone Numbers (DELETE)")
	assert.Equal(t, "Call +1 555 0100", chunkLine(p))
}

func TestSanitizeStripsThinkTags(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("hello"), ".txt")
	require.NoError(t, err)

	gen := llm.NewDummyGenerator(func(int, string) (string, error) {
		return "<think>reasoning here</think>\nclean text", nil
	})
	eng := newTestEngine(st, gen)

	res, err := eng.Sanitize(context.Background(), id, "default")
	require.NoError(t, err)
	assert.Equal(t, "clean text", res.Text)
}

func TestSanitizeRemovesNamedEntities(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("Contact Jane Doe at jane@example.com"), ".txt")
	require.NoError(t, err)

	strict := func(name string) (profile.Rules, error) {
		rules := profile.DefaultRules()
		rules[profile.PersonName] = profile.ActionDelete
		rules[profile.Email] = profile.ActionDelete
		return rules, nil
	}
	gen := llm.NewDummyGenerator(func(call int, p string) (string, error) {
		out := chunkLine(p)
		out = strings.ReplaceAll(out, "Jane Doe", "[NAME_REMOVED]")
		out = strings.ReplaceAll(out, "jane@example.com", "[EMAIL_REMOVED]")
		return out, nil
	})
	eng := New(st, extract.NewService(), chunk.New(0, nil), resolverFunc(strict), gen,
		WithBackoff(zeroBackoff))

	res, err := eng.Sanitize(context.Background(), id, "default")
	require.NoError(t, err)
	assert.NotContains(t, res.Text, "Jane Doe")
	assert.NotContains(t, res.Text, "jane@example.com")
	assert.Equal(t, "Contact [NAME_REMOVED] at [EMAIL_REMOVED]", res.Text)

	p := gen.Prompts()[0]
	assert.Contains(t, p, "### Person Names (DELETE)")
	assert.Contains(t, p, "### Email Addresses (DELETE)")
}

func TestSanitizeExpiredDocument(t *testing.T) {
	st := store.NewMemoryStore(store.Config{TTL: 20 * time.Millisecond, SweepInterval: time.Hour})
	t.Cleanup(st.Close)
	id, err := st.Put(context.Background(), []byte("short lived"), ".txt")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	gen := llm.NewDummyGenerator(func(int, string) (string, error) { return "x", nil })
	eng := newTestEngine(st, gen)

	_, err = eng.Sanitize(context.Background(), id, "default")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDocumentUnavailable)
}

func TestSanitizeTallyIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	id, err := st.Put(context.Background(), []byte("Jane and John, jane@x.com"), ".txt")
	require.NoError(t, err)

	gen := llm.NewDummyGenerator(func(int, string) (string, error) {
		return "[NAME_REMOVED] and [NAME_REMOVED], [EMAIL_REMOVED]", nil
	})
	eng := newTestEngine(st, gen)

	first, err := eng.Sanitize(context.Background(), id, "default")
	require.NoError(t, err)
	second, err := eng.Sanitize(context.Background(), id, "default")
	require.NoError(t, err)
	assert.Equal(t, first.Tally, second.Tally)
	assert.Equal(t, 2, first.Tally[profile.PersonName])
	assert.Equal(t, 1, first.Tally[profile.Email])
}

func TestTallyCountsMarkers(t *testing.T) {
	got := tally("[NAME_REMOVED] met [NAME_REMOVED], mail [EMAIL_REDACTED]@x.com, tel +1 (555) [REDACTED]")
	assert.Equal(t, 2, got[profile.PersonName])
	assert.Equal(t, 1, got[profile.Email])
	assert.Equal(t, 1, got[profile.Phone])
	_, ok := got[profile.Address]
	assert.False(t, ok)
}
