// Package llm is the model backend boundary: a single "prompt in, text
// out" operation. The backend is constructed once at startup and injected
// into the sanitization engine so tests can substitute a fake.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrTemporary marks backend failures worth retrying with backoff:
// connectivity loss, timeouts, and overload responses. Everything else is
// permanent from the caller's point of view.
var ErrTemporary = errors.New("temporary backend error")

// Generator produces completion text for a prompt. Calls may take seconds;
// implementations must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// ModelName identifies the underlying model, for output frontmatter
	// and logs.
	ModelName() string
}

// IsTemporary reports whether err is a retryable backend failure, either
// marked explicitly or recognizable from transport error text.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTemporary) {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporarily unavailable",
		"status: 429",
		"status: 502",
		"status: 503",
		"status: 504",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
