package llm

import (
	"context"
	"sync"
)

// DummyGenerator is a scripted backend for tests. The response function
// receives the call count (starting at 1) and the prompt, and returns the
// completion or an error.
type DummyGenerator struct {
	respond func(call int, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

var _ Generator = &DummyGenerator{}

// NewDummyGenerator builds a scripted fake backend.
func NewDummyGenerator(respond func(call int, prompt string) (string, error)) *DummyGenerator {
	return &DummyGenerator{respond: respond}
}

func (g *DummyGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	call := len(g.prompts)
	g.mu.Unlock()

	return g.respond(call, prompt)
}

func (g *DummyGenerator) ModelName() string { return "dummy" }

// Calls reports how many times Generate was invoked.
func (g *DummyGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// Prompts returns a copy of every prompt seen, in call order.
func (g *DummyGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.prompts))
	copy(out, g.prompts)
	return out
}
