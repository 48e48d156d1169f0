package chunk

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures text in the model's accounting unit.
type TokenCounter interface {
	Count(text string) int
}

// CounterFunc adapts a function to the TokenCounter interface.
type CounterFunc func(text string) int

func (f CounterFunc) Count(text string) int { return f(text) }

// EstimateCounter approximates tokens as ceil(runes/4), the usual rule of
// thumb for English prose. It is deterministic and needs no tokenizer
// data, which keeps tests and offline runs hermetic.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// TiktokenCounter counts exact BPE tokens for the given encoding
// (e.g. "cl100k_base").
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
