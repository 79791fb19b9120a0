package grounding

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// CharsPerToken is the rune/token ratio used when no tokenizer is available.
const CharsPerToken = 4

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// EstimateCounter approximates token counts from the rune length.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// TiktokenCounter counts tokens with a BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding, e.g. "cl100k_base". Loading may
// fetch the BPE ranks on first use.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// CounterFor returns a tiktoken counter for encoding, or the estimate when
// encoding is empty or cannot be loaded. The error reports the failed load.
func CounterFor(encoding string) (TokenCounter, error) {
	if encoding == "" {
		return EstimateCounter{}, nil
	}
	c, err := NewTiktokenCounter(encoding)
	if err != nil {
		return EstimateCounter{}, err
	}
	return c, nil
}
