// Package tokenizer counts model tokens with tiktoken, falling back to a
// character-based estimate when no encoding is loaded.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used by New.
const DefaultEncoding = "cl100k_base"

// charsPerToken is the rough ratio used when no encoding is available.
const charsPerToken = 4

// Tokenizer counts tokens for one tiktoken encoding.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// New returns a tokenizer for DefaultEncoding.
func New() (*Tokenizer, error) {
	return NewWithEncoding(DefaultEncoding)
}

// NewWithEncoding returns a tokenizer for the named encoding. tiktoken may
// need to download the encoding ranks on first use, so this can fail offline.
func NewWithEncoding(name string) (*Tokenizer, error) {
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", name, err)
	}
	return &Tokenizer{encoding: enc, name: name}, nil
}

// Encoding returns the encoding name, or "" for a nil tokenizer.
func (t *Tokenizer) Encoding() string {
	if t == nil {
		return ""
	}
	return t.name
}

// CountTokens returns the number of tokens in text. A nil Tokenizer uses
// EstimateTokens.
func (t *Tokenizer) CountTokens(text string) int {
	if t == nil || t.encoding == nil {
		return EstimateTokens(text)
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// EstimateTokens approximates the token count as one token per four bytes.
func EstimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}
