// Package tiktoken provides an exact token counter for OpenAI models,
// used to pack evidence into the synthesis token budget.
package tiktoken

import (
	"github.com/pkoukk/tiktoken-go"
)

// Counter implements agent.TokenCounter over a tiktoken encoding.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// New creates a counter for the given model or encoding name.
func New(name string) (*Counter, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		// try by encoding name (e.g. cl100k_base)
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
