package tokenizer

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Abraxas-365/ollamarelay/llm"
)

// Counter estimates token counts. Local models use their own vocabularies,
// so the numbers are approximations made with a BPE encoding of similar
// granularity; they are meant for context-size hints, not billing.
type Counter struct {
	encodingName string

	once     sync.Once
	encoding *tiktoken.Tiktoken
	loadErr  error
}

// EncodingForModel picks the BPE encoding used to approximate model.
func EncodingForModel(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "llama3"), strings.HasPrefix(m, "llama-3"):
		return "o200k_base"
	case strings.HasPrefix(m, "codellama"), strings.HasPrefix(m, "code-"):
		return "p50k_base"
	}
	// Default to cl100k_base if model is unknown
	return "cl100k_base"
}

func NewCounter(model string) *Counter {
	return &Counter{encodingName: EncodingForModel(model)}
}

// Encoding is the name of the encoding used by the counter.
func (c *Counter) Encoding() string {
	return c.encodingName
}

// load fetches the encoding on first use. tiktoken-go downloads BPE ranks
// on demand, so this can fail when offline.
func (c *Counter) load() error {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encodingName)
		if err != nil {
			c.loadErr = &Error{Op: "load", Message: fmt.Sprintf("encoding %s unavailable", c.encodingName), Err: err}
			return
		}
		c.encoding = enc
	})
	return c.loadErr
}

// Count returns the token count of text. When the encoding cannot be
// loaded it falls back to Estimate and returns the load error alongside.
func (c *Counter) Count(text string) (int, error) {
	if err := c.load(); err != nil {
		return Estimate(text), err
	}
	return len(c.encoding.Encode(text, nil, nil)), nil
}

// CountMessages counts the content of every message.
func (c *Counter) CountMessages(messages []llm.Message) (int, error) {
	total := 0
	var firstErr error
	for _, msg := range messages {
		n, err := c.Count(msg.Content)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		total += n
	}
	return total, firstErr
}

// Estimate is the offline rule of thumb: 1 token ≈ 4 characters.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// Error represents errors that can occur while counting tokens
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tokenizer.%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("tokenizer.%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
