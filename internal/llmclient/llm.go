package llmclient

import (
	"context"
	"errors"
)

var ErrEmptyResponse = errors.New("empty response from LLM")

// Message is one turn of a chat-style conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request describes a single completion call. Model carries the bare model
// name; provider routing happens before a client sees the request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// LLMClient is the minimal capability a provider client exposes.
// Cross-cutting concerns (rate limiting, retries, logging) are applied
// via llm.Middleware, not here.
type LLMClient interface {
	Name() string
	// GenerateText returns the full completion text.
	GenerateText(ctx context.Context, req Request) (string, error)
	// GenerateTextStream delivers partial text to onChunk as it arrives and
	// returns the full completion text. onChunk may be nil.
	GenerateTextStream(ctx context.Context, req Request, onChunk func(chunk string)) (string, error)
	Close() error
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError anywhere in its chain.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
