// Package llm hosts the model registry and the middleware chain applied to
// every provider client resolved through it.
package llm

import (
	"context"

	llmclient "appforge/internal/llmclient"
)

// LLMClient re-exports the provider client capability for convenience.
type LLMClient = llmclient.LLMClient

// Limiter gates an operation until capacity is available.
type Limiter interface {
	Acquire(ctx context.Context) error
}
