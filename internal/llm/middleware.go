package llm

import (
	"context"
	"log"
	"time"

	llmclient "appforge/internal/llmclient"
)

// Middleware decorates an LLMClient to inject cross-cutting concerns
// (rate limiting, retries, logging, etc.).
type Middleware func(llmclient.LLMClient) llmclient.LLMClient

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.LLMClient, mws ...Middleware) llmclient.LLMClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Rate Limiting --------

// RateLimit limits request rate using the token-bucket rpsLimiter.
// If rps <= 0, the limiter is effectively disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		rl := newRPSLimiter(rps, burst) // nil when disabled
		return &rateLimited{next: next, rl: rl}
	}
}

type rateLimited struct {
	next llmclient.LLMClient
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error { return c.next.Close() }

func (c *rateLimited) GenerateText(ctx context.Context, req llmclient.Request) (string, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return "", err
	}
	return c.next.GenerateText(ctx, req)
}

func (c *rateLimited) GenerateTextStream(ctx context.Context, req llmclient.Request, onChunk func(chunk string)) (string, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return "", err
	}
	return c.next.GenerateTextStream(ctx, req, onChunk)
}

// -------- Retry with exponential backoff --------

// Retry retries failed calls up to maxAttempts with exponential backoff
// starting at baseDelay. PermanentError stops retrying immediately, as does
// context cancellation.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next llmclient.LLMClient
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) GenerateText(ctx context.Context, req llmclient.Request) (string, error) {
	return r.attempt(ctx, func() (string, error) {
		return r.next.GenerateText(ctx, req)
	})
}

func (r *retrying) GenerateTextStream(ctx context.Context, req llmclient.Request, onChunk func(chunk string)) (string, error) {
	return r.attempt(ctx, func() (string, error) {
		return r.next.GenerateTextStream(ctx, req, onChunk)
	})
}

func (r *retrying) attempt(ctx context.Context, call func() (string, error)) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		if llmclient.IsPermanent(err) {
			return "", err
		}
		last = err
		// Stop immediately if the context is canceled.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if i < r.max-1 {
			time.Sleep(r.base * time.Duration(1<<i))
		}
	}
	return "", last
}

// -------- Logging --------

// Logging logs request size, duration, and errors. Provide a custom logger
// or nil to use log.Default().
func Logging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next llmclient.LLMClient
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) GenerateText(ctx context.Context, req llmclient.Request) (string, error) {
	start := time.Now()
	out, err := l.next.GenerateText(ctx, req)
	l.report(req, len(out), time.Since(start), err)
	return out, err
}

func (l *logging) GenerateTextStream(ctx context.Context, req llmclient.Request, onChunk func(chunk string)) (string, error) {
	start := time.Now()
	out, err := l.next.GenerateTextStream(ctx, req, onChunk)
	l.report(req, len(out), time.Since(start), err)
	return out, err
}

func (l *logging) report(req llmclient.Request, outBytes int, d time.Duration, err error) {
	in := 0
	for _, m := range req.Messages {
		in += len(m.Content)
	}
	if err != nil {
		l.log.Printf("LLM error (%s): %v after %s, %d bytes in", l.next.Name(), err, d.Round(time.Millisecond), in)
		return
	}
	l.log.Printf("LLM call (%s): %d bytes in, %d bytes out, %s", l.next.Name(), in, outBytes, d.Round(time.Millisecond))
}
