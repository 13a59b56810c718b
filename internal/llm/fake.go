package llm

import (
	"context"
	"sync"

	llmclient "appforge/internal/llmclient"
)

// FakeClient replays scripted responses in order for offline/testing use.
// When the script runs out, the last response repeats. An optional Handler
// can override scripting per request.
type FakeClient struct {
	mu        sync.Mutex
	responses []string
	idx       int

	// Handler, when set, computes the response from the request and takes
	// precedence over the scripted responses.
	Handler func(req llmclient.Request) (string, error)

	// Calls records every request received, in order.
	Calls []llmclient.Request
}

func NewFakeClient(responses ...string) *FakeClient {
	return &FakeClient{responses: responses}
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) next(req llmclient.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, req)
	if f.Handler != nil {
		return f.Handler(req)
	}
	if len(f.responses) == 0 {
		return "", llmclient.ErrEmptyResponse
	}
	out := f.responses[f.idx]
	if f.idx < len(f.responses)-1 {
		f.idx++
	}
	return out, nil
}

func (f *FakeClient) GenerateText(ctx context.Context, req llmclient.Request) (string, error) {
	return f.next(req)
}

func (f *FakeClient) GenerateTextStream(ctx context.Context, req llmclient.Request, onChunk func(chunk string)) (string, error) {
	out, err := f.next(req)
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		// Deliver in two chunks so stream consumers see partial input.
		half := len(out) / 2
		if half > 0 {
			onChunk(out[:half])
		}
		onChunk(out[half:])
	}
	return out, nil
}

// CallCount returns the number of requests received so far.
func (f *FakeClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
