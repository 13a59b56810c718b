package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmclient "appforge/internal/llmclient"
)

func TestSplitModelID(t *testing.T) {
	p, m := SplitModelID("gemini/gemini-2.5-flash")
	assert.Equal(t, "gemini", p)
	assert.Equal(t, "gemini-2.5-flash", m)

	p, m = SplitModelID("bare-model")
	assert.Equal(t, "", p)
	assert.Equal(t, "bare-model", m)

	p, m = SplitModelID("Groq/llama-3.3-70b")
	assert.Equal(t, "groq", p)
}

func registration(provider, model string, level llmclient.ModelLevel, cli llmclient.LLMClient) llmclient.ModelRegistration {
	return llmclient.ModelRegistration{
		Provider: provider,
		Model:    model,
		Level:    level,
		Factory: func(ctx context.Context) (llmclient.LLMClient, error) {
			return cli, nil
		},
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewInMemoryModelRegistry()
	fake := NewFakeClient("ok")
	require.NoError(t, reg.RegisterModel(registration("gemini", "flash", llmclient.ModelLevelMiddle, fake)))

	got, err := reg.Resolve("gemini", "flash")
	require.NoError(t, err)
	assert.Equal(t, "gemini:flash", got.Profile.Name)

	// Case-insensitive provider, bare-model fallback.
	_, err = reg.Resolve("GEMINI", "flash")
	require.NoError(t, err)
	_, err = reg.Resolve("", "flash")
	require.NoError(t, err)

	_, err = reg.Resolve("gemini", "missing")
	assert.ErrorIs(t, err, ErrModelNotRegistered)
}

func TestRegistryResolveLevel(t *testing.T) {
	reg := NewInMemoryModelRegistry()
	require.NoError(t, reg.RegisterModel(registration("gemini", "flash", llmclient.ModelLevelLow, NewFakeClient("ok"))))

	got, err := reg.ResolveLevel(llmclient.ModelLevelLow)
	require.NoError(t, err)
	assert.Equal(t, "flash", got.Profile.Model)

	_, err = reg.ResolveLevel(llmclient.ModelLevelHigh)
	assert.ErrorIs(t, err, ErrModelNotRegistered)

	_, err = reg.ResolveLevel(llmclient.ModelLevel("bogus"))
	assert.ErrorIs(t, err, ErrModelLevelRequired)
}

func TestRegistryRejectsInvalidRegistration(t *testing.T) {
	reg := NewInMemoryModelRegistry()
	assert.Error(t, reg.RegisterModel(llmclient.ModelRegistration{Provider: "x", Model: "y", Level: llmclient.ModelLevelLow}))
	assert.Error(t, reg.RegisterModel(registration("", "y", llmclient.ModelLevelLow, NewFakeClient("ok"))))
	assert.Error(t, reg.RegisterModel(registration("x", "y", "sideways", NewFakeClient("ok"))))
}

func TestBuildClientStripsProviderPrefix(t *testing.T) {
	reg := NewInMemoryModelRegistry()
	fake := NewFakeClient("hello")
	require.NoError(t, reg.RegisterModel(registration("gemini", "flash", llmclient.ModelLevelMiddle, fake)))

	cli, err := reg.BuildClient(context.Background(), "gemini/flash")
	require.NoError(t, err)

	out, err := cli.GenerateText(context.Background(), llmclient.Request{Model: "flash"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	_, err = reg.BuildClient(context.Background(), "gemini/unknown")
	assert.ErrorIs(t, err, ErrModelNotRegistered)
}

type flakyClient struct {
	fails int
	calls int
	err   error
}

func (f *flakyClient) Name() string { return "flaky" }
func (f *flakyClient) Close() error { return nil }

func (f *flakyClient) GenerateText(ctx context.Context, req llmclient.Request) (string, error) {
	f.calls++
	if f.calls <= f.fails {
		return "", f.err
	}
	return "recovered", nil
}

func (f *flakyClient) GenerateTextStream(ctx context.Context, req llmclient.Request, onChunk func(string)) (string, error) {
	return f.GenerateText(ctx, req)
}

func TestRetryRecoversTransientError(t *testing.T) {
	inner := &flakyClient{fails: 2, err: errors.New("rate limited")}
	cli := Wrap(inner, Retry(3, time.Millisecond))

	out, err := cli.GenerateText(context.Background(), llmclient.Request{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &flakyClient{fails: 10, err: errors.New("still down")}
	cli := Wrap(inner, Retry(3, time.Millisecond))

	_, err := cli.GenerateText(context.Background(), llmclient.Request{})
	assert.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryReturnsWithoutFinalBackoff(t *testing.T) {
	// Two sleeps for three attempts (40+80ms); the old behavior added a
	// pointless 160ms sleep after the last failure.
	inner := &flakyClient{fails: 10, err: errors.New("still down")}
	cli := Wrap(inner, Retry(3, 40*time.Millisecond))

	start := time.Now()
	_, err := cli.GenerateText(context.Background(), llmclient.Request{})
	elapsed := time.Since(start)

	assert.Error(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Less(t, elapsed, 220*time.Millisecond, "error return should not wait out a final backoff")
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	inner := &flakyClient{fails: 10, err: llmclient.NewPermanentError(errors.New("invalid api key"))}
	cli := Wrap(inner, Retry(5, time.Millisecond))

	_, err := cli.GenerateText(context.Background(), llmclient.Request{})
	assert.True(t, llmclient.IsPermanent(err))
	assert.Equal(t, 1, inner.calls)
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	inner := &flakyClient{fails: 10, err: errors.New("transient")}
	cli := Wrap(inner, Retry(5, time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cli.GenerateText(ctx, llmclient.Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimiterBurstThenBlock(t *testing.T) {
	l := newRPSLimiter(1, 2)
	defer l.Stop()
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(short), context.DeadlineExceeded)
}

func TestRateLimiterDisabled(t *testing.T) {
	l := newRPSLimiter(0, 0)
	assert.NoError(t, l.Acquire(context.Background()))
	l.Stop()
}

func TestFakeClientScriptAndStream(t *testing.T) {
	f := NewFakeClient("one", "two")
	ctx := context.Background()

	out, _ := f.GenerateText(ctx, llmclient.Request{})
	assert.Equal(t, "one", out)
	out, _ = f.GenerateText(ctx, llmclient.Request{})
	assert.Equal(t, "two", out)
	out, _ = f.GenerateText(ctx, llmclient.Request{})
	assert.Equal(t, "two", out, "last response repeats")

	var chunks []string
	out, err := f.GenerateTextStream(ctx, llmclient.Request{}, func(c string) { chunks = append(chunks, c) })
	require.NoError(t, err)
	assert.Equal(t, "two", out)
	assert.Equal(t, "two", strings.Join(chunks, ""))
}
