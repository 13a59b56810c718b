package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeNilFunc(t *testing.T) {
	fn := Safe(nil)
	assert.NotPanics(t, func() { fn(Event{Type: TypeStep}) })
}

func TestSafeRecoversPanic(t *testing.T) {
	fn := Safe(func(Event) { panic("subscriber bug") })
	assert.NotPanics(t, func() { fn(Event{Type: TypeStep}) })
}

func TestSafeFillsTimestamp(t *testing.T) {
	var got Event
	fn := Safe(func(e Event) { got = e })
	fn(Event{Type: TypeStart})
	assert.False(t, got.Timestamp.IsZero())
}

func TestBufferRecordsAndReplays(t *testing.T) {
	b := NewBuffer()
	b.Emit(Event{Type: TypeStart})
	b.Emit(Event{Type: TypeStep, Message: "planning"})

	ch, cancel := b.Subscribe()
	defer cancel()

	first := <-ch
	second := <-ch
	assert.Equal(t, TypeStart, first.Type)
	assert.Equal(t, "planning", second.Message)

	b.Emit(Event{Type: TypeFileComplete, FilePath: "src/App.jsx"})
	live := <-ch
	assert.Equal(t, "src/App.jsx", live.FilePath)
}

func TestBufferClosesOnTerminalEvent(t *testing.T) {
	b := NewBuffer()
	ch, _ := b.Subscribe()

	b.Emit(Event{Type: TypeComplete, Message: "done"})

	e, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, TypeComplete, e.Type)
	_, ok = <-ch
	assert.False(t, ok, "channel should be closed after completion")

	// Further emits are ignored.
	b.Emit(Event{Type: TypeStep})
	assert.Len(t, b.Events(), 1)
}

func TestBufferSubscribeAfterClose(t *testing.T) {
	b := NewBuffer()
	b.Emit(Event{Type: TypeError, Error: "boom"})
	b.Emit(Event{Type: TypeComplete, Message: "failed"})

	ch, cancel := b.Subscribe()
	defer cancel()
	e, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, TypeError, e.Type)
	e, ok = <-ch
	require.True(t, ok)
	assert.Equal(t, TypeComplete, e.Type)
	_, ok = <-ch
	assert.False(t, ok)
}

func TestBufferStaysOpenAfterError(t *testing.T) {
	// A failed run still ends with a complete event; the error must not
	// cut the stream short of it.
	b := NewBuffer()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Emit(Event{Type: TypeError, Error: "build broke"})
	b.Emit(Event{Type: TypeComplete, Message: "done with errors"})

	e := <-ch
	assert.Equal(t, TypeError, e.Type)
	e, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, TypeComplete, e.Type)
	_, ok = <-ch
	assert.False(t, ok)
	assert.Len(t, b.Events(), 2)
}

func TestBufferCancelIsIdempotent(t *testing.T) {
	b := NewBuffer()
	_, cancel := b.Subscribe()
	cancel()
	assert.NotPanics(t, cancel)
}
