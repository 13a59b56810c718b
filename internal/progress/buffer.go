package progress

import "sync"

// Buffer records every event of one run and fans it out to subscribers.
// Subscriber channels are written non-blocking; a slow subscriber drops
// events rather than stalling the run.
type Buffer struct {
	mu     sync.Mutex
	events []Event
	subs   map[chan Event]struct{}
	closed bool
}

func NewBuffer() *Buffer {
	return &Buffer{subs: map[chan Event]struct{}{}}
}

// Emit records the event and forwards it to every live subscriber.
func (b *Buffer) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.events = append(b.events, e)
	for ch := range b.subs {
		select {
		case ch <- e:
		default: // subscriber is behind; drop
		}
	}
	// Error events are not terminal: a failed run still finishes with a
	// complete event, which is what closes the stream.
	if e.Type == TypeComplete {
		b.closeLocked()
	}
}

// Subscribe returns a channel carrying already-buffered events followed by
// live ones, plus a cancel func. The channel is closed when the run ends.
func (b *Buffer) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 256)
	for _, e := range b.events {
		select {
		case ch <- e:
		default:
		}
	}
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Events returns a copy of everything recorded so far.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

func (b *Buffer) closeLocked() {
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = map[chan Event]struct{}{}
}
