package progress

import (
	"log"
	"time"
)

// EventType tags one message in the streaming status protocol.
type EventType string

const (
	TypeStart           EventType = "start"
	TypeStep            EventType = "step"
	TypeFileProgress    EventType = "file-progress"
	TypeFileComplete    EventType = "file-complete"
	TypeFileError       EventType = "file-error"
	TypeCommandProgress EventType = "command-progress"
	TypeCommandOutput   EventType = "command-output"
	TypeCommandComplete EventType = "command-complete"
	TypeCommandError    EventType = "command-error"
	TypePackageProgress EventType = "package-progress"
	TypeWarning         EventType = "warning"
	TypeError           EventType = "error"
	TypeComplete        EventType = "complete"
)

// Event is one progress message delivered to the caller during a run.
// Fields are populated per type; unused fields stay zero.
type Event struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	FilePath  string    `json:"filePath,omitempty"`
	Command   string    `json:"command,omitempty"`
	Package   string    `json:"package,omitempty"`
	Current   int       `json:"current,omitempty"`
	Total     int       `json:"total,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Func receives progress events. It is fire-and-forget from the caller's
// perspective; implementations must not rely on return values.
type Func func(Event)

// Safe wraps fn so a panicking callback can never break the run.
// A nil fn yields a no-op.
func Safe(fn Func) Func {
	if fn == nil {
		return func(Event) {}
	}
	return func(e Event) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("progress: callback panicked: %v", r)
			}
		}()
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now()
		}
		fn(e)
	}
}
