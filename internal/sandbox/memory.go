package sandbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory Provider for tests. Command outcomes are scripted
// via CommandScript; unscripted commands succeed with empty output.
type Memory struct {
	mu    sync.Mutex
	id    string
	files map[string]string
	dead  bool

	// CommandScript maps a command substring to its result. The first
	// matching entry wins; iteration order follows insertion order.
	script []scriptEntry

	// CommandLog records every command executed, in order.
	CommandLog []string
	// InstallLog records every InstallPackages batch, in order.
	InstallLog [][]string
	// WriteLog records every path written, in order (duplicates kept).
	WriteLog []string

	reconnects int
}

type scriptEntry struct {
	substr string
	result CommandResult
	// remaining < 0 means the entry never expires.
	remaining int
}

func NewMemory(id string) *Memory {
	if id == "" {
		id = fmt.Sprintf("mem-%d", time.Now().UnixNano())
	}
	return &Memory{id: id, files: map[string]string{}}
}

// Script makes every command containing substr return res, indefinitely.
func (m *Memory) Script(substr string, res CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptEntry{substr: substr, result: res, remaining: -1})
}

// ScriptN is like Script but the entry expires after n uses.
func (m *Memory) ScriptN(substr string, res CommandResult, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptEntry{substr: substr, result: res, remaining: n})
}

func (m *Memory) Info() Info {
	return Info{ID: m.id, URL: "memory://" + m.id, Provider: "memory", CreatedAt: time.Now()}
}

func (m *Memory) SetupViteApp(ctx context.Context) error { return nil }

func (m *Memory) ReadFile(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return c, nil
}

func (m *Memory) WriteFile(ctx context.Context, path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dead {
		return fmt.Errorf("sandbox: %s is terminated", m.id)
	}
	m.files[path] = content
	m.WriteLog = append(m.WriteLog, path)
	return nil
}

func (m *Memory) ListFiles(ctx context.Context, dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimPrefix(strings.TrimSuffix(dir, "/"), "./")
	var out []string
	for p := range m.files {
		if prefix == "" || prefix == "." || strings.HasPrefix(p, prefix+"/") || p == prefix {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) RunCommand(ctx context.Context, cmd string) (CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommandLog = append(m.CommandLog, cmd)
	for i := range m.script {
		e := &m.script[i]
		if e.remaining == 0 {
			continue
		}
		if strings.Contains(cmd, e.substr) {
			if e.remaining > 0 {
				e.remaining--
			}
			return e.result, nil
		}
	}
	return CommandResult{Success: true}, nil
}

func (m *Memory) InstallPackages(ctx context.Context, names []string) (CommandResult, error) {
	m.mu.Lock()
	m.InstallLog = append(m.InstallLog, append([]string(nil), names...))
	m.mu.Unlock()
	if len(names) == 0 {
		return CommandResult{Success: true}, nil
	}
	return m.RunCommand(ctx, "npm install "+strings.Join(names, " "))
}

func (m *Memory) Terminate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = true
	return nil
}

func (m *Memory) IsAlive(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.dead
}

// Reconnect revives a terminated sandbox with the same id.
func (m *Memory) Reconnect(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.id {
		return false, nil
	}
	m.dead = false
	m.reconnects++
	return true, nil
}

// Files returns a copy of the current file map.
func (m *Memory) Files() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.files))
	for k, v := range m.files {
		out[k] = v
	}
	return out
}
