package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"appforge/internal/safeio"
)

const localCommandTimeout = 2 * time.Minute

var localSeq atomic.Int64

// Local runs a project inside a directory on the host, confined by safeio.
// It exists for development and tests; production sandboxes come from an
// external provisioner behind the same Provider interface.
type Local struct {
	info Info
	fs   *safeio.SafeFS
	dead atomic.Bool
}

// NewLocal creates a Local sandbox rooted at dir. The directory must exist.
func NewLocal(dir string) (*Local, error) {
	fs, err := safeio.NewSafeFS(dir)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("local-%d-%d", time.Now().UnixMilli(), localSeq.Add(1))
	return &Local{
		info: Info{
			ID:        id,
			URL:       "file://" + fs.Root(),
			Provider:  "local",
			CreatedAt: time.Now(),
		},
		fs: fs,
	}, nil
}

// NewLocalTemp creates a Local sandbox in a fresh temp directory.
func NewLocalTemp() (*Local, error) {
	dir, err := os.MkdirTemp("", "appforge-sandbox-*")
	if err != nil {
		return nil, err
	}
	return NewLocal(dir)
}

func (l *Local) Info() Info { return l.info }

func (l *Local) SetupViteApp(ctx context.Context) error {
	// Minimal scaffold; real scaffolding happens via generated files.
	if err := l.WriteFile(ctx, "package.json", `{"name":"app","private":true,"type":"module","scripts":{"dev":"vite","build":"vite build"}}`); err != nil {
		return err
	}
	return l.WriteFile(ctx, "index.html", "<!doctype html>\n<html>\n<body>\n<div id=\"root\"></div>\n<script type=\"module\" src=\"/src/main.jsx\"></script>\n</body>\n</html>\n")
}

func (l *Local) ReadFile(ctx context.Context, path string) (string, error) {
	b, err := l.fs.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (l *Local) WriteFile(ctx context.Context, path, content string) error {
	return l.fs.WriteFile(path, []byte(content))
}

func (l *Local) ListFiles(ctx context.Context, dir string) ([]string, error) {
	if dir == "" || dir == "/" {
		dir = "."
	}
	out, err := l.fs.Walk(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (l *Local) RunCommand(ctx context.Context, cmd string) (CommandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, localCommandTimeout)
	defer cancel()

	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	c.Dir = l.fs.Root()
	var stdout, stderr strings.Builder
	c.Stdout = &stdout
	c.Stderr = &stderr
	err := c.Run()
	res := CommandResult{
		Success: err == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return res, nil // non-zero exit is a result, not a transport error
		}
		res.ExitCode = -1
		return res, err
	}
	return res, nil
}

func (l *Local) InstallPackages(ctx context.Context, names []string) (CommandResult, error) {
	if len(names) == 0 {
		return CommandResult{Success: true}, nil
	}
	return l.RunCommand(ctx, "npm install "+strings.Join(names, " "))
}

func (l *Local) Terminate(ctx context.Context) error {
	l.dead.Store(true)
	return nil
}

func (l *Local) IsAlive(ctx context.Context) bool {
	if l.dead.Load() {
		return false
	}
	_, err := os.Stat(l.fs.Root())
	return err == nil
}
