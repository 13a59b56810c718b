// Package sandbox defines the capability this system consumes to touch a
// project's files and run commands inside an isolated, disposable
// environment. Provisioning itself lives behind the Provider interface.
package sandbox

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("sandbox: not found")

// Info identifies one provisioned sandbox.
type Info struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommandResult is the outcome of one command execution.
type CommandResult struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// Provider is one live handle to a sandbox. Command executions enforce their
// own timeouts; callers treat timeouts as opaque failures.
type Provider interface {
	Info() Info
	SetupViteApp(ctx context.Context) error
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	ListFiles(ctx context.Context, dir string) ([]string, error)
	RunCommand(ctx context.Context, cmd string) (CommandResult, error)
	InstallPackages(ctx context.Context, names []string) (CommandResult, error)
	Terminate(ctx context.Context) error
	IsAlive(ctx context.Context) bool
}

// Reconnector is implemented by providers that can re-attach to an existing
// sandbox by identifier.
type Reconnector interface {
	Reconnect(ctx context.Context, id string) (bool, error)
}

// Factory provisions new sandboxes.
type Factory func(ctx context.Context) (Provider, error)
