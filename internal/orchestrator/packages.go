package orchestrator

import (
	"context"
	"strings"

	"appforge/internal/parser"
	"appforge/internal/progress"
)

// installPackages unions caller-supplied, parser-extracted, and repair-queued
// packages, drops duplicates and framework intrinsics, and installs the rest
// as one batch. Installation failure is non-critical; generation proceeds.
func (o *Orchestrator) installPackages(ctx context.Context, r *run, parsed []string) {
	seen := map[string]bool{}
	var toInstall []string
	add := func(names []string) {
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			root := parser.PackageRoot(n)
			if seen[root] {
				continue
			}
			seen[root] = true
			// Already handled by an earlier batch in this run.
			if containsStr(r.res.Results.PackagesInstalled, root) ||
				containsStr(r.res.Results.PackagesAlreadyInstalled, root) ||
				containsStr(r.res.Results.PackagesFailed, root) {
				continue
			}
			if parser.IsFrameworkPackage(root) {
				r.res.Results.PackagesAlreadyInstalled = append(r.res.Results.PackagesAlreadyInstalled, root)
				continue
			}
			toInstall = append(toInstall, root)
		}
	}
	add(r.input.Packages)
	add(parsed)
	add(r.queuedPackages)

	if len(toInstall) == 0 {
		return
	}

	r.emit(progress.Event{Type: progress.TypePackageProgress, Message: "installing " + strings.Join(toInstall, ", ")})
	res, err := r.sb.InstallPackages(ctx, toInstall)
	if err != nil || !res.Success {
		detail := res.Stderr
		if err != nil {
			detail = err.Error()
		}
		r.res.Results.PackagesFailed = append(r.res.Results.PackagesFailed, toInstall...)
		r.addError(false, "package install failed: %s", firstLine(detail))
		return
	}
	r.res.Results.PackagesInstalled = append(r.res.Results.PackagesInstalled, toInstall...)
	r.emit(progress.Event{Type: progress.TypePackageProgress, Message: "installed " + strings.Join(toInstall, ", ")})
}

// runCommands executes parser-extracted shell commands one at a time.
// Command failures are recorded as non-critical errors.
func (o *Orchestrator) runCommands(ctx context.Context, r *run, commands []string) {
	for _, cmd := range commands {
		r.emit(progress.Event{Type: progress.TypeCommandProgress, Command: cmd})
		res, err := r.sb.RunCommand(ctx, cmd)
		if err != nil {
			r.emit(progress.Event{Type: progress.TypeCommandError, Command: cmd, Error: err.Error()})
			r.addError(false, "command %q: %v", cmd, err)
			continue
		}
		if res.Stdout != "" {
			r.emit(progress.Event{Type: progress.TypeCommandOutput, Command: cmd, Message: firstLine(res.Stdout)})
		}
		if !res.Success {
			r.emit(progress.Event{Type: progress.TypeCommandError, Command: cmd, Error: firstLine(res.Stderr)})
			r.addError(false, "command %q exited %d", cmd, res.ExitCode)
			continue
		}
		r.res.Results.CommandsExecuted = append(r.res.Results.CommandsExecuted, cmd)
		r.emit(progress.Event{Type: progress.TypeCommandComplete, Command: cmd})
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
