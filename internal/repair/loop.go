// Package repair drives the build-validate-fix cycle: static pre-flight
// fixers, failure detection over build output, and a bounded number of
// model-guided repair rounds.
package repair

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	llmclient "appforge/internal/llmclient"
	"appforge/internal/parser"
	"appforge/internal/progress"
	"appforge/internal/sandbox"
)

// MaxRounds bounds the repair loop regardless of whether errors persist.
// This is the termination guarantee; treat it as a hard invariant.
const MaxRounds = 2

// DefaultBuildCommand validates the project without serving it.
const DefaultBuildCommand = "npx vite build --logLevel error"

// failureSignatures mark a build as failed even when the exit code is zero
// (some toolchains report plugin errors on stdout only).
var failureSignatures = []string{
	"Failed to resolve import",
	"Could not resolve",
	"Cannot find module",
	"Transform failed",
	"Unexpected token",
	"SyntaxError",
	"does not provide an export named",
	"[plugin:",
	"Build failed",
}

var (
	lineColRe       = regexp.MustCompile(`([\w@./-]+\.(?:jsx?|tsx?|css|json)):\d+:\d+`)
	resolveImportRe = regexp.MustCompile(`Failed to resolve import\s+"([^"]+)"\s+from\s+"([^"]+)"`)
	fromFileRe      = regexp.MustCompile(`from\s+"([\w@./-]+\.(?:jsx?|tsx?|css|json))"`)
	transformFileRe = regexp.MustCompile(`Transform failed[^\n]*\n\s*([\w@./-]+\.(?:jsx?|tsx?))`)
)

// Outcome summarizes one Run.
type Outcome struct {
	BuildPassed    bool
	RoundsUsed     int
	IconFixes      int
	Placeholders   []string
	ExportRepairs  []string
	RemainingError string
	QueuedPackages []string
}

// Applier materializes model-returned files with the same normalization and
// write rules as generation. Implemented by the orchestrator.
type Applier func(ctx context.Context, files []parser.File) error

// Loop owns the build/repair cycle for one run.
type Loop struct {
	Client       llmclient.LLMClient
	Model        string
	BuildCommand string
	Emit         progress.Func
}

func NewLoop(client llmclient.LLMClient, model string, emit progress.Func) *Loop {
	return &Loop{
		Client:       client,
		Model:        model,
		BuildCommand: DefaultBuildCommand,
		Emit:         progress.Safe(emit),
	}
}

// BuildFailed reports whether a command result represents a failed build.
func BuildFailed(res sandbox.CommandResult) bool {
	if !res.Success || res.ExitCode != 0 {
		return true
	}
	combined := res.Stdout + "\n" + res.Stderr
	for _, sig := range failureSignatures {
		if strings.Contains(combined, sig) {
			return true
		}
	}
	return false
}

// ExtractBrokenPaths pulls candidate broken file paths out of build output
// via several independent recognizers. Paths are normalized and deduplicated.
func ExtractBrokenPaths(output string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		p = parser.NormalizePath(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, m := range resolveImportRe.FindAllStringSubmatch(output, -1) {
		// The unresolved target needs creating; the importer needs fixing.
		add(ResolveImportPath(parser.NormalizePath(m[2]), m[1]))
		add(m[2])
	}
	for _, m := range lineColRe.FindAllStringSubmatch(output, -1) {
		add(m[1])
	}
	for _, m := range fromFileRe.FindAllStringSubmatch(output, -1) {
		add(m[1])
	}
	for _, m := range transformFileRe.FindAllStringSubmatch(output, -1) {
		add(m[1])
	}
	return out
}

// Preflight runs the static fixers in order: icon validation, missing-import
// placeholder creation, import/export mismatch repair. Fixed files are
// committed through apply before the first real build.
func (l *Loop) Preflight(ctx context.Context, files map[string]string, apply Applier) (Outcome, map[string]string) {
	var out Outcome
	var toApply []parser.File

	fixedIcons, n := FixInvalidIcons(files)
	out.IconFixes = n
	if n > 0 {
		l.Emit(progress.Event{Type: progress.TypeStep, Message: fmt.Sprintf("replaced %d invalid icon reference(s)", n)})
		for p, content := range fixedIcons {
			if content != files[p] {
				toApply = append(toApply, parser.File{Path: p, Content: content})
			}
		}
	}
	files = fixedIcons

	created := FillMissingImports(files)
	for p, content := range created {
		files[p] = content
		out.Placeholders = append(out.Placeholders, p)
		toApply = append(toApply, parser.File{Path: p, Content: content})
	}
	if len(created) > 0 {
		l.Emit(progress.Event{Type: progress.TypeStep, Message: fmt.Sprintf("created %d placeholder(s) for unresolved imports", len(created))})
	}

	changed := RepairImportExportMismatches(files)
	for p, content := range changed {
		files[p] = content
		out.ExportRepairs = append(out.ExportRepairs, p)
		toApply = append(toApply, parser.File{Path: p, Content: content})
	}

	if len(toApply) > 0 && apply != nil {
		if err := apply(ctx, toApply); err != nil {
			// Pre-flight fixes are best effort.
			log.Printf("repair: preflight apply: %v", err)
			l.Emit(progress.Event{Type: progress.TypeWarning, Message: "pre-build fixers could not write all fixes: " + err.Error()})
		}
	}
	return out, files
}

// Run executes the full cycle: pre-flight fixers, build, and up to MaxRounds
// model-guided repair rounds. Unresolved errors after exhaustion surface as
// a warning in the outcome, never as a hard failure.
func (l *Loop) Run(ctx context.Context, sb sandbox.Provider, files map[string]string, apply Applier) Outcome {
	outcome, files := l.Preflight(ctx, files, apply)

	buildCmd := l.BuildCommand
	if buildCmd == "" {
		buildCmd = DefaultBuildCommand
	}

	res := l.build(ctx, sb, buildCmd)
	if !BuildFailed(res) {
		outcome.BuildPassed = true
		return outcome
	}

	for round := 1; round <= MaxRounds; round++ {
		outcome.RoundsUsed = round
		l.Emit(progress.Event{Type: progress.TypeStep, Message: fmt.Sprintf("build failed, repair round %d/%d", round, MaxRounds)})

		output := res.Stdout + "\n" + res.Stderr
		fixed, pkgs, err := l.requestFixes(ctx, output, files)
		if err != nil {
			log.Printf("repair: round %d model call failed: %v", round, err)
			l.Emit(progress.Event{Type: progress.TypeWarning, Message: "repair model call failed: " + err.Error()})
			break
		}
		outcome.QueuedPackages = append(outcome.QueuedPackages, pkgs...)
		if len(fixed) == 0 {
			l.Emit(progress.Event{Type: progress.TypeWarning, Message: "repair returned no files"})
			break
		}
		if apply != nil {
			if err := apply(ctx, fixed); err != nil {
				log.Printf("repair: apply fixes: %v", err)
				break
			}
		}
		for _, f := range fixed {
			files[f.Path] = f.Content
		}

		res = l.build(ctx, sb, buildCmd)
		if !BuildFailed(res) {
			outcome.BuildPassed = true
			return outcome
		}
	}

	outcome.RemainingError = strings.TrimSpace(firstLines(res.Stderr+"\n"+res.Stdout, 12))
	return outcome
}

func (l *Loop) build(ctx context.Context, sb sandbox.Provider, cmd string) sandbox.CommandResult {
	l.Emit(progress.Event{Type: progress.TypeCommandProgress, Command: cmd, Message: "validating build"})
	res, err := sb.RunCommand(ctx, cmd)
	if err != nil {
		// Transport-level failure; treat as a failed build with the error text.
		return sandbox.CommandResult{Success: false, Stderr: err.Error(), ExitCode: -1}
	}
	if BuildFailed(res) {
		l.Emit(progress.Event{Type: progress.TypeCommandError, Command: cmd, Error: firstLines(res.Stderr+"\n"+res.Stdout, 6)})
	} else {
		l.Emit(progress.Event{Type: progress.TypeCommandComplete, Command: cmd, Message: "build passed"})
	}
	return res
}

// requestFixes asks the model for corrected/created files covering every
// affected path in one call, flagging invalid icon usages found in the same
// pass.
func (l *Loop) requestFixes(ctx context.Context, buildOutput string, files map[string]string) ([]parser.File, []string, error) {
	paths := ExtractBrokenPaths(buildOutput)

	var b strings.Builder
	b.WriteString("The project build failed. Fix every affected file and return each complete corrected file as <file path=\"...\">content</file>. Create missing files where imports reference them. Do not return unchanged files.\n\n")
	b.WriteString("Build output:\n```\n")
	b.WriteString(firstLines(buildOutput, 60))
	b.WriteString("\n```\n")

	var badIcons []string
	for _, p := range paths {
		content, ok := lookupContent(files, p)
		if !ok {
			fmt.Fprintf(&b, "\nFile %s does not exist yet and must be created.\n", p)
			continue
		}
		fmt.Fprintf(&b, "\nCurrent content of %s:\n```\n%s\n```\n", p, content)
		if _, n := FixInvalidIcons(map[string]string{p: content}); n > 0 {
			badIcons = append(badIcons, p)
		}
	}
	if len(badIcons) > 0 {
		fmt.Fprintf(&b, "\nThese files import icon names that do not exist in lucide-react; replace them with valid icons: %s\n", strings.Join(badIcons, ", "))
	}

	out, err := l.Client.GenerateText(ctx, llmclient.Request{
		Model: l.Model,
		Messages: []llmclient.Message{
			{Role: "system", Content: "You repair broken frontend builds. Return only corrected files in <file> tags."},
			{Role: "user", Content: b.String()},
		},
		Temperature: 0.2,
		MaxTokens:   12000,
	})
	if err != nil {
		return nil, nil, err
	}
	parsed := parser.Parse(out)
	return parsed.Files, parsed.Packages, nil
}

func lookupContent(files map[string]string, p string) (string, bool) {
	if c, ok := files[p]; ok {
		return c, true
	}
	if found, ok := findExisting(files, strings.TrimSuffix(p, "/")); ok {
		return files[found], true
	}
	return "", false
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
