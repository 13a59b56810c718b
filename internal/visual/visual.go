// Package visual performs minimal, verified edits scoped to one UI element
// selected interactively by the user.
package visual

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	llmclient "appforge/internal/llmclient"
)

// SelectedElement describes the element picked in the UI. It is supplied
// once per call and never persisted.
type SelectedElement struct {
	Selector      string `json:"selector"`
	ElementType   string `json:"elementType"`
	TextContent   string `json:"textContent"`
	Bounds        Bounds `json:"bounds"`
	ComponentPath string `json:"componentPath,omitempty"`
	ComponentName string `json:"componentName,omitempty"`
	Line          int    `json:"line,omitempty"`
	Column        int    `json:"column,omitempty"`
}

type Bounds struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Result is the typed outcome of a visual edit. A rejected edit carries
// Success=false and an explanation; no partial write ever happens.
type Result struct {
	Success     bool   `json:"success"`
	FilePath    string `json:"filePath,omitempty"`
	Content     string `json:"content,omitempty"`
	Explanation string `json:"explanation"`
}

// FileWriter commits one verified file. Satisfied by sandbox providers.
type FileWriter interface {
	WriteFile(ctx context.Context, path, content string) error
}

// Options carries the heuristic policy knobs.
type Options struct {
	// MaxChangedRatio is the line-diff ratio above which the edit is
	// treated as suspicious and the target text must survive verbatim.
	MaxChangedRatio float64
	// MinFuzzyTextLen is the minimum element text length before fuzzy
	// content matching is trusted for target resolution.
	MinFuzzyTextLen int
	// Temperature for the edit call; near-deterministic by default.
	Temperature float64
}

func DefaultOptions() Options {
	return Options{MaxChangedRatio: 0.5, MinFuzzyTextLen: 4, Temperature: 0.1}
}

// Engine resolves the owning source file of a selected element and applies
// a minimal, validated in-place edit.
type Engine struct {
	client llmclient.LLMClient
	model  string
	opts   Options
}

func NewEngine(client llmclient.LLMClient, model string, opts Options) *Engine {
	if opts.MaxChangedRatio <= 0 {
		opts.MaxChangedRatio = 0.5
	}
	if opts.MinFuzzyTextLen <= 0 {
		opts.MinFuzzyTextLen = 4
	}
	return &Engine{client: client, model: model, opts: opts}
}

// ResolveTarget finds the file owning the selected element. Order: explicit
// component path, component name against base/declared names, then fuzzy
// text matching with the application root file deprioritized.
func ResolveTarget(el SelectedElement, files map[string]string, minTextLen int) (string, bool) {
	if el.ComponentPath != "" {
		want := strings.TrimPrefix(el.ComponentPath, "/")
		for p := range files {
			if p == want || strings.HasSuffix(p, "/"+want) {
				return p, true
			}
		}
	}
	if el.ComponentName != "" {
		for p, content := range files {
			base := strings.TrimSuffix(path.Base(p), path.Ext(p))
			if strings.EqualFold(base, el.ComponentName) {
				return p, true
			}
			if declaresName(content, el.ComponentName) {
				return p, true
			}
		}
	}
	text := strings.TrimSpace(el.TextContent)
	if len(text) >= minTextLen {
		var rootMatch string
		for p, content := range files {
			if !strings.Contains(content, text) {
				continue
			}
			if isAppRoot(p) {
				rootMatch = p
				continue
			}
			return p, true
		}
		if rootMatch != "" {
			return rootMatch, true
		}
	}
	return "", false
}

func declaresName(content, name string) bool {
	for _, pat := range []string{
		`function\s+` + regexp.QuoteMeta(name) + `\b`,
		`const\s+` + regexp.QuoteMeta(name) + `\s*=`,
		`export\s+default\s+` + regexp.QuoteMeta(name) + `\b`,
	} {
		if regexp.MustCompile(pat).MatchString(content) {
			return true
		}
	}
	return false
}

func isAppRoot(p string) bool {
	base := path.Base(p)
	return base == "App.jsx" || base == "App.tsx" || base == "App.js" || base == "main.jsx" || base == "main.tsx"
}

// Apply resolves the target, asks the model for the smallest possible change,
// validates the candidate, and only then commits it through w.
func (e *Engine) Apply(ctx context.Context, el SelectedElement, files map[string]string, prompt string, w FileWriter) Result {
	target, ok := ResolveTarget(el, files, e.opts.MinFuzzyTextLen)
	if !ok {
		return Result{Success: false, Explanation: "could not locate the source file owning the selected element"}
	}
	original := files[target]

	edited, err := e.requestEdit(ctx, el, target, original, prompt)
	if err != nil {
		return Result{Success: false, FilePath: target, Explanation: fmt.Sprintf("visual edit model call failed: %v", err)}
	}

	if reason, ok := Validate(el, original, edited, e.opts.MaxChangedRatio); !ok {
		return Result{Success: false, FilePath: target, Explanation: reason}
	}

	if err := w.WriteFile(ctx, target, edited); err != nil {
		return Result{Success: false, FilePath: target, Explanation: fmt.Sprintf("write failed: %v", err)}
	}
	return Result{Success: true, FilePath: target, Content: edited, Explanation: "applied minimal edit to " + target}
}

func (e *Engine) requestEdit(ctx context.Context, el SelectedElement, target, original, prompt string) (string, error) {
	sys := fmt.Sprintf(`You are editing exactly one UI element in one file.
Element: <%s> selector=%q text=%q
Make the smallest possible change that satisfies the request. Preserve all
unrelated code, imports, and structure. Return ONLY the complete updated
content of %s with no commentary and no code fences.`,
		el.ElementType, el.Selector, el.TextContent, target)

	out, err := e.client.GenerateText(ctx, llmclient.Request{
		Model: e.model,
		Messages: []llmclient.Message{
			{Role: "system", Content: sys},
			{Role: "user", Content: fmt.Sprintf("Current content of %s:\n\n%s\n\nRequested change: %s", target, original, prompt)},
		},
		Temperature: e.opts.Temperature,
		MaxTokens:   8000,
	})
	if err != nil {
		return "", err
	}
	return stripFences(out), nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s) + "\n"
}
