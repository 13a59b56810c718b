package orchestrator

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"

	llmclient "appforge/internal/llmclient"
	"appforge/internal/parser"
	"appforge/internal/progress"
	"appforge/internal/repair"
	"appforge/internal/util/jsonutil"
)

// runGeneration drives the new-project path: THINKING -> PLANNING ->
// COMPONENT_GENERATION* -> FILE_WRITE -> PACKAGE_INSTALL -> BUILD_VALIDATE ->
// REPAIR -> COMPLETE.
func (o *Orchestrator) runGeneration(ctx context.Context, r *run) {
	prompt := r.input.Prompt

	if o.opts.ThinkingEnabled {
		if plan, err := o.thinkingPhase(ctx, r); err != nil {
			// Non-fatal: proceed with the unmodified prompt.
			log.Printf("orchestrator: thinking phase failed: %v", err)
			r.emit(progress.Event{Type: progress.TypeWarning, Message: "planning analysis unavailable, continuing"})
		} else if plan != "" {
			r.res.ThinkingAnalysis = plan
			prompt = "Implementation plan:\n" + plan + "\n\nOriginal request: " + prompt
		}
	}

	root, stylesheet, parsed, err := o.planningPhase(ctx, r, prompt)
	if err != nil {
		r.addError(true, "planning phase failed: %v", err)
		return
	}
	r.res.Explanation = parsed.Explanation
	r.res.Structure = parsed.Structure
	r.res.ParsedFiles = append(r.res.ParsedFiles, parsed.Files...)

	var toWrite []parser.File
	if root.Path != "" {
		toWrite = append(toWrite, root)
	}
	if stylesheet.Path != "" {
		toWrite = append(toWrite, stylesheet)
	}
	if err := o.materialize(ctx, r, toWrite); err != nil {
		return
	}

	// The root component's import graph, not the model's free text, decides
	// what gets built next.
	pending := missingComponents(root, r.written)
	allPackages := append([]string(nil), parsed.Packages...)

	for i, comp := range pending {
		r.emit(progress.Event{Type: progress.TypeStep, Message: fmt.Sprintf("generating component %s (%d/%d)", comp.name, i+1, len(pending))})
		file, pkgs, err := o.generateComponent(ctx, r, prompt, root, comp)
		if err != nil {
			r.addError(false, "component %s generation failed: %v", comp.name, err)
			continue
		}
		allPackages = append(allPackages, pkgs...)
		r.res.ParsedFiles = append(r.res.ParsedFiles, file)
		if err := o.materialize(ctx, r, []parser.File{file}); err != nil {
			return
		}
		o.componentBuildCheck(ctx, r, prompt, &file)
	}

	o.installPackages(ctx, r, allPackages)
	o.runCommands(ctx, r, parsed.Commands)

	loop := repair.NewLoop(r.client, r.input.Model, r.emit)
	if o.opts.BuildCommand != "" {
		loop.BuildCommand = o.opts.BuildCommand
	}
	outcome := loop.Run(ctx, r.sb, copyWritten(r.written), func(ctx context.Context, files []parser.File) error {
		return o.materialize(ctx, r, files)
	})
	r.queuedPackages = append(r.queuedPackages, outcome.QueuedPackages...)
	if len(outcome.QueuedPackages) > 0 {
		o.installPackages(ctx, r, nil)
	}
	if !outcome.BuildPassed {
		r.addError(false, "build still failing after %d repair round(s): %s", outcome.RoundsUsed, firstLine(outcome.RemainingError))
	}
}

// thinkingPlan is the structured analysis requested before planning.
type thinkingPlan struct {
	Approach      string   `json:"approach"`
	Features      []string `json:"features"`
	DesignNotes   string   `json:"designNotes"`
	TechnicalPlan string   `json:"technicalPlan"`
}

// thinkingPhase asks the model for a structured implementation plan. Models
// routinely wrap the JSON in prose or fences, so decoding is best effort with
// a plain-text fallback.
func (o *Orchestrator) thinkingPhase(ctx context.Context, r *run) (string, error) {
	r.emit(progress.Event{Type: progress.TypeStep, Message: "analyzing request"})
	out, err := r.client.GenerateText(ctx, llmclient.Request{
		Model: r.input.Model,
		Messages: []llmclient.Message{
			{Role: "system", Content: `Analyze the requested application and return a JSON object with keys "approach", "features" (array of strings), "designNotes", and "technicalPlan". No code.`},
			{Role: "user", Content: r.input.Prompt},
		},
		Temperature: 0.4,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", err
	}
	var plan thinkingPlan
	if err := jsonutil.UnmarshalFlex([]byte(out), &plan); err != nil || plan.Approach == "" {
		return strings.TrimSpace(out), nil
	}
	var b strings.Builder
	b.WriteString("Approach: " + plan.Approach)
	if len(plan.Features) > 0 {
		b.WriteString("\nFeatures: " + strings.Join(plan.Features, "; "))
	}
	if plan.DesignNotes != "" {
		b.WriteString("\nDesign: " + plan.DesignNotes)
	}
	if plan.TechnicalPlan != "" {
		b.WriteString("\nTechnical plan: " + plan.TechnicalPlan)
	}
	return b.String(), nil
}

// planningPhase requests only the root component and its base stylesheet.
func (o *Orchestrator) planningPhase(ctx context.Context, r *run, prompt string) (root, stylesheet parser.File, parsed parser.ParsedResponse, err error) {
	r.emit(progress.Event{Type: progress.TypeStep, Message: "planning application shell"})
	out, err := r.client.GenerateTextStream(ctx, llmclient.Request{
		Model: r.input.Model,
		Messages: []llmclient.Message{
			{Role: "system", Content: planningSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   12000,
	}, nil)
	if err != nil {
		return parser.File{}, parser.File{}, parser.ParsedResponse{}, err
	}

	parsed = parser.Parse(out)
	for _, f := range parsed.Files {
		switch {
		case path.Base(f.Path) == "App.jsx" || path.Base(f.Path) == "App.tsx":
			root = f
		case strings.HasSuffix(f.Path, ".css") && stylesheet.Path == "":
			stylesheet = f
		}
	}
	if root.Path == "" && len(parsed.Files) > 0 {
		for _, f := range parsed.Files {
			if isScriptFile(f.Path) {
				root = f
				break
			}
		}
	}
	if root.Path == "" {
		return parser.File{}, parser.File{}, parsed, fmt.Errorf("planning returned no root component")
	}
	return root, stylesheet, parsed, nil
}

const planningSystemPrompt = `You are scaffolding a React + Vite application.
Return EXACTLY two files in <file path="..."> tags: the root component
src/App.jsx and the base stylesheet src/index.css. In App.jsx, import ONLY
components you actually intend to use; every relative import you write will
be generated as its own file afterwards. Include an <explanation> block and
a <packages> block listing any npm packages beyond react/react-dom.`

type pendingComponent struct {
	name string
	path string
}

// missingComponents derives the still-to-generate set from the root file's
// relative imports, in declaration order.
func missingComponents(root parser.File, written map[string]string) []pendingComponent {
	var out []pendingComponent
	for _, spec := range parser.ScanRelativeImports(root.Content) {
		if strings.HasSuffix(spec, ".css") || strings.HasSuffix(spec, ".json") {
			continue
		}
		target := repair.ResolveImportPath(root.Path, spec)
		if _, ok := written[target]; ok {
			continue
		}
		found := false
		for _, ext := range []string{".jsx", ".tsx", ".js", ".ts"} {
			if _, ok := written[target+ext]; ok {
				found = true
				break
			}
		}
		if found {
			continue
		}
		name := strings.TrimSuffix(path.Base(target), path.Ext(target))
		out = append(out, pendingComponent{name: name, path: target + ".jsx"})
	}
	return out
}

// generateComponent issues one dedicated call for an imported-but-undefined
// component, then applies the modularity guideline: past the re-ask
// threshold, one best-effort request for a smaller version, accepted only if
// it is shorter and still substantial.
func (o *Orchestrator) generateComponent(ctx context.Context, r *run, prompt string, root parser.File, comp pendingComponent) (parser.File, []string, error) {
	sys := fmt.Sprintf(`Generate the React component %s imported by the root
component below. Return exactly one file in a <file path=%q> tag. Keep it
focused, roughly %d lines or fewer.`, comp.name, comp.path, o.opts.SoftComponentLines)

	out, err := r.client.GenerateText(ctx, llmclient.Request{
		Model: r.input.Model,
		Messages: []llmclient.Message{
			{Role: "system", Content: sys},
			{Role: "user", Content: "Application request: " + prompt + "\n\nRoot component:\n" + root.Content},
		},
		Temperature: 0.7,
		MaxTokens:   8000,
	})
	if err != nil {
		return parser.File{}, nil, err
	}
	parsed := parser.Parse(out)
	file, ok := pickComponentFile(parsed, comp)
	if !ok {
		return parser.File{}, nil, fmt.Errorf("response contained no usable file")
	}

	if lineCount(file.Content) > o.opts.ReaskComponentLines {
		if smaller, err := o.reaskModular(ctx, r, comp, file); err == nil {
			file = smaller
		} else {
			log.Printf("orchestrator: modular re-ask for %s rejected: %v", comp.name, err)
		}
	}
	return file, parsed.Packages, nil
}

func pickComponentFile(parsed parser.ParsedResponse, comp pendingComponent) (parser.File, bool) {
	if f, ok := parsed.FileByPath(parser.NormalizePath(comp.path)); ok {
		return f, true
	}
	for _, f := range parsed.Files {
		if isScriptFile(f.Path) {
			f.Path = parser.NormalizePath(comp.path)
			return f, true
		}
	}
	return parser.File{}, false
}

// reaskModular requests one more modular rendition; the replacement must be
// both shorter and not a degenerate near-empty stub.
func (o *Orchestrator) reaskModular(ctx context.Context, r *run, comp pendingComponent, file parser.File) (parser.File, error) {
	out, err := r.client.GenerateText(ctx, llmclient.Request{
		Model: r.input.Model,
		Messages: []llmclient.Message{
			{Role: "system", Content: fmt.Sprintf("Rewrite this component to be more modular and under %d lines. Return one <file path=%q> tag.", o.opts.SoftComponentLines, comp.path)},
			{Role: "user", Content: file.Content},
		},
		Temperature: 0.5,
		MaxTokens:   8000,
	})
	if err != nil {
		return parser.File{}, err
	}
	parsed := parser.Parse(out)
	smaller, ok := pickComponentFile(parsed, comp)
	if !ok {
		return parser.File{}, fmt.Errorf("no file in response")
	}
	newLines, oldLines := lineCount(smaller.Content), lineCount(file.Content)
	if newLines >= oldLines {
		return parser.File{}, fmt.Errorf("replacement not shorter (%d >= %d lines)", newLines, oldLines)
	}
	if nonEmptyLines(smaller.Content) <= o.opts.MinComponentLines {
		return parser.File{}, fmt.Errorf("replacement degenerate (%d non-empty lines)", nonEmptyLines(smaller.Content))
	}
	return smaller, nil
}

// componentBuildCheck builds immediately after a component write and, on
// failure, allows exactly one re-generation with the build error appended.
// The fix is kept only when it is measurably better.
func (o *Orchestrator) componentBuildCheck(ctx context.Context, r *run, prompt string, file *parser.File) {
	buildCmd := o.opts.BuildCommand
	if buildCmd == "" {
		buildCmd = repair.DefaultBuildCommand
	}
	res, err := r.sb.RunCommand(ctx, buildCmd)
	if err != nil || !repair.BuildFailed(res) {
		return
	}

	errText := firstLine(res.Stderr + "\n" + res.Stdout)
	out, err := r.client.GenerateText(ctx, llmclient.Request{
		Model: r.input.Model,
		Messages: []llmclient.Message{
			{Role: "system", Content: fmt.Sprintf("The component below fails to build. Fix it and return one <file path=%q> tag.", file.Path)},
			{Role: "user", Content: "Build error: " + errText + "\n\nComponent:\n" + file.Content},
		},
		Temperature: 0.3,
		MaxTokens:   8000,
	})
	if err != nil {
		log.Printf("orchestrator: component rebuild for %s failed: %v", file.Path, err)
		return
	}
	parsed := parser.Parse(out)
	fixed, ok := parsed.FileByPath(file.Path)
	if !ok && len(parsed.Files) > 0 {
		fixed = parsed.Files[0]
		fixed.Path = file.Path
		ok = true
	}
	if !ok || nonEmptyLines(fixed.Content) <= o.opts.MinComponentLines/2 {
		// Keep the original; a degenerate fix is worse than a broken build
		// the repair loop can still handle.
		return
	}
	*file = fixed
	if err := o.materialize(ctx, r, []parser.File{fixed}); err != nil {
		return
	}
}

func lineCount(s string) int {
	return strings.Count(s, "\n") + 1
}

func nonEmptyLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

func copyWritten(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
