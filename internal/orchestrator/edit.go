package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"appforge/internal/conversation"
	"appforge/internal/editctx"
	llmclient "appforge/internal/llmclient"
	"appforge/internal/parser"
	"appforge/internal/progress"
	"appforge/internal/search"
)

// runEdit drives the targeted-edit path: EDIT_CONTEXT -> EDIT_APPLY ->
// COMPLETE. It never enters planning or component generation.
func (o *Orchestrator) runEdit(ctx context.Context, r *run) {
	manifest := o.loadManifest(ctx, r)
	if len(manifest) == 0 {
		r.addError(true, "edit requested but no project files are available")
		return
	}
	// Manifest files pre-exist whatever the live sandbox listing returned,
	// so edits to them count as updates, never creations.
	for p := range manifest {
		r.existing[parser.NormalizePath(p)] = true
	}

	r.emit(progress.Event{Type: progress.TypeStep, Message: "selecting edit context"})
	sel := editctx.Select(r.input.Prompt, manifest)
	r.emit(progress.Event{Type: progress.TypeStep, Message: fmt.Sprintf("intent %s (%.0f%%), %d primary file(s)", sel.Intent.Type, sel.Intent.Confidence*100, len(sel.PrimaryFiles))})

	plan := search.BuildPlan(sel.Intent, r.input.Prompt)
	primaryContents := map[string]string{}
	for _, p := range sel.PrimaryFiles {
		primaryContents[p] = manifest[p]
	}
	hits := search.Execute(plan, primaryContents)

	out, err := r.client.GenerateText(ctx, llmclient.Request{
		Model:       r.input.Model,
		Messages:    editMessages(r.input.Prompt, sel, manifest, hits),
		Temperature: 0.4,
		MaxTokens:   12000,
	})
	if err != nil {
		r.addError(true, "edit model call failed: %v", err)
		return
	}

	parsed := parser.Parse(out)
	r.res.Explanation = parsed.Explanation
	r.res.ParsedFiles = parsed.Files

	// Only primary files may change; anything else the model volunteered is
	// dropped so an edit can never sprawl across the project.
	allowed := map[string]bool{}
	for _, p := range sel.PrimaryFiles {
		allowed[parser.NormalizePath(p)] = true
	}
	var toWrite []parser.File
	for _, f := range parsed.Files {
		if allowed[f.Path] {
			toWrite = append(toWrite, f)
		} else {
			log.Printf("orchestrator: edit dropped non-primary file %s", f.Path)
		}
	}
	if len(toWrite) == 0 {
		r.addError(false, "edit returned no changes to the selected files")
		return
	}
	if err := o.materialize(ctx, r, toWrite); err != nil {
		return
	}
	o.installPackages(ctx, r, parsed.Packages)

	var touched []string
	for _, f := range toWrite {
		touched = append(touched, f.Path)
	}
	o.session.AddEdit(conversation.EditRecord{
		Type:        string(sel.Intent.Type),
		Description: sel.Intent.Description,
		Files:       touched,
	})
}

func editMessages(prompt string, sel editctx.Selection, manifest map[string]string, hits []search.Hit) []llmclient.Message {
	var b strings.Builder
	b.WriteString("Apply this change: " + prompt + "\n")
	if h, ok := search.BestTarget(hits); ok {
		fmt.Fprintf(&b, "\nThe change most likely belongs near %s line %d (%s).\n", h.FilePath, h.LineNumber, h.Reason)
	}
	for _, p := range sel.PrimaryFiles {
		fmt.Fprintf(&b, "\nCurrent content of %s:\n```\n%s\n```\n", p, manifest[p])
	}
	for _, p := range sel.ContextFiles {
		fmt.Fprintf(&b, "\nReference only, do not modify %s:\n```\n%s\n```\n", p, manifest[p])
	}
	b.WriteString("\nReturn each changed file complete, in <file path=\"...\"> tags. Do not return unchanged or reference files.")

	return []llmclient.Message{
		{Role: "system", Content: sel.SystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// loadManifest prefers caller-provided files, then the persisted project
// manifest, then a live sandbox listing.
func (o *Orchestrator) loadManifest(ctx context.Context, r *run) map[string]string {
	if r.input.Context != nil && len(r.input.Context.CurrentFiles) > 0 {
		out := map[string]string{}
		for p, c := range r.input.Context.CurrentFiles {
			out[parser.NormalizePath(p)] = c
		}
		return out
	}
	if r.input.Context != nil && r.input.Context.ProjectID != "" {
		if m, ok := o.store.GetManifest(ctx, r.input.Context.ProjectID); ok && len(m) > 0 {
			return m
		}
	}
	out := map[string]string{}
	paths, err := r.sb.ListFiles(ctx, "src")
	if err != nil {
		log.Printf("orchestrator: manifest listing: %v", err)
		return out
	}
	for _, p := range paths {
		content, err := r.sb.ReadFile(ctx, p)
		if err != nil {
			continue
		}
		out[p] = content
	}
	return out
}
