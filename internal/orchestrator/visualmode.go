package orchestrator

import (
	"context"

	"appforge/internal/conversation"
	"appforge/internal/parser"
	"appforge/internal/progress"
	"appforge/internal/visual"
)

// runVisualEdit drives the single-element path: VISUAL_TARGET_RESOLVE ->
// VISUAL_APPLY -> COMPLETE. Any validation rejection surfaces as a typed
// failure with no partial write.
func (o *Orchestrator) runVisualEdit(ctx context.Context, r *run) {
	el := r.input.Context.SelectedElement
	files := o.loadManifest(ctx, r)
	if len(files) == 0 {
		r.addError(true, "visual edit requested but no project files are available")
		return
	}

	r.emit(progress.Event{Type: progress.TypeStep, Message: "resolving selected element"})
	engine := visual.NewEngine(r.client, r.input.Model, o.opts.Visual)
	res := engine.Apply(ctx, *el, files, r.input.Prompt, r.sb)
	r.res.Explanation = res.Explanation

	if !res.Success {
		r.res.Success = false
		r.res.Message = res.Explanation
		r.criticalErrorSeen = true
		r.res.Results.Errors = append(r.res.Results.Errors, res.Explanation)
		r.emit(progress.Event{Type: progress.TypeError, Error: res.Explanation, FilePath: res.FilePath})
		return
	}

	p := parser.NormalizePath(res.FilePath)
	r.written[p] = res.Content
	// A visual edit always targets a pre-existing file, even when the index
	// was seeded from a manifest rather than the live sandbox.
	r.res.Results.FilesUpdated = append(r.res.Results.FilesUpdated, p)
	r.existing[p] = true
	r.res.ParsedFiles = []parser.File{{Path: p, Content: res.Content}}
	r.emit(progress.Event{Type: progress.TypeFileComplete, FilePath: p})

	o.session.AddEdit(conversation.EditRecord{
		Type:        "VISUAL_EDIT",
		Description: "minimal edit to <" + el.ElementType + "> " + el.Selector,
		Files:       []string{p},
	})
}
