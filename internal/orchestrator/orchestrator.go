// Package orchestrator sequences the full code-synthesis state machine:
// thinking, planning, per-component generation, file materialization,
// package installation, build validation, and bounded repair, with separate
// short paths for targeted edits and single-element visual edits.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"appforge/internal/conversation"
	llmclient "appforge/internal/llmclient"
	"appforge/internal/parser"
	"appforge/internal/progress"
	"appforge/internal/sandbox"
	"appforge/internal/store"
	"appforge/internal/visual"
)

// ClientBuilder resolves a provider-prefixed model identifier into a ready
// client. Implemented by llm.InMemoryModelRegistry.
type ClientBuilder interface {
	BuildClient(ctx context.Context, modelID string) (llmclient.LLMClient, error)
}

// Snapshotter uploads one file of a run snapshot. Implemented by
// artifact.S3Store; nil disables snapshots.
type Snapshotter interface {
	Put(ctx context.Context, runID, path string, content []byte) error
}

// CallContext carries optional caller identity and visual-edit payload.
type CallContext struct {
	ProjectID       string                  `json:"projectId,omitempty"`
	UserID          string                  `json:"userId,omitempty"`
	SelectedElement *visual.SelectedElement `json:"selectedElement,omitempty"`
	VisualEdit      bool                    `json:"visualEdit,omitempty"`
	CurrentFiles    map[string]string       `json:"currentFiles,omitempty"`
}

// Input is one ApplyCodeStream invocation.
type Input struct {
	Prompt    string       `json:"prompt"`
	Model     string       `json:"model"`
	Context   *CallContext `json:"context,omitempty"`
	IsEdit    bool         `json:"isEdit,omitempty"`
	Packages  []string     `json:"packages,omitempty"`
	SandboxID string       `json:"sandboxId,omitempty"`
}

// Results itemizes everything a run changed or failed to change.
type Results struct {
	FilesCreated             []string `json:"filesCreated"`
	FilesUpdated             []string `json:"filesUpdated"`
	PackagesInstalled        []string `json:"packagesInstalled"`
	PackagesAlreadyInstalled []string `json:"packagesAlreadyInstalled"`
	PackagesFailed           []string `json:"packagesFailed"`
	CommandsExecuted         []string `json:"commandsExecuted"`
	Errors                   []string `json:"errors"`
}

// Result is the terminal outcome of one run. Partial success is first-class:
// Success is true when at least one artifact changed or no critical error
// occurred. Install failures, command failures, and timeouts are
// non-critical by definition.
type Result struct {
	Success          bool          `json:"success"`
	Results          Results       `json:"results"`
	Explanation      string        `json:"explanation,omitempty"`
	Structure        string        `json:"structure,omitempty"`
	ParsedFiles      []parser.File `json:"parsedFiles,omitempty"`
	Message          string        `json:"message"`
	ThinkingAnalysis string        `json:"thinkingAnalysis,omitempty"`
	Skipped          bool          `json:"skipped,omitempty"`
	SandboxID        string        `json:"sandboxId,omitempty"`
}

// Options carries heuristic policy. The observed thresholds are policy, not
// load-bearing precision; callers may tune them.
type Options struct {
	DuplicateWindow    time.Duration
	SoftComponentLines int
	ReaskComponentLines int
	MinComponentLines  int
	BuildCommand       string
	ThinkingEnabled    bool
	Visual             visual.Options
}

func DefaultOptions() Options {
	return Options{
		DuplicateWindow:     5 * time.Minute,
		SoftComponentLines:  200,
		ReaskComponentLines: 250,
		MinComponentLines:   10,
		ThinkingEnabled:     true,
		Visual:              visual.DefaultOptions(),
	}
}

// Orchestrator owns one session's generation state. The existing-files index
// and conversation state are constructor-injected session state, scoped to
// one conversation rather than the whole process.
type Orchestrator struct {
	clients   ClientBuilder
	sandboxes *sandbox.Registry
	store     *store.Store
	snaps     Snapshotter
	session   *conversation.State
	opts      Options
}

func New(clients ClientBuilder, sandboxes *sandbox.Registry, st *store.Store, snaps Snapshotter, opts Options) *Orchestrator {
	if opts.DuplicateWindow <= 0 {
		opts.DuplicateWindow = 5 * time.Minute
	}
	if opts.SoftComponentLines <= 0 {
		opts.SoftComponentLines = 200
	}
	if opts.ReaskComponentLines <= 0 {
		opts.ReaskComponentLines = 250
	}
	if opts.MinComponentLines <= 0 {
		opts.MinComponentLines = 10
	}
	return &Orchestrator{
		clients:   clients,
		sandboxes: sandboxes,
		store:     st,
		snaps:     snaps,
		session:   conversation.New(),
		opts:      opts,
	}
}

// Session exposes the conversation state for inspection.
func (o *Orchestrator) Session() *conversation.State { return o.session }

// run is the per-invocation mutable state threaded through the phases.
type run struct {
	id      string
	input   Input
	client  llmclient.LLMClient
	sb      sandbox.Provider
	emit    progress.Func
	existing map[string]bool // ExistingFilesIndex
	written  map[string]string
	queuedPackages    []string
	criticalErrorSeen bool
	res               Result
}

// ApplyCodeStream is the single entry point. onProgress receives every
// progress event; it is wrapped so it can never throw back into the run.
func (o *Orchestrator) ApplyCodeStream(ctx context.Context, in Input, onProgress progress.Func) (Result, error) {
	emit := progress.Safe(onProgress)
	r := &run{
		id:       fmt.Sprintf("run-%d", time.Now().UnixNano()),
		input:    in,
		emit:     emit,
		existing: map[string]bool{},
		written:  map[string]string{},
	}

	mode := o.selectMode(in)
	emit(progress.Event{Type: progress.TypeStart, Message: "starting " + mode + " run"})

	// Duplicate-prompt guard: new-project mode only, and only when a
	// project+user identity is available.
	if mode == modeNew {
		if skipped, err := o.duplicateGuard(ctx, in); err == nil && skipped {
			r.res.Success = true
			r.res.Skipped = true
			r.res.Message = "skipped — duplicate prompt within the recent window"
			emit(progress.Event{Type: progress.TypeComplete, Message: r.res.Message})
			return r.res, nil
		}
	}

	client, err := o.clients.BuildClient(ctx, in.Model)
	if err != nil {
		emit(progress.Event{Type: progress.TypeError, Error: err.Error()})
		return Result{Success: false, Message: "model provider unavailable", Results: Results{Errors: []string{err.Error()}}}, err
	}
	r.client = client

	sb, err := o.sandboxes.Acquire(ctx, in.SandboxID)
	if err != nil {
		emit(progress.Event{Type: progress.TypeError, Error: err.Error()})
		return Result{Success: false, Message: "sandbox unavailable", Results: Results{Errors: []string{err.Error()}}}, err
	}
	r.sb = sb
	r.res.SandboxID = sb.Info().ID

	o.seedExistingFiles(ctx, r)
	o.recordUserTurn(ctx, in)

	switch mode {
	case modeVisual:
		o.runVisualEdit(ctx, r)
	case modeEdit:
		o.runEdit(ctx, r)
	default:
		o.runGeneration(ctx, r)
	}

	o.finish(ctx, r)
	return r.res, nil
}

const (
	modeNew    = "generation"
	modeEdit   = "edit"
	modeVisual = "visual-edit"
)

// selectMode applies the precedence rule: an explicit visual-edit payload
// beats IsEdit, which beats new-project generation.
func (o *Orchestrator) selectMode(in Input) string {
	if in.Context != nil && in.Context.VisualEdit && in.Context.SelectedElement != nil {
		return modeVisual
	}
	if in.IsEdit {
		return modeEdit
	}
	return modeNew
}

// duplicateGuard reports whether the prompt is an exact-text repeat within
// the recent window for the same project/user.
func (o *Orchestrator) duplicateGuard(ctx context.Context, in Input) (bool, error) {
	if in.Context == nil || in.Context.ProjectID == "" || in.Context.UserID == "" {
		return false, nil
	}
	recent, err := o.store.RecentUserMessages(ctx, in.Context.ProjectID, in.Context.UserID, o.opts.DuplicateWindow)
	if err != nil {
		log.Printf("orchestrator: duplicate guard read failed: %v", err)
		return false, err
	}
	for _, msg := range recent {
		if msg == in.Prompt {
			return true, nil
		}
	}
	return false, nil
}

// seedExistingFiles lists the sandbox once to decide created-vs-updated
// semantics for every later write.
func (o *Orchestrator) seedExistingFiles(ctx context.Context, r *run) {
	paths, err := r.sb.ListFiles(ctx, ".")
	if err != nil {
		log.Printf("orchestrator: list files: %v", err)
		return
	}
	for _, p := range paths {
		r.existing[p] = true
	}
}

func (o *Orchestrator) recordUserTurn(ctx context.Context, in Input) {
	o.session.AddMessage("user", in.Prompt)
	if in.Context != nil && in.Context.ProjectID != "" {
		err := o.store.AppendMessage(ctx, store.ChatMessage{
			ProjectID: in.Context.ProjectID,
			UserID:    in.Context.UserID,
			Role:      "user",
			Content:   in.Prompt,
		})
		if err != nil {
			log.Printf("orchestrator: append user message: %v", err)
		}
	}
}

// finish assembles the terminal result, persists the assistant turn, and
// best-effort snapshots the written files.
func (o *Orchestrator) finish(ctx context.Context, r *run) {
	res := &r.res
	changed := len(res.Results.FilesCreated)+len(res.Results.FilesUpdated) > 0
	if res.Message == "" {
		if changed {
			res.Message = fmt.Sprintf("done: %d file(s) created, %d updated", len(res.Results.FilesCreated), len(res.Results.FilesUpdated))
		} else {
			res.Message = "no files changed"
		}
	}
	if !res.Skipped {
		res.Success = changed || !r.criticalErrorSeen
	}

	o.session.AddMessage("assistant", res.Message)
	if r.input.Context != nil && r.input.Context.ProjectID != "" {
		err := o.store.AppendMessage(ctx, store.ChatMessage{
			ProjectID: r.input.Context.ProjectID,
			UserID:    r.input.Context.UserID,
			Role:      "assistant",
			Content:   res.Message,
		})
		if err != nil {
			log.Printf("orchestrator: append assistant message: %v", err)
		}
		o.persistManifest(ctx, r)
	}

	if o.snaps != nil && changed {
		for p, content := range r.written {
			if err := o.snaps.Put(ctx, r.id, p, []byte(content)); err != nil {
				log.Printf("orchestrator: snapshot %s: %v", p, err)
				r.emit(progress.Event{Type: progress.TypeWarning, Message: "snapshot upload failed for " + p})
				break
			}
		}
	}

	r.emit(progress.Event{Type: progress.TypeComplete, Message: res.Message})
}

func (o *Orchestrator) persistManifest(ctx context.Context, r *run) {
	m, ok := o.store.GetManifest(ctx, r.input.Context.ProjectID)
	if !ok {
		m = store.Manifest{}
	}
	for p, content := range r.written {
		m[p] = content
	}
	if err := o.store.PutManifest(ctx, r.input.Context.ProjectID, m); err != nil {
		log.Printf("orchestrator: persist manifest: %v", err)
	}
}

func (r *run) addError(critical bool, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.res.Results.Errors = append(r.res.Results.Errors, msg)
	if critical {
		r.criticalErrorSeen = true
		r.emit(progress.Event{Type: progress.TypeError, Error: msg})
	} else {
		r.emit(progress.Event{Type: progress.TypeWarning, Message: msg})
	}
}
