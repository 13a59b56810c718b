// Package editctx classifies a natural-language edit request and selects the
// minimal set of project files the edit should touch.
package editctx

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
)

// IntentType classifies what kind of change a request represents.
type IntentType string

const (
	UpdateStyle     IntentType = "UPDATE_STYLE"
	UpdateText      IntentType = "UPDATE_TEXT"
	UpdateComponent IntentType = "UPDATE_COMPONENT"
	FixIssue        IntentType = "FIX_ISSUE"
	AddFeature      IntentType = "ADD_FEATURE"
	FullRebuild     IntentType = "FULL_REBUILD"
)

// EditIntent is the classified intent of one edit request.
type EditIntent struct {
	Type        IntentType `json:"type"`
	Description string     `json:"description"`
	Confidence  float64    `json:"confidence"`
	TargetFiles []string   `json:"targetFiles"`
}

// Selection is the result of edit-context selection: the files the edit will
// modify, reference files for the model, and a system-prompt fragment
// describing the choice.
type Selection struct {
	Intent       EditIntent `json:"editIntent"`
	PrimaryFiles []string   `json:"primaryFiles"`
	ContextFiles []string   `json:"contextFiles"`
	SystemPrompt string     `json:"systemPrompt"`
}

var (
	styleWords   = []string{"color", "colour", "style", "styling", "css", "theme", "background", "font", "padding", "margin", "spacing", "dark mode", "light mode", "gradient", "rounded", "shadow", "larger", "smaller", "bigger"}
	fixWords     = []string{"fix", "bug", "broken", "error", "doesn't work", "does not work", "not working", "crash", "issue", "wrong"}
	featureWords = []string{"add ", "build ", "create ", "implement ", "new "}
	rebuildWords = []string{"rebuild", "redesign", "start over", "from scratch", "completely new", "redo"}
	quotedTextRe = regexp.MustCompile(`["'“”]([^"'“”]{2,60})["'“”]`)
)

// Classify derives an EditIntent from lexical cues in the prompt and matches
// target files against the manifest.
func Classify(prompt string, manifest map[string]string) EditIntent {
	lower := strings.ToLower(prompt)

	intent := EditIntent{Type: UpdateComponent, Confidence: 0.4, Description: "general component update"}

	switch {
	case containsAny(lower, rebuildWords):
		intent = EditIntent{Type: FullRebuild, Confidence: 0.9, Description: "full rebuild requested"}
	case containsAny(lower, fixWords):
		intent = EditIntent{Type: FixIssue, Confidence: 0.7, Description: "bug fix requested"}
	case containsAny(lower, styleWords):
		intent = EditIntent{Type: UpdateStyle, Confidence: 0.7, Description: "styling change requested"}
	case quotedTextRe.MatchString(prompt) && containsAny(lower, []string{"text", "say", "change", "rename", "label", "title", "heading", "button"}):
		intent = EditIntent{Type: UpdateText, Confidence: 0.75, Description: "UI copy change requested"}
	case containsAny(lower, featureWords):
		intent = EditIntent{Type: AddFeature, Confidence: 0.6, Description: "feature addition requested"}
	}

	intent.TargetFiles = matchTargets(prompt, manifest)
	if len(intent.TargetFiles) > 0 {
		intent.Confidence += 0.1
		if intent.Confidence > 1 {
			intent.Confidence = 1
		}
	}
	return intent
}

// matchTargets finds manifest files whose base name or a mentioned component
// name appears in the prompt.
func matchTargets(prompt string, manifest map[string]string) []string {
	lower := strings.ToLower(prompt)
	var out []string
	for p := range manifest {
		base := strings.ToLower(strings.TrimSuffix(path.Base(p), path.Ext(p)))
		if base == "" || base == "index" || base == "main" {
			continue
		}
		if strings.Contains(lower, base) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Select classifies the prompt, runs the secondary intent analyzer, and picks
// primary plus context files. The final confidence is the max of the two
// estimates; the secondary's description wins when present.
func Select(prompt string, manifest map[string]string) Selection {
	intent := Classify(prompt, manifest)
	second := AnalyzeIntent(prompt, manifest)
	if second.Confidence > intent.Confidence {
		intent.Confidence = second.Confidence
	}
	if second.Description != "" {
		intent.Description = second.Description
	}
	for _, t := range second.TargetFiles {
		if !contains(intent.TargetFiles, t) {
			intent.TargetFiles = append(intent.TargetFiles, t)
		}
	}

	primary, context := pickFiles(intent, manifest)
	return Selection{
		Intent:       intent,
		PrimaryFiles: primary,
		ContextFiles: context,
		SystemPrompt: describeSelection(intent, primary, context),
	}
}

// pickFiles chooses the smallest file set likely to satisfy the request.
func pickFiles(intent EditIntent, manifest map[string]string) (primary, context []string) {
	if len(intent.TargetFiles) > 0 {
		primary = append(primary, intent.TargetFiles...)
	} else {
		switch intent.Type {
		case UpdateStyle:
			for p := range manifest {
				if strings.HasSuffix(p, ".css") || isAppRoot(p) {
					primary = append(primary, p)
				}
			}
		case FullRebuild:
			for p := range manifest {
				if strings.HasPrefix(p, "src/") {
					primary = append(primary, p)
				}
			}
		default:
			for p := range manifest {
				if isAppRoot(p) {
					primary = append(primary, p)
				}
			}
		}
		sort.Strings(primary)
	}

	for p := range manifest {
		if contains(primary, p) {
			continue
		}
		if isAppRoot(p) || strings.HasSuffix(p, ".css") || strings.Contains(p, "components/") {
			context = append(context, p)
		}
	}
	sort.Strings(context)
	const maxContext = 6
	if len(context) > maxContext {
		context = context[:maxContext]
	}
	return primary, context
}

func describeSelection(intent EditIntent, primary, context []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Edit classified as %s (%.0f%% confidence): %s.\n", intent.Type, intent.Confidence*100, intent.Description)
	if len(primary) > 0 {
		fmt.Fprintf(&b, "Modify ONLY these files: %s.\n", strings.Join(primary, ", "))
	}
	if len(context) > 0 {
		fmt.Fprintf(&b, "These files are provided as read-only reference: %s.\n", strings.Join(context, ", "))
	}
	b.WriteString("Preserve all unrelated code, imports, and structure.")
	return b.String()
}

func isAppRoot(p string) bool {
	base := path.Base(p)
	return base == "App.jsx" || base == "App.tsx" || base == "App.js"
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
