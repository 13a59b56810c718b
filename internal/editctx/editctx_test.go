package editctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func demoManifest() map[string]string {
	return map[string]string{
		"src/App.jsx":                "export default function App() { return null }",
		"src/index.css":              "body { margin: 0 }",
		"src/components/Header.jsx":  "export default function Header() { return null }",
		"src/components/TodoList.jsx": "export default function TodoList() { return null }",
	}
}

func TestClassifyStyle(t *testing.T) {
	got := Classify("make the background color darker", demoManifest())
	assert.Equal(t, UpdateStyle, got.Type)
	assert.InDelta(t, 0.7, got.Confidence, 0.001)
}

func TestClassifyFixBeatsStyle(t *testing.T) {
	// "fix" outranks the style words also present in the prompt.
	got := Classify("fix the broken background color", demoManifest())
	assert.Equal(t, FixIssue, got.Type)
}

func TestClassifyRebuild(t *testing.T) {
	got := Classify("redesign the whole thing from scratch", demoManifest())
	assert.Equal(t, FullRebuild, got.Type)
	assert.InDelta(t, 0.9, got.Confidence, 0.001)
}

func TestClassifyTextChange(t *testing.T) {
	got := Classify(`change the title to say "Welcome Back"`, demoManifest())
	assert.Equal(t, UpdateText, got.Type)
}

func TestClassifyDefault(t *testing.T) {
	got := Classify("the counter should persist between reloads", demoManifest())
	assert.Equal(t, UpdateComponent, got.Type)
	assert.InDelta(t, 0.4, got.Confidence, 0.001)
}

func TestClassifyTargetMatchBoostsConfidence(t *testing.T) {
	got := Classify("update the header layout", demoManifest())
	assert.Equal(t, []string{"src/components/Header.jsx"}, got.TargetFiles)
	assert.Equal(t, UpdateComponent, got.Type)
	assert.InDelta(t, 0.5, got.Confidence, 0.001)
}

func TestSelectTargetedFile(t *testing.T) {
	sel := Select("make the TodoList show completed items", demoManifest())
	assert.Equal(t, []string{"src/components/TodoList.jsx"}, sel.PrimaryFiles)
	assert.NotContains(t, sel.ContextFiles, "src/components/TodoList.jsx")
	assert.Contains(t, sel.ContextFiles, "src/App.jsx")
	assert.Contains(t, sel.SystemPrompt, "Modify ONLY these files: src/components/TodoList.jsx")
}

func TestSelectStyleFallsBackToStylesheets(t *testing.T) {
	sel := Select("use a warmer theme overall", demoManifest())
	assert.Equal(t, UpdateStyle, sel.Intent.Type)
	assert.Contains(t, sel.PrimaryFiles, "src/index.css")
	assert.Contains(t, sel.PrimaryFiles, "src/App.jsx")
}

func TestSelectRebuildTakesAllSources(t *testing.T) {
	sel := Select("start over with a completely new design", demoManifest())
	assert.Equal(t, FullRebuild, sel.Intent.Type)
	assert.Len(t, sel.PrimaryFiles, 4)
}

func TestSelectConfidenceIsMaxOfEstimates(t *testing.T) {
	sel := Select("rebuild everything from scratch", demoManifest())
	lexical := Classify("rebuild everything from scratch", demoManifest())
	second := AnalyzeIntent("rebuild everything from scratch", demoManifest())
	want := lexical.Confidence
	if second.Confidence > want {
		want = second.Confidence
	}
	assert.InDelta(t, want, sel.Intent.Confidence, 0.001)
}

func TestAnalyzeIntentQuotedTargets(t *testing.T) {
	got := AnalyzeIntent(`change "Add Todo" to "Create Task"`, demoManifest())
	assert.Greater(t, got.Confidence, 0.3)
}
