package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appforge/internal/llm"
	llmclient "appforge/internal/llmclient"
	"appforge/internal/progress"
	"appforge/internal/sandbox"
	"appforge/internal/store"
	"appforge/internal/visual"
)

type fakeBuilder struct {
	client llmclient.LLMClient
}

func (b fakeBuilder) BuildClient(ctx context.Context, modelID string) (llmclient.LLMClient, error) {
	return b.client, nil
}

type env struct {
	orch   *Orchestrator
	client *llm.FakeClient
	sb     *sandbox.Memory
	events []progress.Event
}

func newEnv(t *testing.T, responses ...string) *env {
	t.Helper()
	e := &env{
		client: llm.NewFakeClient(responses...),
		sb:     sandbox.NewMemory("sb-test"),
	}
	reg := sandbox.NewRegistry(func(ctx context.Context) (sandbox.Provider, error) {
		return e.sb, nil
	})
	st := store.New(filepath.Join(t.TempDir(), "messages.json"))
	opts := DefaultOptions()
	opts.ThinkingEnabled = false
	e.orch = New(fakeBuilder{client: e.client}, reg, st, nil, opts)
	return e
}

func (e *env) apply(t *testing.T, in Input) Result {
	t.Helper()
	res, err := e.orch.ApplyCodeStream(context.Background(), in, func(ev progress.Event) {
		e.events = append(e.events, ev)
	})
	require.NoError(t, err)
	return res
}

const planningResponse = `<explanation>A greeting app.</explanation>
<packages>canvas-confetti</packages>
<file path="src/App.jsx">
import confetti from 'canvas-confetti'
import Header from './components/Header'
import './index.css'

export default function App() {
  return <Header />
}
</file>
<file path="src/index.css">
body { margin: 0; }
</file>`

const headerResponse = `<file path="src/components/Header.jsx">
export default function Header() {
  return <h1>Hello there</h1>
}
</file>`

func TestGenerationEndToEnd(t *testing.T) {
	e := newEnv(t, planningResponse, headerResponse)

	res := e.apply(t, Input{Prompt: "build a greeting app", Model: "gemini/test"})

	require.True(t, res.Success, "errors: %v", res.Results.Errors)
	assert.Equal(t, []string{"src/App.jsx", "src/index.css", "src/components/Header.jsx"}, res.Results.FilesCreated)
	assert.Empty(t, res.Results.FilesUpdated)
	assert.Equal(t, []string{"canvas-confetti"}, res.Results.PackagesInstalled)
	assert.Equal(t, "A greeting app.", res.Explanation)
	assert.Equal(t, 2, e.client.CallCount())

	files := e.sb.Files()
	assert.Contains(t, files["src/components/Header.jsx"], "Hello there")
	// The orchestrator owns stylesheet wiring; the copied import is dropped.
	assert.NotContains(t, files["src/App.jsx"], "./index.css")

	require.NotEmpty(t, e.events)
	assert.Equal(t, progress.TypeStart, e.events[0].Type)
	assert.Equal(t, progress.TypeComplete, e.events[len(e.events)-1].Type)
}

func TestGenerationComponentsFollowImportGraph(t *testing.T) {
	// The model "promises" a Sidebar in free text, but App only imports Header.
	resp := `The app has a Sidebar and a Header.
<file path="src/App.jsx">
import Header from './components/Header'
export default function App() { return <Header /> }
</file>
<file path="src/index.css">
body {}
</file>`
	e := newEnv(t, resp, headerResponse)

	res := e.apply(t, Input{Prompt: "an app with a sidebar", Model: "gemini/test"})

	require.True(t, res.Success)
	assert.NotContains(t, res.Results.FilesCreated, "src/components/Sidebar.jsx")
	assert.Contains(t, res.Results.FilesCreated, "src/components/Header.jsx")
}

func TestThinkingPhaseParsesStructuredPlan(t *testing.T) {
	thinking := "Here is the analysis:\n```json\n" +
		`{"approach": "single-page counter", "features": ["increment", "reset"], "technicalPlan": "useState only"}` +
		"\n```"
	e := newEnv(t, thinking, planningResponse, headerResponse)
	e.orch.opts.ThinkingEnabled = true

	res := e.apply(t, Input{Prompt: "a counter app", Model: "gemini/test"})

	require.True(t, res.Success)
	assert.Contains(t, res.ThinkingAnalysis, "Approach: single-page counter")
	assert.Contains(t, res.ThinkingAnalysis, "increment; reset")
	// The planning call receives the plan prepended to the original prompt.
	require.GreaterOrEqual(t, e.client.CallCount(), 2)
	assert.Contains(t, e.client.Calls[1].Messages[1].Content, "Implementation plan:")
}

func TestDuplicatePromptSkipped(t *testing.T) {
	e := newEnv(t, planningResponse, headerResponse)
	in := Input{
		Prompt:  "build a greeting app",
		Model:   "gemini/test",
		Context: &CallContext{ProjectID: "p1", UserID: "u1"},
	}

	first := e.apply(t, in)
	require.True(t, first.Success)
	require.False(t, first.Skipped)
	calls := e.client.CallCount()
	writes := len(e.sb.WriteLog)

	second := e.apply(t, in)
	assert.True(t, second.Skipped)
	assert.True(t, second.Success)
	assert.Contains(t, second.Message, "duplicate")
	assert.Equal(t, calls, e.client.CallCount())
	assert.Equal(t, writes, len(e.sb.WriteLog))
}

func TestDuplicateGuardNeedsIdentity(t *testing.T) {
	e := newEnv(t, planningResponse, headerResponse)
	in := Input{Prompt: "build a greeting app", Model: "gemini/test"}

	first := e.apply(t, in)
	require.False(t, first.Skipped)
	second := e.apply(t, in)
	assert.False(t, second.Skipped)
}

func TestEditOnlyWritesPrimaryFiles(t *testing.T) {
	manifest := map[string]string{
		"src/App.jsx":               "import Header from './components/Header'\nexport default function App() { return <Header /> }\n",
		"src/index.css":             "body { margin: 0 }\n",
		"src/components/Header.jsx": "export default function Header() {\n  return <h1>Old Title</h1>\n}\n",
	}
	editResponse := `<explanation>Renamed the heading.</explanation>
<file path="src/components/Header.jsx">
export default function Header() {
  return <h1>Hello</h1>
}
</file>
<file path="src/App.jsx">
export default function App() { return <div>sneaky rewrite</div> }
</file>`
	e := newEnv(t, editResponse)

	res := e.apply(t, Input{
		Prompt:  `set the header title to say "Hello"`,
		Model:   "gemini/test",
		IsEdit:  true,
		Context: &CallContext{CurrentFiles: manifest},
	})

	require.True(t, res.Success, "errors: %v", res.Results.Errors)
	assert.Equal(t, []string{"src/components/Header.jsx"}, e.sb.WriteLog)
	assert.Equal(t, []string{"src/components/Header.jsx"}, res.Results.FilesUpdated)
	assert.Empty(t, res.Results.FilesCreated)
	assert.Contains(t, e.sb.Files()["src/components/Header.jsx"], "Hello")

	edits := e.orch.Session().Edits()
	require.Len(t, edits, 1)
	assert.Equal(t, []string{"src/components/Header.jsx"}, edits[0].Files)
}

func TestEditReportsManifestFileAsUpdated(t *testing.T) {
	// The file lives only in the caller-supplied manifest, not in the
	// sandbox; the edit must still count as an update, not a creation.
	manifest := map[string]string{
		"src/components/Header.jsx": "export default function Header() {\n  return <h1>Old</h1>\n}\n",
	}
	editResponse := `<file path="src/components/Header.jsx">
export default function Header() {
  return <h1>New</h1>
}
</file>`
	e := newEnv(t, editResponse)

	res := e.apply(t, Input{
		Prompt:  "change the header text",
		Model:   "gemini/test",
		IsEdit:  true,
		Context: &CallContext{CurrentFiles: manifest},
	})

	require.True(t, res.Success, "errors: %v", res.Results.Errors)
	assert.Equal(t, []string{"src/components/Header.jsx"}, res.Results.FilesUpdated)
	assert.Empty(t, res.Results.FilesCreated)
}

func TestEditWithoutProjectFilesFails(t *testing.T) {
	e := newEnv(t, "unused")
	res := e.apply(t, Input{Prompt: "change the title", Model: "gemini/test", IsEdit: true})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Results.Errors)
}

const headerSource = `import React from 'react'

export default function Header() {
  return (
    <header className="hero">
      <h1>Shop With Us</h1>
    </header>
  )
}
`

func TestVisualEditPrecedesIsEdit(t *testing.T) {
	manifest := map[string]string{"src/components/Header.jsx": headerSource}
	edited := strings.Replace(headerSource, "<h1>", `<h1 className="text-red-500">`, 1)
	e := newEnv(t, edited)

	res := e.apply(t, Input{
		Prompt: "make the heading red",
		Model:  "gemini/test",
		IsEdit: true,
		Context: &CallContext{
			VisualEdit:      true,
			SelectedElement: &visual.SelectedElement{ElementType: "h1", ComponentName: "Header", TextContent: "Shop With Us"},
			CurrentFiles:    manifest,
		},
	})

	require.True(t, res.Success, res.Message)
	assert.Equal(t, []string{"src/components/Header.jsx"}, res.Results.FilesUpdated)
	assert.Contains(t, e.sb.Files()["src/components/Header.jsx"], "text-red-500")
}

func TestVisualEditRejectionWritesNothing(t *testing.T) {
	manifest := map[string]string{"src/components/Header.jsx": headerSource}
	// Complete rewrite that drops the selected text: must be rejected.
	e := newEnv(t, "export default function Header() {\n  const z = 1\n  return <div>all new</div>\n}\n")

	res := e.apply(t, Input{
		Prompt: "change the heading",
		Model:  "gemini/test",
		Context: &CallContext{
			VisualEdit:      true,
			SelectedElement: &visual.SelectedElement{ElementType: "h1", ComponentName: "Header", TextContent: "Shop With Us"},
			CurrentFiles:    manifest,
		},
	})

	assert.False(t, res.Success)
	assert.Empty(t, e.sb.WriteLog)
	assert.NotEmpty(t, res.Results.Errors)
}

func TestBuildFailureTriggersRepair(t *testing.T) {
	planning := `<file path="src/App.jsx">
export default function App() { return <div>v1</div> }
</file>
<file path="src/index.css">
body {}
</file>`
	fix := `<file path="src/App.jsx">
export default function App() { return <div>fixed</div> }
</file>`
	e := newEnv(t, planning, fix)
	e.sb.ScriptN("vite build", sandbox.CommandResult{Success: false, ExitCode: 1, Stderr: "SyntaxError in src/App.jsx:1:10"}, 1)

	res := e.apply(t, Input{Prompt: "an app", Model: "gemini/test"})

	require.True(t, res.Success, "errors: %v", res.Results.Errors)
	assert.Empty(t, res.Results.Errors)
	assert.Contains(t, e.sb.Files()["src/App.jsx"], "fixed")

	builds := 0
	for _, cmd := range e.sb.CommandLog {
		if strings.Contains(cmd, "vite build") {
			builds++
		}
	}
	assert.Equal(t, 2, builds)
}

func TestInstallFailureIsNonCritical(t *testing.T) {
	e := newEnv(t, planningResponse, headerResponse)
	e.sb.Script("npm install", sandbox.CommandResult{Success: false, ExitCode: 1, Stderr: "E404 canvas-confetti"})

	res := e.apply(t, Input{Prompt: "build a greeting app", Model: "gemini/test"})

	assert.True(t, res.Success)
	assert.Equal(t, []string{"canvas-confetti"}, res.Results.PackagesFailed)
	assert.NotEmpty(t, res.Results.Errors)
}

func TestFrameworkPackagesNeverInstalled(t *testing.T) {
	resp := `<packages>react, react-dom, axios</packages>
<file path="src/App.jsx">
export default function App() { return null }
</file>
<file path="src/index.css">
body {}
</file>`
	e := newEnv(t, resp)

	res := e.apply(t, Input{Prompt: "an app", Model: "gemini/test"})

	require.True(t, res.Success)
	assert.Equal(t, []string{"axios"}, res.Results.PackagesInstalled)
	assert.ElementsMatch(t, []string{"react", "react-dom"}, res.Results.PackagesAlreadyInstalled)
	require.Len(t, e.sb.InstallLog, 1)
	assert.Equal(t, []string{"axios"}, e.sb.InstallLog[0])
}
