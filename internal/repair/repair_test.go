package repair

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appforge/internal/llm"
	"appforge/internal/parser"
	"appforge/internal/sandbox"
)

func TestFixInvalidIcons(t *testing.T) {
	files := map[string]string{
		"src/App.jsx": `import { Heart, Sparkle, Rocket } from 'lucide-react'
export default function App() {
  return <div><Heart /><Sparkle size={16} /><Rocket /></div>
}
`,
	}
	fixed, n := FixInvalidIcons(files)
	assert.Equal(t, 2, n)
	got := fixed["src/App.jsx"]
	assert.NotContains(t, got, "Sparkle")
	assert.NotContains(t, got, "Rocket")
	assert.Contains(t, got, "Heart")
	assert.Contains(t, got, "<Circle")
}

func TestFixInvalidIconsNoLucideImport(t *testing.T) {
	files := map[string]string{
		"src/App.jsx": "export default function App() { return null }\n",
	}
	fixed, n := FixInvalidIcons(files)
	assert.Equal(t, 0, n)
	assert.Equal(t, files["src/App.jsx"], fixed["src/App.jsx"])
}

func TestResolveImportPath(t *testing.T) {
	assert.Equal(t, "src/components/Header", ResolveImportPath("src/App.jsx", "./components/Header"))
	assert.Equal(t, "src/Footer", ResolveImportPath("src/components/Nav.jsx", "../Footer"))
	assert.Equal(t, "src/ui/Button", ResolveImportPath("src/pages/Home.jsx", "@/ui/Button"))
}

func TestFillMissingImports(t *testing.T) {
	files := map[string]string{
		"src/App.jsx": `import Header from './components/Header'
import Missing from './components/Missing'
import './theme.css'
import data from './data.json'
export default function App() { return <Header /> }
`,
		"src/components/Header.jsx": "export default function Header() { return null }\n",
	}
	created := FillMissingImports(files)
	require.Len(t, created, 3)
	assert.Contains(t, created["src/components/Missing.jsx"], "export default function Missing()")
	assert.Contains(t, created["src/theme.css"], "placeholder")
	assert.Equal(t, "{}\n", created["src/data.json"])
}

func TestFillMissingImportsKebabCaseName(t *testing.T) {
	files := map[string]string{
		"src/App.jsx": "import bar from './nav-bar'\nexport default function App() { return null }\n",
	}
	created := FillMissingImports(files)
	require.Contains(t, created, "src/nav-bar.jsx")
	assert.Contains(t, created["src/nav-bar.jsx"], "function Navbar()")
}

func TestRepairDefaultImportWithoutDefaultExport(t *testing.T) {
	files := map[string]string{
		"src/App.jsx":    "import Header from './Header'\nexport default function App() { return <Header /> }\n",
		"src/Header.jsx": "export const Header = () => <h1>Hi</h1>\n",
	}
	changed := RepairImportExportMismatches(files)
	require.Contains(t, changed, "src/Header.jsx")
	assert.Contains(t, changed["src/Header.jsx"], "export default Header")
}

func TestRepairNamedImportOfDefaultOnlyTarget(t *testing.T) {
	files := map[string]string{
		"src/App.jsx":    "import { Header } from './Header'\nexport default function App() { return <Header /> }\n",
		"src/Header.jsx": "export default function Header() { return <h1>Hi</h1> }\n",
	}
	changed := RepairImportExportMismatches(files)
	require.Contains(t, changed, "src/App.jsx")
	assert.Contains(t, changed["src/App.jsx"], "import Header from './Header'")
}

func TestRepairSynthesizesMissingNamedExport(t *testing.T) {
	files := map[string]string{
		"src/App.jsx":   "import { formatDate, parseDate } from './utils'\nexport default function App() { return null }\n",
		"src/utils.jsx": "export const formatDate = (d) => d.toISOString()\n",
	}
	changed := RepairImportExportMismatches(files)
	require.Contains(t, changed, "src/utils.jsx")
	assert.Contains(t, changed["src/utils.jsx"], "export const parseDate")
	assert.Contains(t, changed["src/utils.jsx"], "export const formatDate")
}

func TestBuildFailed(t *testing.T) {
	assert.False(t, BuildFailed(sandbox.CommandResult{Success: true, ExitCode: 0}))
	assert.True(t, BuildFailed(sandbox.CommandResult{Success: false, ExitCode: 1}))
	assert.True(t, BuildFailed(sandbox.CommandResult{
		Success: true, ExitCode: 0,
		Stdout: `[plugin:vite:import-analysis] Failed to resolve import "./Gone" from "src/App.jsx"`,
	}))
	assert.True(t, BuildFailed(sandbox.CommandResult{
		Success: true, ExitCode: 0, Stderr: "Transform failed with 1 error",
	}))
}

func TestExtractBrokenPaths(t *testing.T) {
	output := `[plugin:vite:import-analysis] Failed to resolve import "./components/Chart" from "src/App.jsx". Does the file exist?
src/App.jsx:3:24
Transform failed with 1 error:
src/components/Nav.jsx
`
	got := ExtractBrokenPaths(output)
	assert.Contains(t, got, "src/components/Chart")
	assert.Contains(t, got, "src/App.jsx")
	assert.Contains(t, got, "src/components/Nav.jsx")
}

func failedBuild(msg string) sandbox.CommandResult {
	return sandbox.CommandResult{Success: false, ExitCode: 1, Stderr: msg}
}

func TestRunPassesFirstTry(t *testing.T) {
	sb := sandbox.NewMemory("t1")
	client := llm.NewFakeClient("unused")
	loop := NewLoop(client, "gemini/test", nil)

	out := loop.Run(context.Background(), sb, map[string]string{
		"src/App.jsx": "export default function App() { return null }\n",
	}, nil)

	assert.True(t, out.BuildPassed)
	assert.Equal(t, 0, out.RoundsUsed)
	assert.Equal(t, 0, client.CallCount())
}

func TestRunRecoversAfterOneRound(t *testing.T) {
	sb := sandbox.NewMemory("t2")
	sb.ScriptN("vite build", failedBuild(`Failed to resolve import "./Gone" from "src/App.jsx"`), 1)

	client := llm.NewFakeClient(`<file path="src/Gone.jsx">
export default function Gone() { return null }
</file>`)
	var applied []string
	apply := func(ctx context.Context, files []parser.File) error {
		for _, f := range files {
			applied = append(applied, f.Path)
		}
		return nil
	}
	loop := NewLoop(client, "gemini/test", nil)

	out := loop.Run(context.Background(), sb, map[string]string{
		"src/App.jsx": "import Gone from './Gone'\nexport default function App() { return <Gone /> }\n",
	}, apply)

	assert.True(t, out.BuildPassed)
	assert.Equal(t, 1, out.RoundsUsed)
	assert.Empty(t, out.RemainingError)
	assert.Contains(t, applied, "src/Gone.jsx")
}

func TestRunStopsAfterMaxRounds(t *testing.T) {
	sb := sandbox.NewMemory("t3")
	sb.Script("vite build", failedBuild("SyntaxError: unexpected end of input\nsrc/App.jsx:9:1"))

	client := llm.NewFakeClient(`<file path="src/App.jsx">
export default function App() { return null }
</file>`)
	loop := NewLoop(client, "gemini/test", nil)

	out := loop.Run(context.Background(), sb, map[string]string{
		"src/App.jsx": "export default function App() {",
	}, func(ctx context.Context, files []parser.File) error { return nil })

	assert.False(t, out.BuildPassed)
	assert.Equal(t, MaxRounds, out.RoundsUsed)
	assert.NotEmpty(t, out.RemainingError)
	assert.Equal(t, MaxRounds, client.CallCount())

	builds := 0
	for _, cmd := range sb.CommandLog {
		if strings.Contains(cmd, "vite build") {
			builds++
		}
	}
	assert.Equal(t, 1+MaxRounds, builds)
}

func TestRunStopsWhenRepairReturnsNothing(t *testing.T) {
	sb := sandbox.NewMemory("t4")
	sb.Script("vite build", failedBuild("Build failed"))

	client := llm.NewFakeClient("I could not determine the problem.")
	loop := NewLoop(client, "gemini/test", nil)

	out := loop.Run(context.Background(), sb, map[string]string{
		"src/App.jsx": "export default function App() { return null }\n",
	}, nil)

	assert.False(t, out.BuildPassed)
	assert.Equal(t, 1, out.RoundsUsed)
	assert.Equal(t, 1, client.CallCount())
}

func TestPreflightAppliesFixes(t *testing.T) {
	files := map[string]string{
		"src/App.jsx": `import { Sparkle } from 'lucide-react'
import Ghost from './Ghost'
export default function App() { return <div><Sparkle /><Ghost /></div> }
`,
	}
	var applied []string
	loop := NewLoop(llm.NewFakeClient("unused"), "gemini/test", nil)
	out, after := loop.Preflight(context.Background(), files, func(ctx context.Context, fs []parser.File) error {
		for _, f := range fs {
			applied = append(applied, f.Path)
		}
		return nil
	})

	assert.Equal(t, 1, out.IconFixes)
	assert.Equal(t, []string{"src/Ghost.jsx"}, out.Placeholders)
	assert.Contains(t, after["src/App.jsx"], "Circle")
	assert.Contains(t, after, "src/Ghost.jsx")
	assert.Contains(t, applied, "src/App.jsx")
	assert.Contains(t, applied, "src/Ghost.jsx")
}
