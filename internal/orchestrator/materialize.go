package orchestrator

import (
	"context"
	"path"
	"regexp"
	"strings"

	"appforge/internal/parser"
	"appforge/internal/progress"
)

var (
	// Same-directory stylesheet imports are stripped from script files; the
	// orchestrator wires stylesheets itself via the entry file.
	sameDirCSSImportRe = regexp.MustCompile(`(?m)^\s*import\s+['"]\./[^'"]*\.css['"];?\s*\n`)

	// Arbitrary shadow utilities beyond the supported scale break the build.
	arbitraryShadowRe = regexp.MustCompile(`shadow-\[[^\]]*\]`)
	oversizedShadowRe = regexp.MustCompile(`shadow-(?:3xl|4xl|5xl)`)
)

const maxShadowClass = "shadow-2xl"

func isScriptFile(p string) bool {
	switch path.Ext(p) {
	case ".js", ".jsx", ".ts", ".tsx":
		return true
	}
	return false
}

// prepareContent applies the uniform content rules before any write.
func prepareContent(p, content string) string {
	if isScriptFile(p) {
		content = sameDirCSSImportRe.ReplaceAllString(content, "")
	}
	content = arbitraryShadowRe.ReplaceAllString(content, maxShadowClass)
	content = oversizedShadowRe.ReplaceAllString(content, maxShadowClass)
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content
}

// materialize writes parsed files to the sandbox under the uniform rules:
// normalize the path, rewrite the content, and classify the write as created
// or updated against the existing-files index. The entry file keeps its
// stylesheet import; everything else loses same-directory CSS imports.
func (o *Orchestrator) materialize(ctx context.Context, r *run, files []parser.File) error {
	total := len(files)
	for i, f := range files {
		p := parser.NormalizePath(f.Path)
		if p == "" {
			continue
		}
		content := f.Content
		if !isEntryFile(p) {
			content = prepareContent(p, content)
		} else if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}

		r.emit(progress.Event{Type: progress.TypeFileProgress, FilePath: p, Current: i + 1, Total: total})
		if err := r.sb.WriteFile(ctx, p, content); err != nil {
			r.emit(progress.Event{Type: progress.TypeFileError, FilePath: p, Error: err.Error()})
			r.addError(true, "write %s: %v", p, err)
			return err
		}

		if r.existing[p] {
			if !containsStr(r.res.Results.FilesUpdated, p) && !containsStr(r.res.Results.FilesCreated, p) {
				r.res.Results.FilesUpdated = append(r.res.Results.FilesUpdated, p)
			}
		} else {
			r.existing[p] = true
			if !containsStr(r.res.Results.FilesCreated, p) {
				r.res.Results.FilesCreated = append(r.res.Results.FilesCreated, p)
			}
		}
		r.written[p] = content
		r.emit(progress.Event{Type: progress.TypeFileComplete, FilePath: p, Current: i + 1, Total: total})
	}
	return nil
}

// isEntryFile reports whether p is the application entry, which owns the
// stylesheet wiring.
func isEntryFile(p string) bool {
	base := path.Base(p)
	return base == "main.jsx" || base == "main.tsx" || base == "index.jsx" || base == "index.tsx"
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
