// Package parser turns raw, possibly partial model output into structured
// artifacts. Parsing never fails: absent patterns yield empty collections,
// and re-parsing a growing stream refines earlier results.
package parser

import (
	"regexp"
	"strings"
)

// File is one extracted file artifact.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ParsedResponse is the structured view of one model response.
type ParsedResponse struct {
	Files       []File   `json:"files"`
	Packages    []string `json:"packages"`
	Commands    []string `json:"commands"`
	Structure   string   `json:"structure,omitempty"`
	Explanation string   `json:"explanation"`
	Template    string   `json:"template"`
}

// FileByPath returns the extracted file for a normalized path, if present.
func (r *ParsedResponse) FileByPath(p string) (File, bool) {
	for _, f := range r.Files {
		if f.Path == p {
			return f, true
		}
	}
	return File{}, false
}

type candidate struct {
	path    string
	content string
	closed  bool
}

var (
	fileOpenRe     = regexp.MustCompile(`<file\s+path="([^"]+)"\s*>`)
	fencedPathRe   = regexp.MustCompile("```[a-zA-Z0-9_+.-]*[ \t]+(?:path|file)=\"?([^\"\\s`]+)\"?[ \t]*\n")
	fenceRe        = regexp.MustCompile("(?s)```([a-zA-Z0-9_+.-]*)[ \t]*\n(.*?)\n```")
	fileCommentRe  = regexp.MustCompile(`(?i)^\s*(?://|/\*|#|<!--)\s*(?:File|Component)\s*:\s*([^\s*>]+)`)
	generatedLine  = regexp.MustCompile(`(?im)^\s*Generated Files?\s*:\s*(.+)$`)
	commandTagRe   = regexp.MustCompile(`(?s)<command>(.*?)</command>`)
	packageTagRe   = regexp.MustCompile(`(?s)<package>(.*?)</package>`)
	packagesTagRe  = regexp.MustCompile(`(?s)<packages>(.*?)</packages>`)
	structureTagRe = regexp.MustCompile(`(?s)<structure>(.*?)</structure>`)
	explanationRe  = regexp.MustCompile(`(?s)<explanation>(.*?)</explanation>`)
	templateTagRe  = regexp.MustCompile(`(?s)<template>(.*?)</template>`)
)

// Parse extracts everything recognizable from raw. It is idempotent and
// safe to re-invoke on growing buffers during streaming.
func Parse(raw string) ParsedResponse {
	files := map[string]candidate{}
	var order []string

	merge := func(c candidate) {
		c.path = NormalizePath(c.path)
		if c.path == "" {
			return
		}
		c.content = trimFileContent(c.content)
		old, exists := files[c.path]
		if !exists {
			files[c.path] = c
			order = append(order, c.path)
			return
		}
		if !better(old, c) {
			return
		}
		files[c.path] = c
	}

	for _, c := range extractTaggedFiles(raw) {
		merge(c)
	}
	for _, c := range extractFencedPathFiles(raw) {
		merge(c)
	}
	for _, c := range extractGeneratedFilesLine(raw) {
		merge(c)
	}
	for _, c := range extractCommentNamedFences(raw) {
		merge(c)
	}

	out := ParsedResponse{
		Explanation: firstMatch(explanationRe, raw),
		Structure:   firstMatch(structureTagRe, raw),
		Template:    firstMatch(templateTagRe, raw),
	}
	for _, m := range commandTagRe.FindAllStringSubmatch(raw, -1) {
		if cmd := strings.TrimSpace(m[1]); cmd != "" {
			out.Commands = append(out.Commands, cmd)
		}
	}

	pkgSet := map[string]bool{}
	addPkg := func(name string) {
		name = strings.TrimSpace(name)
		if name != "" && !pkgSet[name] {
			pkgSet[name] = true
			out.Packages = append(out.Packages, name)
		}
	}
	for _, m := range packageTagRe.FindAllStringSubmatch(raw, -1) {
		addPkg(m[1])
	}
	for _, m := range packagesTagRe.FindAllStringSubmatch(raw, -1) {
		for _, name := range splitList(m[1]) {
			addPkg(name)
		}
	}

	for _, p := range order {
		c := files[p]
		out.Files = append(out.Files, File{Path: c.path, Content: c.content})
		for _, name := range ScanImports(c.content) {
			addPkg(name)
		}
	}
	return out
}

// better reports whether next should replace prev for the same path.
// A completed (closed-tag) extraction always beats an open one; otherwise
// longer content wins, except that a shorter candidate ending in a
// truncation ellipsis never replaces existing content.
func better(prev, next candidate) bool {
	if len(next.content) < len(prev.content) && looksTruncated(next.content) {
		return false
	}
	if prev.closed != next.closed {
		return next.closed
	}
	return len(next.content) > len(prev.content)
}

// stripPartialTag drops a partially received file tag from the tail of an
// in-flight body so a later reparse never sees the content shrink.
func stripPartialTag(body string) string {
	i := strings.LastIndexByte(body, '<')
	if i < 0 {
		return body
	}
	tail := body[i:]
	if strings.HasPrefix("</file>", tail) ||
		strings.HasPrefix(`<file path="`, tail) ||
		(strings.HasPrefix(tail, "<file") && !strings.Contains(tail, ">")) {
		return body[:i]
	}
	return body
}

func looksTruncated(content string) bool {
	t := strings.TrimSpace(content)
	return strings.HasSuffix(t, "...") || strings.HasSuffix(t, "…")
}

// extractTaggedFiles handles <file path="...">...</file>, tolerating a
// missing closing tag while the stream is still in flight.
func extractTaggedFiles(raw string) []candidate {
	var out []candidate
	locs := fileOpenRe.FindAllStringSubmatchIndex(raw, -1)
	for i, loc := range locs {
		path := raw[loc[2]:loc[3]]
		start := loc[1]
		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := raw[start:end]
		closed := false
		if j := strings.Index(body, "</file>"); j >= 0 {
			body = body[:j]
			closed = true
		} else if end == len(raw) {
			body = stripPartialTag(body)
		}
		out = append(out, candidate{path: path, content: body, closed: closed})
	}
	return out
}

// extractFencedPathFiles handles ```lang path="src/App.tsx" fences.
func extractFencedPathFiles(raw string) []candidate {
	var out []candidate
	for _, loc := range fencedPathRe.FindAllStringSubmatchIndex(raw, -1) {
		path := raw[loc[2]:loc[3]]
		rest := raw[loc[1]:]
		closed := true
		end := strings.Index(rest, "```")
		if end < 0 {
			end = len(rest)
			closed = false
		}
		out = append(out, candidate{path: path, content: rest[:end], closed: closed})
	}
	return out
}

// extractGeneratedFilesLine salvages poorly tagged output of the form
// "Generated Files: a.tsx, b.tsx" followed by bare code fences in order.
func extractGeneratedFilesLine(raw string) []candidate {
	m := generatedLine.FindStringSubmatchIndex(raw)
	if m == nil {
		return nil
	}
	names := splitList(raw[m[2]:m[3]])
	if len(names) == 0 {
		return nil
	}
	var blocks []string
	for _, fm := range fenceRe.FindAllStringSubmatch(raw[m[1]:], -1) {
		body := fm[2]
		// Skip fences that already carry a path marker; other passes own those.
		if fileCommentRe.MatchString(firstLine(body)) {
			continue
		}
		blocks = append(blocks, body)
	}
	var out []candidate
	for i, name := range names {
		if i >= len(blocks) {
			break
		}
		out = append(out, candidate{path: name, content: blocks[i], closed: true})
	}
	return out
}

// extractCommentNamedFences handles bare fences whose first line is a
// "// File: src/App.tsx" or "// Component: Header" comment.
func extractCommentNamedFences(raw string) []candidate {
	var out []candidate
	for _, fm := range fenceRe.FindAllStringSubmatch(raw, -1) {
		body := fm[2]
		first := firstLine(body)
		cm := fileCommentRe.FindStringSubmatch(first)
		if cm == nil {
			continue
		}
		name := cm[1]
		if !strings.Contains(name, ".") {
			// Component name; derive a conventional path.
			name = "src/components/" + name + ".jsx"
		}
		rest := strings.TrimPrefix(body, first)
		rest = strings.TrimPrefix(rest, "\n")
		out = append(out, candidate{path: name, content: rest, closed: true})
	}
	return out
}

func trimFileContent(s string) string {
	s = strings.Trim(s, "\n")
	// Strip a stray fence the model sometimes nests inside file tags.
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimRight(s, "\n"), "```")
		s = strings.TrimRight(s, "\n")
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func firstMatch(re *regexp.Regexp, raw string) string {
	if m := re.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	}) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
