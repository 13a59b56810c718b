package repair

import (
	"path"
	"strings"

	"appforge/internal/parser"
)

// ResolveImportPath maps a relative or alias import specifier, as written in
// importer, onto a project-root-relative path without extension.
func ResolveImportPath(importer, spec string) string {
	if strings.HasPrefix(spec, "@/") {
		return "src/" + strings.TrimPrefix(spec, "@/")
	}
	dir := path.Dir(importer)
	return path.Clean(path.Join(dir, spec))
}

var sourceExtensions = []string{".jsx", ".tsx", ".js", ".ts", ".css", ".json"}

// findExisting checks whether base resolves to any present file, trying the
// bare path, known extensions, and index files.
func findExisting(files map[string]string, base string) (string, bool) {
	if _, ok := files[base]; ok {
		return base, true
	}
	for _, ext := range sourceExtensions {
		if _, ok := files[base+ext]; ok {
			return base + ext, true
		}
	}
	for _, ext := range []string{".jsx", ".tsx", ".js", ".ts"} {
		if _, ok := files[base+"/index"+ext]; ok {
			return base + "/index" + ext, true
		}
	}
	return "", false
}

// FillMissingImports resolves every relative/aliased import across the file
// set and synthesizes a minimal placeholder for anything unresolved, so a
// build never fails purely on "module not found". Returns the created
// placeholder files keyed by path.
func FillMissingImports(files map[string]string) map[string]string {
	created := map[string]string{}
	lookup := func(base string) (string, bool) {
		if p, ok := findExisting(files, base); ok {
			return p, ok
		}
		return findExisting(created, base)
	}
	for importer, content := range files {
		for _, spec := range parser.ScanRelativeImports(content) {
			base := ResolveImportPath(importer, spec)
			if _, ok := lookup(base); ok {
				continue
			}
			p, stub := placeholderFor(base, spec)
			created[p] = stub
		}
	}
	return created
}

func placeholderFor(base, spec string) (string, string) {
	switch {
	case strings.HasSuffix(spec, ".css"):
		return base, "/* placeholder stylesheet */\n"
	case strings.HasSuffix(spec, ".json"):
		return base, "{}\n"
	}
	name := componentName(base)
	stub := "export default function " + name + "() {\n" +
		"  return null\n" +
		"}\n"
	return base + ".jsx", stub
}

func componentName(p string) string {
	base := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if base == "" {
		return "Placeholder"
	}
	// Sanitize into a valid identifier.
	var b strings.Builder
	for _, r := range base {
		if r == '-' || r == '_' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	name := b.String()
	if name == "" {
		return "Placeholder"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
