package parser

import (
	"regexp"
	"strings"
)

var (
	importFromRe  = regexp.MustCompile(`(?m)^\s*import\s+(?:[^'"]*?\s+from\s+)?['"]([^'"]+)['"]`)
	requireCallRe = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	dynImportRe   = regexp.MustCompile(`import\(\s*['"]([^'"]+)['"]\s*\)`)
)

// frameworkIntrinsics ship with every scaffolded project and are never
// installed explicitly.
var frameworkIntrinsics = map[string]bool{
	"react":                true,
	"react-dom":            true,
	"vite":                 true,
	"@vitejs/plugin-react": true,
	"tailwindcss":          true,
	"autoprefixer":         true,
	"postcss":              true,
}

// IsFrameworkPackage reports whether name is pre-installed in the scaffold.
func IsFrameworkPackage(name string) bool {
	return frameworkIntrinsics[PackageRoot(name)]
}

// PackageRoot reduces an import specifier to its installable package name:
// "lucide-react/icons/x" -> "lucide-react", "@scope/pkg/sub" -> "@scope/pkg".
func PackageRoot(spec string) string {
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") {
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return spec
	}
	return parts[0]
}

// ScanImports statically collects external package names referenced by a
// source file. Relative imports and framework path aliases are skipped.
func ScanImports(content string) []string {
	seen := map[string]bool{}
	var out []string
	collect := func(matches [][]string) {
		for _, m := range matches {
			spec := m[1]
			if spec == "" || strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
				continue
			}
			// "@/..." and "src/..." are project aliases, not packages.
			if strings.HasPrefix(spec, "@/") || strings.HasPrefix(spec, "src/") || strings.HasPrefix(spec, "~") {
				continue
			}
			name := PackageRoot(spec)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	collect(importFromRe.FindAllStringSubmatch(content, -1))
	collect(requireCallRe.FindAllStringSubmatch(content, -1))
	collect(dynImportRe.FindAllStringSubmatch(content, -1))
	return out
}

var relativeImportRe = regexp.MustCompile(`(?m)^\s*import\s+(?:[^'"]*?\s+from\s+)?['"](\.{1,2}/[^'"]+|@/[^'"]+)['"]`)

// ScanRelativeImports collects relative and alias-prefixed import specifiers
// of a source file, in declaration order.
func ScanRelativeImports(content string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range relativeImportRe.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
