package parser

import (
	"path"
	"strings"
)

// rootConfigFiles may live at the project root; everything else that is not
// a public asset is rehomed under src/.
var rootConfigFiles = map[string]bool{
	"package.json":      true,
	"package-lock.json": true,
	"vite.config.js":    true,
	"vite.config.ts":    true,
	"tailwind.config.js": true,
	"postcss.config.js": true,
	"index.html":        true,
	"tsconfig.json":     true,
	"tsconfig.node.json": true,
	".eslintrc.cjs":     true,
	".gitignore":        true,
}

// NormalizePath rewrites a model-supplied file path to be relative to the
// project root. Absolute-looking and dot-prefixed paths are flattened, and
// anything that is not a recognized root config file or a public asset is
// placed under src/.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "/") || strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "/")
		p = strings.TrimPrefix(p, "./")
	}
	p = path.Clean(p)
	if p == "." || p == "" {
		return ""
	}
	// Re-root trees the model sometimes invents.
	for _, prefix := range []string{"project/", "app/", "frontend/"} {
		if strings.HasPrefix(p, prefix) {
			p = strings.TrimPrefix(p, prefix)
			break
		}
	}
	if rootConfigFiles[p] {
		return p
	}
	if strings.HasPrefix(p, "public/") || strings.HasPrefix(p, "src/") {
		return p
	}
	return "src/" + p
}
