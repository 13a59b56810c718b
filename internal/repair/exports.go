package repair

import (
	"regexp"
	"strings"
)

var (
	defaultImportRe = regexp.MustCompile(`(?m)^(\s*import\s+)([A-Za-z_$][\w$]*)(\s+from\s+['"])(\.{1,2}/[^'"]+|@/[^'"]+)(['"])`)
	namedImportRe   = regexp.MustCompile(`(?m)^(\s*import\s*)\{([^}]*)\}(\s*from\s*['"])(\.{1,2}/[^'"]+|@/[^'"]+)(['"])`)

	defaultExportRe = regexp.MustCompile(`(?m)^\s*export\s+default\b`)
	namedExportRe   = regexp.MustCompile(`(?m)^\s*export\s+(?:const|let|var|function|class)\s+([A-Za-z_$][\w$]*)`)
	exportBraceRe   = regexp.MustCompile(`(?m)^\s*export\s*\{([^}]*)\}`)
	declNameRe      = regexp.MustCompile(`(?m)^\s*(?:function\s+([A-Z][\w$]*)|const\s+([A-Z][\w$]*)\s*=)`)
)

// namedExports lists the named exports declared by content.
func namedExports(content string) []string {
	var out []string
	for _, m := range namedExportRe.FindAllStringSubmatch(content, -1) {
		out = append(out, m[1])
	}
	for _, m := range exportBraceRe.FindAllStringSubmatch(content, -1) {
		for _, n := range strings.Split(m[1], ",") {
			n = strings.TrimSpace(n)
			if i := strings.Index(n, " as "); i >= 0 {
				n = strings.TrimSpace(n[i+4:])
			}
			if n != "" && n != "default" {
				out = append(out, n)
			}
		}
	}
	return out
}

// bestGuessSymbol picks the symbol a synthesized default export should alias:
// the first capitalized top-level declaration, else the first named export.
func bestGuessSymbol(content string) string {
	if m := declNameRe.FindStringSubmatch(content); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	if names := namedExports(content); len(names) > 0 {
		return names[0]
	}
	return ""
}

// RepairImportExportMismatches inspects every local import against the target
// file's actual exports and repairs mismatches: a default import of a file
// with no default export gets one synthesized; a missing named import is
// either rewritten to the default (1:1 shape) or synthesized on the target.
// Returns the files changed, keyed by path.
func RepairImportExportMismatches(files map[string]string) map[string]string {
	changed := map[string]string{}
	current := func(p string) (string, bool) {
		if c, ok := changed[p]; ok {
			return c, true
		}
		c, ok := files[p]
		return c, ok
	}

	for importer, content := range files {
		updatedImporter := content

		for _, m := range defaultImportRe.FindAllStringSubmatch(content, -1) {
			spec := m[4]
			target, ok := findExisting(files, ResolveImportPath(importer, spec))
			if !ok {
				continue
			}
			tc, _ := current(target)
			if defaultExportRe.MatchString(tc) {
				continue
			}
			if sym := bestGuessSymbol(tc); sym != "" {
				changed[target] = tc + "\nexport default " + sym + "\n"
			}
		}

		for _, m := range namedImportRe.FindAllStringSubmatch(content, -1) {
			spec := m[4]
			target, ok := findExisting(files, ResolveImportPath(importer, spec))
			if !ok {
				continue
			}
			tc, _ := current(target)
			exports := namedExports(tc)
			names := splitImportNames(m[2])
			var missing []string
			for _, n := range names {
				base := n
				if i := strings.Index(n, " as "); i >= 0 {
					base = strings.TrimSpace(n[:i])
				}
				if !containsName(exports, base) {
					missing = append(missing, base)
				}
			}
			if len(missing) == 0 {
				continue
			}
			// Single missing name against a default-only target: rewrite the
			// import to use the default.
			if len(names) == 1 && len(missing) == 1 && len(exports) == 0 && defaultExportRe.MatchString(tc) {
				updatedImporter = strings.Replace(updatedImporter, m[0],
					m[1]+missing[0]+m[3]+spec+m[5], 1)
				continue
			}
			// Otherwise synthesize the missing named exports on the target.
			add := tc
			for _, name := range missing {
				if sym := bestGuessSymbol(tc); sym != "" && sym != name {
					add += "\nexport const " + name + " = " + sym + "\n"
				} else {
					add += "\nexport const " + name + " = () => null\n"
				}
			}
			changed[target] = add
		}

		if updatedImporter != content {
			changed[importer] = updatedImporter
		}
	}
	return changed
}

func containsName(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
