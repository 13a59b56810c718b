package visual

import (
	"regexp"
	"strings"
)

var (
	exportRe      = regexp.MustCompile(`(?m)^\s*export\s`)
	declarationRe = regexp.MustCompile(`(?m)^\s*(?:export\s+(?:default\s+)?)?(?:function\s+\w+|(?:const|let|var)\s+\w+\s*=)`)
)

// Validate applies the mandatory post-edit checks, in order:
//  1. if the line-level diff ratio exceeds maxRatio, the element's original
//     text content must still appear verbatim in the edited file;
//  2. the edited content must still contain an export statement and a
//     function/variable declaration.
//
// A failed check returns (reason, false) and the caller must not write.
func Validate(el SelectedElement, original, edited string, maxRatio float64) (string, bool) {
	ratio := DiffRatio(original, edited)
	text := strings.TrimSpace(el.TextContent)
	if ratio > maxRatio && text != "" && !strings.Contains(edited, text) {
		return "visual edit removed the target element content", false
	}
	if !exportRe.MatchString(edited) {
		return "visual edit produced content without an export statement", false
	}
	if !declarationRe.MatchString(edited) {
		return "visual edit produced content without a function or variable declaration", false
	}
	return "", true
}

// DiffRatio approximates how much of the file changed as the fraction of
// lines in the larger version that have no exact counterpart in the other.
func DiffRatio(original, edited string) float64 {
	a := strings.Split(original, "\n")
	b := strings.Split(edited, "\n")
	if len(a) == 0 && len(b) == 0 {
		return 0
	}

	counts := map[string]int{}
	for _, line := range a {
		counts[strings.TrimSpace(line)]++
	}
	common := 0
	for _, line := range b {
		key := strings.TrimSpace(line)
		if counts[key] > 0 {
			counts[key]--
			common++
		}
	}
	total := len(a)
	if len(b) > total {
		total = len(b)
	}
	if total == 0 {
		return 0
	}
	return 1 - float64(common)/float64(total)
}
