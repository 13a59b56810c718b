// Package search plans and executes line-level code searches that locate
// where an edit should land inside the selected files.
package search

import (
	"regexp"
	"sort"
	"strings"

	"appforge/internal/editctx"
)

// Plan is a deterministic search strategy derived from an edit intent.
type Plan struct {
	EditType          editctx.IntentType `json:"editType"`
	SearchTerms       []string           `json:"searchTerms"`
	RegexPatterns     []string           `json:"regexPatterns"`
	FileTypesToSearch []string           `json:"fileTypesToSearch"`
	Fallback          FallbackPlan       `json:"fallbackSearch"`
}

// FallbackPlan is tried when the primary plan yields zero hits.
type FallbackPlan struct {
	Terms    []string `json:"terms"`
	Patterns []string `json:"patterns"`
}

// Hit is one ranked target location.
type Hit struct {
	FilePath   string `json:"filePath"`
	LineNumber int    `json:"lineNumber"`
	Reason     string `json:"reason"`
}

var termsByType = map[editctx.IntentType][]string{
	editctx.UpdateStyle:     {"className", "style", "css", "color", "bg-", "text-"},
	editctx.UpdateText:      {">", "title", "label", "placeholder"},
	editctx.UpdateComponent: {"function", "return", "export"},
	editctx.FixIssue:        {"useState", "useEffect", "onClick", "onChange", "props"},
	editctx.AddFeature:      {"return", "export default"},
	editctx.FullRebuild:     {"export default"},
}

var patternsByType = map[editctx.IntentType][]string{
	editctx.UpdateStyle:     {`className\s*=`, `style\s*=\s*\{`},
	editctx.UpdateText:      {`>[^<>{}]+<`},
	editctx.UpdateComponent: {`(?:function|const)\s+[A-Z]\w*`},
	editctx.FixIssue:        {`use[A-Z]\w*\(`},
	editctx.AddFeature:      {`return\s*\(`},
	editctx.FullRebuild:     {`export\s+default`},
}

var promptTokenRe = regexp.MustCompile(`[A-Za-z][A-Za-z0-9-]{3,}`)

var stopWords = map[string]bool{
	"make": true, "change": true, "update": true, "please": true, "with": true,
	"this": true, "that": true, "have": true, "into": true, "from": true,
	"should": true, "when": true, "then": true, "more": true,
}

// BuildPlan derives a Plan from the intent type lookup plus prompt tokens.
// Search terms are deduplicated; prompt tokens under 4 chars and filler
// words are dropped.
func BuildPlan(intent editctx.EditIntent, prompt string) Plan {
	terms := append([]string(nil), termsByType[intent.Type]...)
	seen := map[string]bool{}
	for _, t := range terms {
		seen[strings.ToLower(t)] = true
	}
	for _, tok := range promptTokenRe.FindAllString(prompt, -1) {
		lower := strings.ToLower(tok)
		if stopWords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		terms = append(terms, tok)
	}

	// Quoted fragments are strong signals for copy edits.
	for _, m := range regexp.MustCompile(`"([^"]{2,60})"`).FindAllStringSubmatch(prompt, -1) {
		if !seen[strings.ToLower(m[1])] {
			seen[strings.ToLower(m[1])] = true
			terms = append(terms, m[1])
		}
	}

	return Plan{
		EditType:          intent.Type,
		SearchTerms:       terms,
		RegexPatterns:     append([]string(nil), patternsByType[intent.Type]...),
		FileTypesToSearch: []string{".jsx", ".tsx", ".js", ".ts", ".css"},
		Fallback: FallbackPlan{
			Terms:    []string{"export default", "return"},
			Patterns: []string{`export\s+default`},
		},
	}
}

// Execute runs every term and pattern of the plan over the candidate file
// contents and returns hits ranked best-first. When the primary plan finds
// nothing, the fallback set is tried before giving up; an empty result is
// non-fatal and degrades to whole-file editing.
func Execute(plan Plan, files map[string]string) []Hit {
	hits := run(plan.SearchTerms, plan.RegexPatterns, files, plan.EditType)
	if len(hits) == 0 {
		hits = run(plan.Fallback.Terms, plan.Fallback.Patterns, files, plan.EditType)
	}
	return hits
}

type fileScore struct {
	path  string
	score int
	first Hit
}

func run(terms, patterns []string, files map[string]string, editType editctx.IntentType) []Hit {
	var regexps []*regexp.Regexp
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			regexps = append(regexps, re)
		}
	}

	scores := map[string]*fileScore{}
	var hits []Hit
	addHit := func(path string, line int, reason string) {
		h := Hit{FilePath: path, LineNumber: line, Reason: reason}
		hits = append(hits, h)
		fs, ok := scores[path]
		if !ok {
			fs = &fileScore{path: path, first: h}
			scores[path] = fs
		}
		fs.score++
	}

	for path, content := range files {
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			for _, term := range terms {
				if term != "" && strings.Contains(strings.ToLower(line), strings.ToLower(term)) {
					addHit(path, i+1, "matched term "+term)
				}
			}
			for _, re := range regexps {
				if re.MatchString(line) {
					addHit(path, i+1, "matched pattern "+re.String())
				}
			}
		}
	}

	ranked := make([]*fileScore, 0, len(scores))
	for _, fs := range scores {
		ranked = append(ranked, fs)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		// Ties break by edit-type preference: style edits favor files that
		// actually carry styling attributes.
		pi := typePreference(editType, ranked[i].path, files[ranked[i].path])
		pj := typePreference(editType, ranked[j].path, files[ranked[j].path])
		if pi != pj {
			return pi > pj
		}
		return ranked[i].path < ranked[j].path
	})

	// Order hits by their file's rank, keeping line order within a file.
	rankOf := map[string]int{}
	for i, fs := range ranked {
		rankOf[fs.path] = i
	}
	sort.SliceStable(hits, func(i, j int) bool {
		ri, rj := rankOf[hits[i].FilePath], rankOf[hits[j].FilePath]
		if ri != rj {
			return ri < rj
		}
		return hits[i].LineNumber < hits[j].LineNumber
	})
	return hits
}

func typePreference(editType editctx.IntentType, path, content string) int {
	switch editType {
	case editctx.UpdateStyle:
		if strings.HasSuffix(path, ".css") || strings.Contains(content, "className") {
			return 1
		}
	case editctx.UpdateComponent, editctx.AddFeature:
		if strings.HasSuffix(path, ".jsx") || strings.HasSuffix(path, ".tsx") {
			return 1
		}
	}
	return 0
}

// BestTarget returns the top-ranked file, if any.
func BestTarget(hits []Hit) (Hit, bool) {
	if len(hits) == 0 {
		return Hit{}, false
	}
	return hits[0], true
}
