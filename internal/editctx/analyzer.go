package editctx

import (
	"strings"
)

// AnalyzeIntent is an independent second pass over the same prompt and
// manifest. It scores on weighted keyword hits rather than first-match
// ordering, so either classifier can rescue signal the other discards.
func AnalyzeIntent(prompt string, manifest map[string]string) EditIntent {
	lower := strings.ToLower(prompt)

	scores := map[IntentType]float64{}
	bump := func(t IntentType, words []string, weight float64) {
		for _, w := range words {
			if strings.Contains(lower, w) {
				scores[t] += weight
			}
		}
	}
	bump(FullRebuild, rebuildWords, 0.5)
	bump(FixIssue, fixWords, 0.3)
	bump(UpdateStyle, styleWords, 0.25)
	bump(AddFeature, featureWords, 0.2)
	if quotedTextRe.MatchString(prompt) {
		scores[UpdateText] += 0.35
	}

	best := UpdateComponent
	bestScore := 0.0
	for t, s := range scores {
		if s > bestScore {
			best, bestScore = t, s
		}
	}

	confidence := 0.3 + bestScore
	if confidence > 0.95 {
		confidence = 0.95
	}

	intent := EditIntent{
		Type:        best,
		Confidence:  confidence,
		TargetFiles: matchTargets(prompt, manifest),
	}
	if bestScore > 0 {
		intent.Description = describeIntent(best, prompt)
	}
	return intent
}

func describeIntent(t IntentType, prompt string) string {
	summary := strings.TrimSpace(prompt)
	if len(summary) > 80 {
		summary = summary[:80] + "..."
	}
	switch t {
	case FullRebuild:
		return "rebuild the application: " + summary
	case FixIssue:
		return "fix a reported problem: " + summary
	case UpdateStyle:
		return "adjust styling: " + summary
	case AddFeature:
		return "add functionality: " + summary
	case UpdateText:
		return "change UI copy: " + summary
	default:
		return "update components: " + summary
	}
}
