package qa

import (
	"regexp"
	"strconv"
	"strings"
)

// confidenceRe matches the model's self-report line and its trailing
// rationale. The colon and percent sign are required so ordinary prose
// mentioning "confidence" near a number is not mistaken for a report;
// markdown bold around the word and the colon is tolerated:
// "Confidence: 85%", "**Confidence**: 85% - saw the decision",
// "**Confidence:** 85%".
var confidenceRe = regexp.MustCompile(`(?i)confidence[*_]*\s*:\s*[*_]*\s*(\d{1,3})\s*%\s*[*_]*\s*(?:[-:]\s*)?([^\n]*)`)

// emojiCodeRe matches shortcode emoji tokens like :thumbsup:.
var emojiCodeRe = regexp.MustCompile(`:[a-z_][a-z0-9_+\-]*:`)

// extractConfidence pulls the model's self-reported confidence and rationale
// from the answer text, falling back to hedge-phrase heuristics (with no
// rationale) when the report is missing or malformed. The score is clamped
// to [0, 100].
func extractConfidence(text string) (int, string) {
	if m := confidenceRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			rationale := strings.TrimSpace(emojiCodeRe.ReplaceAllString(m[2], ""))
			return clampConfidence(n), rationale
		}
	}
	return fallbackConfidence(text), ""
}

// fallbackConfidence buckets an answer by how strongly it hedges. The
// phrase lists are the contract of record for malformed model output, so
// they stay loose substrings rather than full sentences.
func fallbackConfidence(text string) int {
	lower := strings.ToLower(text)

	// No usable information at all.
	for _, phrase := range []string{
		"couldn't find",
		"don't have",
		"no information",
	} {
		if strings.Contains(lower, phrase) {
			return 10
		}
	}

	// Explicit uncertainty.
	for _, phrase := range []string{
		"not sure",
		"unclear",
		"uncertain",
	} {
		if strings.Contains(lower, phrase) {
			return 30
		}
	}

	// Hedged but substantive.
	for _, phrase := range []string{
		"might",
		"possibly",
		"seems",
	} {
		if strings.Contains(lower, phrase) {
			return 55
		}
	}

	return 65
}

func clampConfidence(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
