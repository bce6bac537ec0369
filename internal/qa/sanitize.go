package qa

import (
	"regexp"
	"strings"
)

// confidenceLineRe matches the trailing self-report line, with or without
// markdown bold and emoji decoration.
var confidenceLineRe = regexp.MustCompile(`(?im)^[^\S\n]*[*_]*confidence[*_]*[^0-9%\n]{0,20}\d{1,3}\s*%?[^\n]*$`)

// citationEchoRe matches numbered citation lines the model sometimes echoes
// back ("[1] #standup - alice: ..."), which duplicate the attached sources.
var citationEchoRe = regexp.MustCompile(`(?m)^[^\S\n]*\[\d+\]\s+#[\w\-]+\s+-\s+[^\n]*$`)

// sectionHeadings begin paragraphs the model sometimes appends even though
// sources and links are attached separately.
var sectionHeadings = []string{
	"sources:",
	"source:",
	"related links:",
	"relevant links:",
	"references:",
}

// sanitizeAnswer strips generation artifacts from the answer body: the
// confidence self-report, echoed citation lines, and any appended sources
// or links sections.
func sanitizeAnswer(text string) string {
	text = confidenceLineRe.ReplaceAllString(text, "")
	text = citationEchoRe.ReplaceAllString(text, "")
	text = emojiCodeRe.ReplaceAllString(text, "")

	// Drop whole paragraphs that open with a sources or links heading.
	paragraphs := strings.Split(text, "\n\n")
	kept := paragraphs[:0]
	for _, p := range paragraphs {
		heading := strings.ToLower(strings.TrimSpace(p))
		heading = strings.TrimLeft(heading, "*_# ")
		drop := false
		for _, h := range sectionHeadings {
			if strings.HasPrefix(heading, h) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, p)
		}
	}
	text = strings.Join(kept, "\n\n")

	// Collapse runs of blank lines left by the removals.
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}
