package qa

import (
	"strings"

	"github.com/fyrsmithlabs/threadwise/internal/retrieval"
)

// noisePhrases identify system and housekeeping messages that carry no
// conversational content.
var noisePhrases = []string{
	"has joined the channel",
	"has left the channel",
	"set the channel topic",
	"set the channel description",
	"uploaded a file",
	"renamed the channel",
	"archived the channel",
	"pinned a message",
}

const (
	minMessageLength = 10
	maxMentionRatio  = 0.5
)

// filterQuality keeps the first limit results that carry real content.
// Results are already ordered by relevance, so filtering preserves order
// and running the filter on its own output changes nothing.
func filterQuality(results []retrieval.Result, limit int) []retrieval.Result {
	kept := make([]retrieval.Result, 0, limit)
	for _, r := range results {
		if !isSubstantive(r.Text) {
			continue
		}
		kept = append(kept, r)
		if len(kept) == limit {
			break
		}
	}
	return kept
}

// isSubstantive reports whether a message body is worth showing the model.
func isSubstantive(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minMessageLength {
		return false
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range noisePhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}

	// Mostly-mentions messages ("<@U1> <@U2> <@U3>") are pings, not content.
	words := strings.Fields(trimmed)
	if len(words) > 0 {
		mentions := strings.Count(trimmed, "<@")
		if float64(mentions)/float64(len(words)) > maxMentionRatio {
			return false
		}
	}

	return true
}
