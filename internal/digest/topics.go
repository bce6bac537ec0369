package digest

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/threadwise/internal/retrieval"
)

const (
	minWordLength   = 4
	minTopicCount   = 3
	maxTopics       = 20
	examplesPerWord = 2
	exampleLength   = 120
)

// Topic is one trending keyword with example messages.
type Topic struct {
	Keyword  string
	Count    int
	Examples []string
}

// stopWords are excluded from topic mining. Chat-specific filler is
// included alongside the usual English function words.
var stopWords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"will": true, "would": true, "could": true, "should": true, "about": true,
	"there": true, "their": true, "they": true, "them": true, "then": true,
	"than": true, "what": true, "when": true, "where": true, "which": true,
	"been": true, "being": true, "were": true, "your": true, "yours": true,
	"just": true, "like": true, "some": true, "more": true, "also": true,
	"here": true, "into": true, "over": true, "only": true, "very": true,
	"because": true, "after": true, "before": true, "going": true,
	"think": true, "know": true, "need": true, "want": true, "make": true,
	"made": true, "does": true, "doing": true, "done": true, "good": true,
	"really": true, "still": true, "thanks": true, "thank": true,
	"please": true, "channel": true, "message": true, "https": true,
	"http": true,
}

var wordRe = regexp.MustCompile(`[a-z][a-z0-9'\-]*`)

// trendingTopics mines keyword frequencies from message bodies. A word
// counts once per message; words shorter than four characters, stop words,
// and words seen fewer than three times are dropped. The top twenty by
// count survive, each with up to two example excerpts.
func trendingTopics(messages []retrieval.Result) []Topic {
	counts := make(map[string]int)
	examples := make(map[string][]string)

	for _, m := range messages {
		lower := strings.ToLower(m.Text)
		seen := make(map[string]bool)
		for _, word := range wordRe.FindAllString(lower, -1) {
			if len(word) < minWordLength || stopWords[word] || seen[word] {
				continue
			}
			seen[word] = true
			counts[word]++
			if len(examples[word]) < examplesPerWord {
				examples[word] = append(examples[word], truncate(m.Text, exampleLength))
			}
		}
	}

	topics := make([]Topic, 0, len(counts))
	for word, count := range counts {
		if count < minTopicCount {
			continue
		}
		topics = append(topics, Topic{Keyword: word, Count: count, Examples: examples[word]})
	}

	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count > topics[j].Count
		}
		return topics[i].Keyword < topics[j].Keyword
	})

	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics
}

func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
