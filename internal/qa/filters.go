package qa

import "strings"

// timePhrase maps a question phrase to a lookback window in days. Order
// matters: the first phrase found in the question wins, so more specific
// phrases come before the loose ones.
type timePhrase struct {
	phrase string
	days   int
}

var timePhrases = []timePhrase{
	{"today", 1},
	{"yesterday", 2},
	{"this week", 7},
	{"past week", 7},
	{"last week", 14},
	{"this month", 30},
	{"past month", 30},
	{"last month", 60},
	{"recently", 7},
	{"recent", 7},
	{"latest", 7},
}

// channelKeywords are channel names commonly referenced in questions. A
// match requires one of the explicit forms checked in inferChannel, not a
// bare substring, so "generally" does not select #general.
var channelKeywords = []string{
	"general", "standup", "hackathons", "random", "engineering",
	"design", "product", "marketing", "sales", "support",
	"dev", "testing", "qa", "operations", "announcements",
}

// inferDaysBack returns the lookback window implied by the question's time
// phrasing, or 0 when the question has none.
func inferDaysBack(question string) int {
	q := strings.ToLower(question)
	for _, tp := range timePhrases {
		if strings.Contains(q, tp.phrase) {
			return tp.days
		}
	}
	return 0
}

// inferChannel returns the channel name referenced by the question, or ""
// when no channel is mentioned. Recognized forms: "#name", "name channel",
// and "in name".
func inferChannel(question string) string {
	q := strings.ToLower(question)
	for _, name := range channelKeywords {
		if strings.Contains(q, "#"+name) ||
			strings.Contains(q, name+" channel") ||
			strings.Contains(q, "in "+name) {
			return name
		}
	}
	return ""
}
