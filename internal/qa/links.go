package qa

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/threadwise/internal/retrieval"
)

// Link patterns worth surfacing alongside an answer: repositories and
// documentation sites referenced in the cited messages.
var (
	githubLinkRe = regexp.MustCompile(`https?://(?:www\.)?github\.com/[\w\-]+/[\w\-.]+(?:/[\w\-./#?=&]*)?`)
	docsSubRe    = regexp.MustCompile(`https?://[\w\-]+\.(?:readthedocs\.io|github\.io)/[\w\-./]*`)
	docsHostRe   = regexp.MustCompile(`https?://docs?\.[\w\-]+\.[a-z]{2,}/[\w\-./]*`)
)

// extractProjectLinks collects repository and documentation URLs from the
// cited messages, deduplicated in first-seen order.
func extractProjectLinks(results []retrieval.Result) []ProjectLink {
	seen := make(map[string]bool)
	var links []ProjectLink

	add := func(url, linkType, channel string) {
		url = strings.TrimRight(url, ".,!?)")
		if url == "" || seen[url] {
			return
		}
		seen[url] = true
		links = append(links, ProjectLink{URL: url, Type: linkType, SourceChannel: channel})
	}

	for _, r := range results {
		for _, url := range githubLinkRe.FindAllString(r.Text, -1) {
			add(url, "github", r.ChannelName)
		}
		for _, url := range docsSubRe.FindAllString(r.Text, -1) {
			add(url, "documentation", r.ChannelName)
		}
		for _, url := range docsHostRe.FindAllString(r.Text, -1) {
			add(url, "documentation", r.ChannelName)
		}
	}
	return links
}
